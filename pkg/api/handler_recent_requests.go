package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

const defaultRecentRequestsLimit = 50

// recentRequestsHandler handles GET /api/recent-requests (spec §6).
func (s *Server) recentRequestsHandler(c *echo.Context) error {
	limit := defaultRecentRequestsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	reqs := s.gateway.RecentRequests(limit)
	out := make([]RequestSummary, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, RequestSummary{
			ID:         r.ID,
			Query:      r.Query,
			Agent:      r.Agent,
			Timestamp:  r.CreatedAt,
			Status:     string(r.Status),
			DurationMS: r.DurationMS,
		})
	}

	return c.JSON(http.StatusOK, out)
}
