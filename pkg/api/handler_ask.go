package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// askHandler handles POST /api/ask (spec §6). Returns 4xx on validation
// error; the submit call itself is synchronous but the agent dispatch it
// may trigger is not, so a 2xx here never implies the response is ready —
// callers follow up on /ws/request/{id}.
func (s *Server) askHandler(c *echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	result, err := s.gateway.Submit(c.Request().Context(), req.Query, req.Agent, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusOK, &AskResponse{
		RequestID:     result.RequestID,
		Status:        "accepted",
		AgentAssigned: result.AgentAssigned,
		Confidence:    result.Confidence,
	})
}
