// Package api provides Milton's HTTP and WebSocket surface (spec §6):
// POST /api/ask, GET /api/system-state, GET /api/recent-requests, and
// WS /ws/request/{id}. Adapted from tarsy's pkg/api server scaffolding —
// Echo v5, a body-size limit, a plain health check — trimmed of the
// dashboard static-file serving and trace/session endpoints Milton has no
// equivalent of.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/milton/pkg/gateway"
	"github.com/codeready-toolchain/milton/pkg/jobqueue"
)

// Server is Milton's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	gateway          *gateway.Gateway
	jobs             *jobqueue.Runner
	wsOriginPatterns []string
}

// NewServer builds a Server wiring the gateway (ask/recent-requests/ws) and
// the job queue runner (system-state's executor section). allowedWSOrigins
// is passed straight through to websocket.AcceptOptions.OriginPatterns; a
// single "*" disables origin checking entirely.
func NewServer(gw *gateway.Gateway, jobs *jobqueue.Runner, allowedWSOrigins []string) *Server {
	e := echo.New()

	s := &Server{
		echo:             e,
		gateway:          gw,
		jobs:             jobs,
		wsOriginPatterns: allowedWSOrigins,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(1 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	api := s.echo.Group("/api")
	api.POST("/ask", s.askHandler)
	api.GET("/system-state", s.systemStateHandler)
	api.GET("/recent-requests", s.recentRequestsHandler)

	s.echo.GET("/ws/request/:id", s.wsRequestHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, such
// as one bound to a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
