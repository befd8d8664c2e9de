package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// systemStateHandler handles GET /api/system-state (spec §6), polled by
// clients at a 2s cadence. hub/executor/researcher share the gateway's
// last-observed inference health since all three agents dispatch through
// the same backend; executor additionally reports job queue depth and
// memory reports its own store size.
func (s *Server) systemStateHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	health := s.gateway.InferenceHealth()
	agentState := ComponentState{Status: health.Status, LastCheck: health.LastCheck, Error: health.Error}

	executor := agentState
	if s.jobs != nil {
		executor.QueuedJobs = s.jobs.QueuedCount()
		if s.jobs.Running() {
			executor.RunningJobs = 1
		}
	}

	memState := ComponentState{Status: "UP", LastCheck: time.Now()}
	vectorCount, memoryMB, err := s.gateway.Memory().Stats(ctx)
	if err != nil {
		memState.Status = "DOWN"
		memState.Error = err.Error()
	} else {
		memState.VectorCount = vectorCount
		memState.MemoryMB = memoryMB
	}

	return c.JSON(http.StatusOK, &SystemStateResponse{
		Hub:        agentState,
		Executor:   executor,
		Researcher: agentState,
		Memory:     memState,
	})
}
