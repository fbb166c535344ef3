package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
)

// RunLister reads the run log.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]pipeline.PipelineRun, error)
	GetRun(ctx context.Context, sessionKey string) (*pipeline.PipelineRun, error)
}

type RunsHandler struct {
	runs RunLister
}

func NewRunsHandler(runs RunLister) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// List returns recent runs, optionally only those with ?status=completed|failed.
func (h *RunsHandler) List(c *gin.Context) {
	var (
		status    domain.RunStatus
		filtering bool
	)
	if raw := c.Query("status"); raw != "" {
		s, ok := domain.ParseRunStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be completed or failed"})
			return
		}
		status, filtering = s, true
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), parsePositiveIntWithDefault(c.Query("limit"), 50))
	if err != nil {
		writeError(c, err)
		return
	}
	if filtering {
		filtered := make([]pipeline.PipelineRun, 0, len(runs))
		for _, r := range runs {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}
	c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) Get(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}
