package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ActiveJob reports the running job, if any
type ActiveJob interface {
	Active() (string, bool)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	jobs    ActiveJob
	version string
	ready   func() error
}

// NewHealthHandler creates a new health handler. ready returns an error while the server
// cannot run downloads, e.g. when yt-dlp is missing.
func NewHealthHandler(jobs ActiveJob, version string, ready func() error) *HealthHandler {
	return &HealthHandler{
		jobs:    jobs,
		version: version,
		ready:   ready,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Job     struct {
		Running bool   `json:"running"`
		ID      string `json:"id,omitempty"`
	} `json:"job"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	response.Job.ID, response.Job.Running = h.jobs.Active()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
