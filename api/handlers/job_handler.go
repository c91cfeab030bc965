package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/app"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// JobService is the part of the job manager the HTTP API uses
type JobService interface {
	Submit(req domain.DownloadRequest) (*domain.JobRecord, error)
	Cancel(id string) error
	Get(id string) (*domain.JobRecord, error)
	List(filters map[string]interface{}) ([]*domain.JobRecord, error)
	Stats() (*domain.JobStats, error)
	Subscribe(id string) ([]domain.ProgressEvent, *app.Subscription, error)
	Active() (string, bool)
}

// JobDefaults fill in omitted request fields
type JobDefaults struct {
	Container string
	Quality   string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs     JobService
	defaults JobDefaults
	logger   *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobService, defaults JobDefaults, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		defaults: defaults,
		logger:   logger,
	}
}

// SubmitJobRequest represents a request to start a download
type SubmitJobRequest struct {
	URL       string `json:"url" binding:"required"`
	Container string `json:"container,omitempty"`
	Quality   string `json:"quality,omitempty"`
}

// SubmitJob handles POST /api/v1/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	containerName := req.Container
	quality := req.Quality
	if containerName == "" {
		containerName = h.defaults.Container
		if quality == "" {
			quality = h.defaults.Quality
		}
	}
	container, err := domain.ParseContainer(containerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if quality == "" {
		quality = defaultQuality(container)
	}

	request := domain.NewDownloadRequest(req.URL, container, quality)
	if err := request.ValidateURL(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.jobs.Submit(request)
	if err != nil {
		if errors.Is(err, domain.ErrJobInFlight) {
			active, _ := h.jobs.Active()
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "active_job": active})
			return
		}
		h.logger.Error("Failed to submit job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if record.State == domain.StateFailedInput {
		c.JSON(http.StatusBadRequest, gin.H{"error": record.Detail, "job": record})
		return
	}

	c.JSON(http.StatusAccepted, record)
}

func defaultQuality(container domain.Container) string {
	if container == domain.ContainerAudio {
		return "192k"
	}
	return "best"
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	record, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})
	if state := c.Query("state"); state != "" {
		filters["state"] = state
	}
	if container := c.Query("container"); container != "" {
		filters["container"] = container
	}

	records, err := h.jobs.List(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit >= 0 && limit < len(records) {
		records = records[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  records,
		"count": len(records),
	})
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobs.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.Cancel(id); err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested", "id": id})
}

func writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, domain.ErrJobFinished):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
