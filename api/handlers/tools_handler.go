package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/format"
)

// FetcherInfo reports which fetch executable is in use
type FetcherInfo interface {
	Binary() string
	Version(ctx context.Context) (string, error)
}

// ToolsHandler reports external tool discovery and the supported formats
type ToolsHandler struct {
	locator domain.ToolLocator
	fetcher FetcherInfo
}

// NewToolsHandler creates a new tools handler
func NewToolsHandler(locator domain.ToolLocator, fetcher FetcherInfo) *ToolsHandler {
	return &ToolsHandler{
		locator: locator,
		fetcher: fetcher,
	}
}

// ToolsResponse represents the tools report
type ToolsResponse struct {
	FFmpeg struct {
		Found    bool                `json:"found"`
		Location domain.ToolLocation `json:"location"`
	} `json:"ffmpeg"`
	YTDLP struct {
		Binary  string `json:"binary"`
		Version string `json:"version,omitempty"`
		Error   string `json:"error,omitempty"`
	} `json:"ytdlp"`
}

// GetTools handles GET /api/v1/tools
func (h *ToolsHandler) GetTools(c *gin.Context) {
	var response ToolsResponse

	loc := h.locator.Locate()
	response.FFmpeg.Found = loc.Found()
	response.FFmpeg.Location = loc

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	response.YTDLP.Binary = h.fetcher.Binary()
	version, err := h.fetcher.Version(ctx)
	if err != nil {
		response.YTDLP.Error = err.Error()
	} else {
		response.YTDLP.Version = version
	}

	c.JSON(http.StatusOK, response)
}

// GetFormats handles GET /api/v1/formats
func (h *ToolsHandler) GetFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"video":               format.VideoQualities(),
		"audio":               format.AudioQualities(),
		"progressive_ceiling": format.ProgressiveCeiling,
	})
}
