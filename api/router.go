package api

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/api/handlers"
	"github.com/jphed/youtube-video-music-downloader/api/middleware"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
	"github.com/jphed/youtube-video-music-downloader/web"
)

// RouterConfig holds the dependencies of the HTTP router
type RouterConfig struct {
	Jobs        handlers.JobService
	Defaults    handlers.JobDefaults
	Locator     domain.ToolLocator
	Fetcher     handlers.FetcherInfo
	Version     string
	Ready       func() error
	LogsDir     string
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
}

// SetupRouter sets up the HTTP router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(cfg.Logger, cfg.MultiLogger))
	router.Use(middleware.Recovery(cfg.Logger, cfg.MultiLogger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(cfg.Jobs, cfg.Version, cfg.Ready)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(cfg.Jobs, cfg.Defaults, cfg.Logger)
		eventsHandler := handlers.NewJobEventsHandler(cfg.Jobs, cfg.Logger)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.SubmitJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
			jobs.GET("/:id/events", eventsHandler.HandleWebSocket)
		}

		toolsHandler := handlers.NewToolsHandler(cfg.Locator, cfg.Fetcher)
		v1.GET("/tools", toolsHandler.GetTools)
		v1.GET("/formats", toolsHandler.GetFormats)

		logHandler := handlers.NewLogHandler(cfg.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	staticFS := web.GetStaticFS()

	router.GET("/", func(c *gin.Context) {
		serveFile(c, staticFS, "index.html")
	})
	router.GET("/static/*filepath", func(c *gin.Context) {
		serveFile(c, staticFS, strings.TrimPrefix(path.Clean(c.Param("filepath")), "/"))
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

// contentTypes maps dashboard file extensions to their content type
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".svg":  "image/svg+xml",
	".png":  "image/png",
}

// serveFile serves a file from the embedded filesystem with proper content type
func serveFile(c *gin.Context, staticFS fs.FS, filePath string) {
	file, err := staticFS.Open(filePath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file: %v", err)
		return
	}

	contentType, ok := contentTypes[path.Ext(filePath)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, content)
}
