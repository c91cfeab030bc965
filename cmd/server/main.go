package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/api"
	"github.com/jphed/youtube-video-music-downloader/api/handlers"
	"github.com/jphed/youtube-video-music-downloader/internal/app"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/infrastructure"
	"github.com/jphed/youtube-video-music-downloader/internal/toollocator"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

const version = "1.0.0"

var (
	configPath  = flag.String("config", "", "Path to config file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("ytmd-server", version)
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "ytmd-server: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting ytmd server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("history", config.History.Enabled))

	outputDir, err := app.EnsureOutputDir(config)
	if err != nil {
		return err
	}

	dbPath := infrastructure.MemoryDatabase
	if config.History.Enabled {
		dbPath = config.History.DatabasePath
	}
	repo, err := infrastructure.NewSQLiteJobRepository(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	locator := toollocator.New(config.Tools, log)
	tools := locator.Locate()
	if config.Tools.ExportPath {
		if _, err := toollocator.ExportPath(tools); err != nil {
			log.Warn("Failed to export FFmpeg dir to PATH", zap.Error(err))
		}
	}
	if tools.Found() {
		log.Info("FFmpeg located", zap.String("dir", tools.Dir), zap.String("source", tools.Source))
	} else {
		log.Warn("FFmpeg not found; video downloads fall back to progressive MP4 and MP3 conversion fails")
	}

	fetcher := infrastructure.NewYTDLPFetcher(config.Tools.YTDLPBinary, config.Download.LogsDir(), log, multiLog)

	orchestrator := app.NewOrchestrator(fetcher, locator, app.OrchestratorConfig{
		OutputDir:         outputDir,
		RestrictFilenames: config.Download.RestrictFilenames,
		Coalesce:          config.Relay.Coalesce,
	}, log)
	orchestrator.OnFinish(app.JobLogFinalizer(multiLog))
	if config.Notification.Enabled {
		notifier := infrastructure.NewNotificationService(&config.Notification, log)
		orchestrator.OnFinish(app.NotifyFinalizer(notifier))
	}

	jobManager := app.NewJobManager(orchestrator, repo, app.NewEventHub(0, 0), multiLog, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := jobManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job manager: %w", err)
	}

	router := api.SetupRouter(api.RouterConfig{
		Jobs: jobManager,
		Defaults: handlers.JobDefaults{
			Container: config.Download.DefaultContainer,
			Quality:   config.Download.DefaultQuality,
		},
		Locator: locator,
		Fetcher: fetcher,
		Version: version,
		Ready: func() error {
			if _, err := exec.LookPath(fetcher.Binary()); err != nil {
				return fmt.Errorf("%w: %s", domain.ErrFetcherNotFound, fetcher.Binary())
			}
			return nil
		},
		LogsDir:     config.Download.LogsDir(),
		Logger:      log,
		MultiLogger: multiLog,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		multiLog.LogAppError("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Running downloads are cancelled and recorded before the listener goes away
	if err := jobManager.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping job manager", zap.Error(err))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
