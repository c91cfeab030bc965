package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/app"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/infrastructure"
	"github.com/jphed/youtube-video-music-downloader/internal/toollocator"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

// session holds the collaborators of a foreground download
type session struct {
	config    *domain.Config
	log       *zap.Logger
	multiLog  *logger.MultiLogger
	repo      *infrastructure.SQLiteJobRepository // nil when history is disabled
	locator   *toollocator.Locator
	fetcher   *infrastructure.YTDLPFetcher
	outputDir string
}

func loadConfig() (*domain.Config, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

// newLogger picks the console logger. With a progress display on the terminal only a
// configured log file receives output.
func newLogger(config *domain.Config, interactive bool) (*zap.Logger, error) {
	toConsole := config.Logging.OutputPath == "" ||
		config.Logging.OutputPath == "stdout" ||
		config.Logging.OutputPath == "stderr"

	switch {
	case interactive && toConsole:
		return zap.NewNop(), nil
	case verbose || !toConsole:
		return logger.New(logger.Config{
			Level:      config.Logging.Level,
			Format:     config.Logging.Format,
			OutputPath: config.Logging.OutputPath,
		})
	default:
		return logger.NewQuiet(), nil
	}
}

func newSession(interactive bool) (*session, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(config, interactive)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	outputDir, err := app.EnsureOutputDir(config)
	if err != nil {
		return nil, err
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	s := &session{
		config:    config,
		log:       log,
		multiLog:  multiLog,
		locator:   toollocator.New(config.Tools, log),
		fetcher:   infrastructure.NewYTDLPFetcher(config.Tools.YTDLPBinary, config.Download.LogsDir(), log, multiLog),
		outputDir: outputDir,
	}

	if config.History.Enabled {
		repo, err := infrastructure.NewSQLiteJobRepository(config.History.DatabasePath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.repo = repo
	}

	if config.Tools.ExportPath {
		loc := s.locator.Locate()
		if changed, err := toollocator.ExportPath(loc); err != nil {
			log.Warn("Failed to export FFmpeg dir to PATH", zap.Error(err))
		} else if changed {
			log.Debug("Exported FFmpeg dir to PATH", zap.String("dir", loc.Dir))
		}
	}

	return s, nil
}

// orchestrator builds an orchestrator with the history, job log and notification hooks
func (s *session) orchestrator() *app.Orchestrator {
	orch := app.NewOrchestrator(s.fetcher, s.locator, app.OrchestratorConfig{
		OutputDir:         s.outputDir,
		RestrictFilenames: s.config.Download.RestrictFilenames,
		Coalesce:          s.config.Relay.Coalesce,
	}, s.log)

	orch.OnFinish(app.JobLogFinalizer(s.multiLog))
	if s.repo != nil {
		orch.OnFinish(app.HistoryFinalizer(s.repo, s.log))
	}
	if s.config.Notification.Enabled {
		orch.OnFinish(app.NotifyFinalizer(infrastructure.NewNotificationService(&s.config.Notification, s.log)))
	}
	return orch
}

func (s *session) Close() {
	if s.repo != nil {
		s.repo.Close()
	}
	if s.multiLog != nil {
		s.multiLog.Close()
	}
	_ = s.log.Sync()
}
