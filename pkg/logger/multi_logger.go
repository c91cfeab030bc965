package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryJob      LogCategory = "job"      // Job lifecycle events (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
	CategoryDownload LogCategory = "download" // Raw yt-dlp transcripts (text), written by the fetcher
)

// Categories lists every category with its own file
func Categories() []LogCategory {
	return []LogCategory{CategoryJob, CategoryError, CategoryDownload}
}

// CategoryLogPath returns the dated file of a category, <dir>/<category>-YYYYMMDD.log
func CategoryLogPath(dir string, category LogCategory, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", category, t.Format("20060102")))
}

// ValidCategory reports whether c names a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// MultiLogger writes each category to its own dated JSON file, <category>-YYYYMMDD.log.
// Files are reopened when the date changes.
type MultiLogger struct {
	config      MultiLoggerConfig
	level       zapcore.Level
	mu          sync.Mutex
	loggers     map[LogCategory]*zap.Logger
	files       map[LogCategory]*os.File
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config:  config,
		level:   level,
		loggers: make(map[LogCategory]*zap.Logger),
		files:   make(map[LogCategory]*os.File),
		now:     time.Now,
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if err := ml.openAll(); err != nil {
		ml.closeAll()
		return nil, err
	}
	return ml, nil
}

func (ml *MultiLogger) openAll() error {
	ml.currentDate = ml.now().Format("20060102")
	for _, category := range []LogCategory{CategoryJob, CategoryError} {
		level := ml.level
		if category == CategoryError {
			level = zapcore.ErrorLevel
		}
		if err := ml.open(category, level); err != nil {
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
	}
	return nil
}

func (ml *MultiLogger) open(category LogCategory, level zapcore.Level) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.CallerKey = ""

	file, err := os.OpenFile(CategoryLogPath(ml.config.LogsDir, category, ml.now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	ml.loggers[category] = zap.New(core).With(zap.String("category", string(category)))
	ml.files[category] = file
	return nil
}

func (ml *MultiLogger) closeAll() {
	for category, logger := range ml.loggers {
		_ = logger.Sync()
		if f := ml.files[category]; f != nil {
			_ = f.Close()
		}
	}
	ml.loggers = make(map[LogCategory]*zap.Logger)
	ml.files = make(map[LogCategory]*os.File)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the logger for a category, rotating files when the day changed
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if today := ml.now().Format("20060102"); today != ml.currentDate {
		ml.closeAll()
		if err := ml.openAll(); err != nil {
			return zap.NewNop()
		}
	}

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	if logger, ok := ml.loggers[CategoryError]; ok {
		return logger
	}
	return zap.NewNop()
}

// Job returns the job lifecycle logger
func (ml *MultiLogger) Job() *zap.Logger {
	return ml.GetLogger(CategoryJob)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogJobEvent logs a job lifecycle event with structured data
func (ml *MultiLogger) LogJobEvent(event string, fields ...zap.Field) {
	ml.Job().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all log files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for category, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
		if err := ml.files[category].Close(); err != nil {
			lastErr = err
		}
	}
	ml.loggers = make(map[LogCategory]*zap.Logger)
	ml.files = make(map[LogCategory]*os.File)
	return lastErr
}
