package infrastructure

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// NotificationService sends desktop notifications for finished jobs
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification. Failures are logged and returned, never fatal to a job.
func (n *NotificationService) Send(title, message string) error {
	if n == nil || n.config == nil || !n.config.Enabled {
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", "--app-name=ytmd", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyJobFinished reports the terminal result of a job
func (n *NotificationService) NotifyJobFinished(req domain.DownloadRequest, result domain.JobResult) {
	if result.Success {
		_ = n.Send("Download Completed", "Saved "+filepath.Base(result.SavedPath))
		return
	}

	title := "Download Failed"
	switch result.Kind {
	case domain.FailureMissingTranscoder:
		title = "FFmpeg Required"
	case domain.FailureCancelled:
		title = "Download Cancelled"
	}
	_ = n.Send(title, truncateString(req.URL, 40))
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
