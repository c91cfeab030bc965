package app

import (
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

// Notifier reports finished jobs to the user
type Notifier interface {
	NotifyJobFinished(req domain.DownloadRequest, result domain.JobResult)
}

// NotifyFinalizer sends a desktop notification for every finished job
func NotifyFinalizer(n Notifier) Finalizer {
	return func(job *Job, result domain.JobResult) {
		n.NotifyJobFinished(job.Request, result)
	}
}

// JobLogFinalizer writes one job_finished entry per job to the job log
func JobLogFinalizer(ml *logger.MultiLogger) Finalizer {
	return func(job *Job, result domain.JobResult) {
		cfg := job.Config()
		ml.LogJobEvent("job_finished",
			zap.String("id", job.ID),
			zap.String("url", job.Request.URL),
			zap.String("container", string(job.Request.Container)),
			zap.String("quality", job.Request.Quality),
			zap.String("format", cfg.Plan.Selector),
			zap.Bool("degraded", cfg.Degraded),
			zap.String("state", string(result.State())),
			zap.String("saved_path", result.SavedPath),
			zap.String("detail", result.Detail))
		if !result.Success && result.Kind != domain.FailureCancelled {
			ml.LogAppError("Job failed",
				zap.String("id", job.ID),
				zap.String("kind", string(result.Kind)),
				zap.String("detail", result.Detail))
		}
	}
}

// HistoryFinalizer stores a finished record for jobs that are not tracked by a JobManager,
// such as the ones run from the command line.
func HistoryFinalizer(repo domain.JobRepository, log *zap.Logger) Finalizer {
	return func(job *Job, result domain.JobResult) {
		record := recordFor(job)
		record.MarkFinished(result)
		if err := repo.Create(record); err != nil {
			log.Error("Failed to save job history", zap.String("id", job.ID), zap.Error(err))
		}
	}
}

// recordFor builds the history entry of a started job
func recordFor(job *Job) *domain.JobRecord {
	record := domain.NewJobRecordWithID(job.ID, job.Request)
	if cfg := job.Config(); cfg.Plan.Selector != "" {
		record.MarkRunning(cfg)
	}
	return record
}
