package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

// JobManager runs submitted downloads in the background for the HTTP API.
// It keeps the history up to date and publishes job events to the hub.
type JobManager struct {
	orchestrator *Orchestrator
	repo         domain.JobRepository
	hub          *EventHub
	multiLogger  *logger.MultiLogger
	logger       *zap.Logger

	mu       sync.RWMutex
	ctx      context.Context
	stop     context.CancelFunc
	running  bool
	active   map[string]*Job
	workerWg sync.WaitGroup
}

// NewJobManager creates a new job manager
func NewJobManager(
	orchestrator *Orchestrator,
	repo domain.JobRepository,
	hub *EventHub,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *JobManager {
	ctx, stop := context.WithCancel(context.Background())
	return &JobManager{
		orchestrator: orchestrator,
		repo:         repo,
		hub:          hub,
		multiLogger:  multiLogger,
		logger:       logger,
		ctx:          ctx,
		stop:         stop,
		active:       make(map[string]*Job),
	}
}

// Start marks jobs left running by a previous process as failed and begins accepting jobs.
// Jobs submitted afterwards are cancelled when ctx ends.
func (m *JobManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("job manager already running")
	}
	m.running = true
	m.ctx, m.stop = context.WithCancel(ctx)
	m.mu.Unlock()

	n, err := m.repo.MarkInterrupted()
	if err != nil {
		return fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	if n > 0 {
		m.logger.Warn("Marked interrupted jobs as failed", zap.Int64("count", n))
	}
	m.logJobEvent("manager_started", zap.Int64("interrupted", n))
	return nil
}

// Stop cancels running jobs and waits for them to be recorded, or for ctx to end
func (m *JobManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.running = false
	stop := m.stop
	m.mu.Unlock()

	stop()

	done := make(chan struct{})
	go func() {
		m.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logJobEvent("manager_stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit starts a download and returns its history record.
// An invalid request comes back as a finished record in the FailedInput state.
func (m *JobManager) Submit(req domain.DownloadRequest) (*domain.JobRecord, error) {
	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()

	job, err := m.orchestrator.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	m.hub.Open(job.ID)
	record := recordFor(job)

	select {
	case <-job.Done():
		// Rejected during planning; nothing runs in the background
		m.publishAll(job)
		record.MarkFinished(job.Result())
		m.hub.Close(job.ID)
		if err := m.repo.Create(record); err != nil {
			m.logger.Error("Failed to save job", zap.String("id", job.ID), zap.Error(err))
		}
		snapshot := *record
		return &snapshot, nil
	default:
	}

	if err := m.repo.Create(record); err != nil {
		m.logger.Error("Failed to save job", zap.String("id", job.ID), zap.Error(err))
	}

	m.mu.Lock()
	m.active[job.ID] = job
	m.mu.Unlock()

	m.logJobEvent("job_submitted",
		zap.String("id", job.ID),
		zap.String("url", req.URL),
		zap.String("container", string(req.Container)),
		zap.String("quality", req.Quality))

	snapshot := *record
	m.workerWg.Add(1)
	go m.track(job, record)

	return &snapshot, nil
}

// track relays the job events to the hub and records the result
func (m *JobManager) track(job *Job, record *domain.JobRecord) {
	defer m.workerWg.Done()

	m.publishAll(job)
	record.MarkFinished(job.Result())

	if err := m.repo.Update(record); err != nil {
		m.logger.Error("Failed to update job", zap.String("id", job.ID), zap.Error(err))
	}

	m.mu.Lock()
	delete(m.active, job.ID)
	m.mu.Unlock()

	m.hub.Close(job.ID)
}

func (m *JobManager) publishAll(job *Job) {
	for ev := range job.Events() {
		m.hub.Publish(job.ID, ev)
	}
}

// Cancel stops a running job
func (m *JobManager) Cancel(id string) error {
	m.mu.RLock()
	job, ok := m.active[id]
	m.mu.RUnlock()

	if ok {
		job.Cancel()
		m.logJobEvent("job_cancel_requested", zap.String("id", id))
		return nil
	}

	record, err := m.repo.FindByID(id)
	if err != nil {
		return err
	}
	if record.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrJobFinished, record.State)
	}
	return fmt.Errorf("%w: %s", domain.ErrJobFinished, "not running in this process")
}

// Get retrieves a job record by ID
func (m *JobManager) Get(id string) (*domain.JobRecord, error) {
	return m.repo.FindByID(id)
}

// List lists job records with optional filters
func (m *JobManager) List(filters map[string]interface{}) ([]*domain.JobRecord, error) {
	return m.repo.FindAll(filters)
}

// Stats returns history statistics
func (m *JobManager) Stats() (*domain.JobStats, error) {
	return m.repo.GetStats()
}

// Active returns the ID of the running job, if any
func (m *JobManager) Active() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.active {
		return id, true
	}
	return "", false
}

// Subscribe returns the event history of a job and a subscription for live events
func (m *JobManager) Subscribe(id string) ([]domain.ProgressEvent, *Subscription, error) {
	replay, sub, err := m.hub.Subscribe(id)
	if err == nil || !errors.Is(err, domain.ErrJobNotFound) {
		return replay, sub, err
	}
	// Jobs whose stream has been evicted still exist in the history
	if _, findErr := m.repo.FindByID(id); findErr != nil {
		return nil, nil, findErr
	}
	return nil, nil, fmt.Errorf("%w: events no longer available", domain.ErrJobFinished)
}

// Busy reports whether a job is running
func (m *JobManager) Busy() bool {
	return m.orchestrator.Busy()
}

func (m *JobManager) logJobEvent(event string, fields ...zap.Field) {
	if m.multiLogger != nil {
		m.multiLogger.LogJobEvent(event, fields...)
	}
}
