package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/format"
	"github.com/jphed/youtube-video-music-downloader/internal/relay"
)

// OutputTemplate names files after the item title
const OutputTemplate = "%(title)s.%(ext)s"

// Finalizer is called once per job with its terminal result, after the in-flight slot is released
type Finalizer func(job *Job, result domain.JobResult)

// OrchestratorConfig contains per-job settings that do not come from the request
type OrchestratorConfig struct {
	OutputDir         string
	RestrictFilenames bool
	Coalesce          bool
}

// Orchestrator runs one download at a time: plan, locate tools, degrade, fetch, classify
type Orchestrator struct {
	fetcher    domain.Fetcher
	locator    domain.ToolLocator
	config     OrchestratorConfig
	logger     *zap.Logger
	finalizers []Finalizer

	slot  chan struct{} // single in-flight job
	mu    sync.RWMutex
	state domain.JobState
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	fetcher domain.Fetcher,
	locator domain.ToolLocator,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		locator: locator,
		config:  config,
		logger:  logger,
		slot:    make(chan struct{}, 1),
		state:   domain.StateIdle,
	}
}

// OnFinish registers a hook run during finalization. Hooks must be registered before the
// first job starts.
func (o *Orchestrator) OnFinish(f Finalizer) {
	o.finalizers = append(o.finalizers, f)
}

// State returns the current orchestrator state
func (o *Orchestrator) State() domain.JobState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Busy reports whether a job holds the in-flight slot
func (o *Orchestrator) Busy() bool {
	return len(o.slot) > 0
}

func (o *Orchestrator) setState(job *Job, state domain.JobState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.logger.Debug("Job state changed",
		zap.String("id", job.ID),
		zap.String("state", string(state)))
}

// Start plans the request and launches the fetch on a background goroutine.
// It fails only with ErrJobInFlight. An invalid request yields a job that is already
// complete with an InvalidInput result; no goroutine is started for it.
func (o *Orchestrator) Start(ctx context.Context, req domain.DownloadRequest) (*Job, error) {
	select {
	case o.slot <- struct{}{}:
	default:
		return nil, domain.ErrJobInFlight
	}

	job := newJob(req)
	o.setState(job, domain.StatePlanning)

	o.logger.Info("Planning download",
		zap.String("id", job.ID),
		zap.String("url", req.URL),
		zap.String("container", string(req.Container)),
		zap.String("quality", req.Quality))

	plan, err := o.plan(req)
	if err != nil {
		result := domain.Failed(domain.FailureInvalidInput, err.Error())
		job.completeImmediately(domain.LogEvent(domain.LevelError, "%s", result.Detail))
		o.finalize(job, result)
		return job, nil
	}

	r := relay.New(o.config.Coalesce)
	job.events = r.Events()

	tools := o.locator.Locate()
	degraded := false
	switch {
	case tools.Found():
		r.Emit(domain.LogEvent(domain.LevelDebug, "Using FFmpeg dir: %s", tools.Dir))
	case req.Container == domain.ContainerVideo:
		o.setState(job, domain.StateDegrading)
		r.Emit(domain.LogEvent(domain.LevelWarning, "FFmpeg not found on PATH or in known install locations"))
		if plan, degraded = format.Degrade(req, plan); degraded {
			r.Emit(domain.LogEvent(domain.LevelWarning, "No FFmpeg detected: using progressive MP4 (no merge) format"))
		}
	default:
		r.Emit(domain.LogEvent(domain.LevelWarning, "FFmpeg not found: MP3 conversion requires ffmpeg and ffprobe"))
	}

	job.config = domain.JobConfig{
		URL:               req.URL,
		Container:         req.Container,
		Plan:              plan,
		Tools:             tools,
		OutputDir:         o.config.OutputDir,
		OutputTemplate:    filepath.Join(o.config.OutputDir, OutputTemplate),
		NoPlaylist:        true,
		Quiet:             true,
		NoWarnings:        true,
		RestrictFilenames: o.config.RestrictFilenames,
		Degraded:          degraded,
	}

	runCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel

	o.setState(job, domain.StateRunning)
	o.logger.Info("Starting download",
		zap.String("id", job.ID),
		zap.String("format", plan.Selector),
		zap.Bool("degraded", degraded),
		zap.String("ffmpeg_dir", tools.Dir))

	go o.execute(runCtx, job, r)

	return job, nil
}

// Run starts a job and drains its events into sink on the calling goroutine until the job
// finishes. It fails only with ErrJobInFlight.
func (o *Orchestrator) Run(ctx context.Context, req domain.DownloadRequest, sink domain.ProgressSink) (domain.JobResult, error) {
	job, err := o.Start(ctx, req)
	if err != nil {
		return domain.JobResult{}, err
	}
	for ev := range job.Events() {
		if sink != nil {
			sink(ev)
		}
	}
	return job.Result(), nil
}

func (o *Orchestrator) plan(req domain.DownloadRequest) (domain.FormatPlan, error) {
	if err := req.Validate(); err != nil {
		return domain.FormatPlan{}, err
	}
	plan, err := format.Select(req.Container, req.Quality)
	if err != nil {
		return domain.FormatPlan{}, fmt.Errorf("invalid request: %w", err)
	}
	return plan, nil
}

func (o *Orchestrator) execute(ctx context.Context, job *Job, r *relay.Relay) {
	var (
		mu   sync.Mutex
		last domain.Phase
	)
	sink := func(ev domain.ProgressEvent) {
		mu.Lock()
		last = ev.Phase
		mu.Unlock()
		r.Emit(ev)
	}

	var result domain.JobResult
	defer func() {
		r.Close()
		o.finalize(job, result)
	}()

	savedPath, err := o.fetch(ctx, job.config, sink)
	if err != nil {
		result = Classify(job.Request.Container, err)
		r.Emit(domain.LogEvent(domain.LevelError, "%s", result.Detail))
		return
	}

	mu.Lock()
	finished := last == domain.PhaseFinished
	mu.Unlock()
	if !finished {
		r.Emit(domain.FinishedEvent())
	}
	result = domain.Succeeded(savedPath)
}

// fetch calls the fetcher, turning a panic into an error
func (o *Orchestrator) fetch(ctx context.Context, cfg domain.JobConfig, sink domain.ProgressSink) (savedPath string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetcher panic: %v", rec)
		}
	}()
	return o.fetcher.Fetch(ctx, cfg, sink)
}

func (o *Orchestrator) finalize(job *Job, result domain.JobResult) {
	job.result = result
	if job.cancel != nil {
		job.cancel()
	}

	o.setState(job, result.State())
	if result.Success {
		o.logger.Info("Download completed",
			zap.String("id", job.ID),
			zap.String("file", result.SavedPath))
	} else {
		o.logger.Warn("Download failed",
			zap.String("id", job.ID),
			zap.String("kind", string(result.Kind)),
			zap.String("detail", result.Detail))
	}

	o.setState(job, domain.StateIdle)
	<-o.slot

	for _, f := range o.finalizers {
		f(job, result)
	}
	close(job.done)
}

// Job is a started download. Events must be drained until closed.
type Job struct {
	ID      string
	Request domain.DownloadRequest

	config domain.JobConfig
	events <-chan domain.ProgressEvent
	done   chan struct{}
	result domain.JobResult
	cancel context.CancelFunc
}

func newJob(req domain.DownloadRequest) *Job {
	return &Job{
		ID:      uuid.New().String(),
		Request: req,
		done:    make(chan struct{}),
	}
}

// completeImmediately gives a job that never ran a closed event stream holding ev
func (j *Job) completeImmediately(ev domain.ProgressEvent) {
	ch := make(chan domain.ProgressEvent, 1)
	ch <- ev
	close(ch)
	j.events = ch
}

// Events returns the ordered event stream of the job
func (j *Job) Events() <-chan domain.ProgressEvent {
	return j.events
}

// Done is closed once the job is finalized
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result blocks until the job is finalized and returns its outcome
func (j *Job) Result() domain.JobResult {
	<-j.done
	return j.result
}

// Config returns the fetch configuration. It is empty for jobs rejected during planning.
func (j *Job) Config() domain.JobConfig {
	return j.config
}

// Cancel asks the running fetch to stop
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}
