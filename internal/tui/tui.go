// Package tui provides the Bubble Tea progress view for a single download.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jphed/youtube-video-music-downloader/internal/app"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
)

const maxLogLines = 8

// State represents the current UI state.
type State int

const (
	StateStarting State = iota
	StateDownloading
	StateProcessing
	StateDone
	StateFailed
)

// Starter launches a job; implemented by app.Orchestrator.
type Starter interface {
	Start(ctx context.Context, req domain.DownloadRequest) (*app.Job, error)
}

// Options tune the view.
type Options struct {
	Verbose bool // show DEBUG log lines
}

// Model is the Bubble Tea model for one download.
type Model struct {
	state    State
	starter  Starter
	request  domain.DownloadRequest
	options  Options
	spinner  spinner.Model
	progress progress.Model
	logs     []domain.ProgressEvent
	last     domain.ProgressEvent
	status   string

	ctx        context.Context
	cancel     context.CancelFunc
	job        *app.Job
	cancelling bool

	result domain.JobResult
	err    error
}

// Message types
type (
	// jobStartedMsg is sent once the orchestrator accepted or rejected the request.
	jobStartedMsg struct {
		job *app.Job
		err error
	}

	// EventMsg carries one job event to the model.
	EventMsg struct {
		Event domain.ProgressEvent
	}

	// streamClosedMsg is sent after the last job event.
	streamClosedMsg struct{}

	// ResultMsg carries the terminal result of the job.
	ResultMsg struct {
		Result domain.JobResult
	}
)

// NewModel creates a model that starts req when the program starts.
func NewModel(starter Starter, req domain.DownloadRequest, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:    StateStarting,
		starter:  starter,
		request:  req,
		options:  opts,
		spinner:  sp,
		progress: prog,
		status:   "Starting...",
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startJob())
}

func (m Model) startJob() tea.Cmd {
	return func() tea.Msg {
		job, err := m.starter.Start(m.ctx, m.request)
		return jobStartedMsg{job: job, err: err}
	}
}

// waitForEvent delivers the next job event, one at a time, to Update.
func waitForEvent(job *app.Job) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-job.Events()
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func waitForResult(job *app.Job) tea.Cmd {
	return func() tea.Msg {
		return ResultMsg{Result: job.Result()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.job == nil || m.state == StateDone || m.state == StateFailed {
				m.cancel()
				return m, tea.Quit
			}
			// Keep draining so the result is still reported
			m.cancelling = true
			m.status = "Cancelling..."
			m.cancel()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case jobStartedMsg:
		if msg.err != nil {
			m.state = StateFailed
			m.err = msg.err
			return m, tea.Quit
		}
		m.job = msg.job
		cmds = append(cmds, waitForEvent(m.job))

	case EventMsg:
		cmds = append(cmds, m.applyEvent(msg.Event))
		if m.job != nil {
			cmds = append(cmds, waitForEvent(m.job))
		}

	case streamClosedMsg:
		cmds = append(cmds, waitForResult(m.job))

	case ResultMsg:
		m.result = msg.Result
		if msg.Result.Success {
			m.state = StateDone
			m.status = "Done. Saved to: " + msg.Result.SavedPath
		} else {
			m.state = StateFailed
			m.status = failureStatus(msg.Result)
		}
		m.cancel()
		return m, tea.Quit

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// applyEvent folds one event into the model
func (m *Model) applyEvent(ev domain.ProgressEvent) tea.Cmd {
	switch ev.Phase {
	case domain.PhaseDownloading:
		m.state = StateDownloading
		m.last = ev
		if !m.cancelling {
			m.status = "Downloading..."
		}
		return m.progress.SetPercent(ev.Percent() / 100)
	case domain.PhaseFinished:
		m.state = StateProcessing
		m.status = "Download complete. Processing..."
		return m.progress.SetPercent(1)
	case domain.PhaseLog:
		if ev.Level == domain.LevelDebug && !m.options.Verbose {
			return nil
		}
		m.logs = append(m.logs, ev)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	}
	return nil
}

func failureStatus(result domain.JobResult) string {
	switch result.Kind {
	case domain.FailureInvalidInput:
		return "Invalid request: " + result.Detail
	case domain.FailureMissingTranscoder:
		return result.Detail
	case domain.FailureCancelled:
		return "Download cancelled"
	default:
		return "Download failed: " + result.Detail
	}
}

// Result returns the job outcome once the program has exited. The error is set when the
// job could not be started at all.
func (m Model) Result() (domain.JobResult, error) {
	return m.result, m.err
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ytmd"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s  [%s %s]", m.request.URL, m.request.Container, m.request.Quality)))
	b.WriteString("\n\n")

	switch m.state {
	case StateStarting:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(infoStyle.Render(m.status))
		b.WriteString("\n")
	case StateDownloading, StateProcessing:
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(Describe(m.last)))
		b.WriteString("\n")
		if m.state == StateProcessing {
			b.WriteString(m.spinner.View())
			b.WriteString(" ")
		}
		b.WriteString(infoStyle.Render(m.status))
		b.WriteString("\n")
	case StateDone:
		b.WriteString(successStyle.Render("✓ " + m.status))
		b.WriteString("\n")
	case StateFailed:
		if m.err != nil {
			b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		} else {
			b.WriteString(errorStyle.Render("✗ " + m.status))
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}

	if m.state != StateDone && m.state != StateFailed {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("ctrl+c: cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, ev := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch ev.Level {
		case domain.LevelError:
			style = errorStyle
			prefix = "✗"
		case domain.LevelWarning:
			style = warningStyle
			prefix = "!"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + ev.Message))
		b.WriteString("\n")
	}

	return b.String()
}

// Describe renders the transfer figures of a DOWNLOADING event, e.g.
// "12 MB / 48 MB  1.2 MB/s  ETA 30s".
func Describe(ev domain.ProgressEvent) string {
	if ev.Phase != domain.PhaseDownloading {
		return ""
	}

	parts := []string{}
	if ev.BytesTotal > 0 {
		parts = append(parts, fmt.Sprintf("%s / %s", humanize.Bytes(uint64(ev.BytesDone)), humanize.Bytes(uint64(ev.BytesTotal))))
	} else {
		parts = append(parts, humanize.Bytes(uint64(ev.BytesDone)))
	}
	if ev.SpeedBps > 0 {
		parts = append(parts, humanize.Bytes(uint64(ev.SpeedBps))+"/s")
	}
	if ev.ETASeconds >= 0 {
		parts = append(parts, "ETA "+(time.Duration(ev.ETASeconds)*time.Second).String())
	}
	return strings.Join(parts, "  ")
}

// Run starts the TUI for one request and returns the job outcome.
func Run(starter Starter, req domain.DownloadRequest, opts Options) (domain.JobResult, error) {
	p := tea.NewProgram(NewModel(starter, req, opts))
	final, err := p.Run()
	if err != nil {
		return domain.JobResult{}, err
	}
	return final.(Model).Result()
}
