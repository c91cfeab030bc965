package domain

import "fmt"

// Phase tags a ProgressEvent
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
	PhaseLog         Phase = "log"
)

// LogLevel is the severity of a LOG event
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// ProgressEvent is one update from a running fetch. Only the fields of its Phase are set.
type ProgressEvent struct {
	Phase Phase `json:"phase"`

	BytesTotal int64   `json:"bytes_total,omitempty"`
	BytesDone  int64   `json:"bytes_done,omitempty"`
	SpeedBps   float64 `json:"speed_bps,omitempty"`
	ETASeconds int64   `json:"eta_seconds"` // -1 when unknown

	Level   LogLevel `json:"level,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ProgressSink receives events for a job
type ProgressSink func(ProgressEvent)

// DownloadingEvent builds a DOWNLOADING event
func DownloadingEvent(total, done int64, speed float64, eta int64) ProgressEvent {
	return ProgressEvent{
		Phase:      PhaseDownloading,
		BytesTotal: total,
		BytesDone:  done,
		SpeedBps:   speed,
		ETASeconds: eta,
	}
}

// FinishedEvent builds a FINISHED event
func FinishedEvent() ProgressEvent {
	return ProgressEvent{Phase: PhaseFinished, ETASeconds: -1}
}

// LogEvent builds a LOG event
func LogEvent(level LogLevel, format string, args ...interface{}) ProgressEvent {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return ProgressEvent{Phase: PhaseLog, Level: level, Message: msg, ETASeconds: -1}
}

// Percent returns completion in [0, 100]; 0 when the total is unknown
func (e ProgressEvent) Percent() float64 {
	if e.Phase == PhaseFinished {
		return 100
	}
	if e.BytesTotal <= 0 {
		return 0
	}
	p := float64(e.BytesDone) / float64(e.BytesTotal) * 100
	if p > 100 {
		return 100
	}
	return p
}
