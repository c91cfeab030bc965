package app

import (
	"sync"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

const (
	// DefaultSubscriberBuffer is how many events a subscriber may fall behind before it is dropped
	DefaultSubscriberBuffer = 256
	// DefaultRetainedStreams is how many finished job streams stay available for replay
	DefaultRetainedStreams = 16
)

// EventHub fans the events of each job out to any number of subscribers.
// Every stream keeps a history so late subscribers get a replay before live events.
type EventHub struct {
	mu         sync.Mutex
	streams    map[string]*stream
	finished   []string // closed stream IDs, oldest first
	retain     int
	bufferSize int
}

type stream struct {
	history []domain.ProgressEvent
	subs    map[*Subscription]struct{}
	closed  bool
}

// Subscription is one consumer of a job stream. C is closed when the job ends, when the
// subscriber falls too far behind, or on Unsubscribe.
type Subscription struct {
	C <-chan domain.ProgressEvent

	ch    chan domain.ProgressEvent
	hub   *EventHub
	jobID string
	once  sync.Once
}

// NewEventHub creates a hub. Zero values select the defaults.
func NewEventHub(retain, bufferSize int) *EventHub {
	if retain <= 0 {
		retain = DefaultRetainedStreams
	}
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &EventHub{
		streams:    make(map[string]*stream),
		retain:     retain,
		bufferSize: bufferSize,
	}
}

// Open registers a job stream. Opening an existing stream is a no-op.
func (h *EventHub) Open(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[jobID]; ok {
		return
	}
	h.streams[jobID] = &stream{subs: make(map[*Subscription]struct{})}
}

// Publish appends an event to the job history and delivers it to subscribers.
// Consecutive DOWNLOADING events collapse to the newest one in the history.
func (h *EventHub) Publish(jobID string, ev domain.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[jobID]
	if !ok || s.closed {
		return
	}

	if n := len(s.history); n > 0 && ev.Phase == domain.PhaseDownloading && s.history[n-1].Phase == domain.PhaseDownloading {
		s.history[n-1] = ev
	} else {
		s.history = append(s.history, ev)
	}

	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			// Drop slow subscribers, a subscriber never sees a gap
			delete(s.subs, sub)
			sub.close()
		}
	}
}

// Close ends a job stream. Subscribers see their channel closed after the last event.
func (h *EventHub) Close(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[jobID]
	if !ok || s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.close()
	}
	s.subs = nil

	h.finished = append(h.finished, jobID)
	for len(h.finished) > h.retain {
		delete(h.streams, h.finished[0])
		h.finished = h.finished[1:]
	}
}

// Subscribe returns the history of a job and a subscription for the events that follow it.
// For a finished job the subscription channel is already closed.
func (h *EventHub) Subscribe(jobID string) ([]domain.ProgressEvent, *Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[jobID]
	if !ok {
		return nil, nil, domain.ErrJobNotFound
	}

	replay := make([]domain.ProgressEvent, len(s.history))
	copy(replay, s.history)

	ch := make(chan domain.ProgressEvent, h.bufferSize)
	sub := &Subscription{C: ch, ch: ch, hub: h, jobID: jobID}
	if s.closed {
		sub.close()
	} else {
		s.subs[sub] = struct{}{}
	}
	return replay, sub, nil
}

// Has reports whether the hub still holds a stream for the job
func (h *EventHub) Has(jobID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.streams[jobID]
	return ok
}

// Unsubscribe detaches the subscription and closes its channel
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if st, ok := s.hub.streams[s.jobID]; ok && st.subs != nil {
		delete(st.subs, s)
	}
	s.close()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}
