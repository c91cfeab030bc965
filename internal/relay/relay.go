// Package relay carries progress events from a worker goroutine to a single consumer.
package relay

import (
	"sync"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// Relay is an unbounded FIFO of progress events. Producers never block; one pump goroutine
// delivers events to the Events channel in emission order. The consumer must drain Events
// until it is closed.
type Relay struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []domain.ProgressEvent
	closed   bool
	coalesce bool

	out chan domain.ProgressEvent
}

// New creates a relay and starts its pump. With coalesce set, a DOWNLOADING event still
// waiting in the queue is replaced by a newer DOWNLOADING event; other phases are never
// replaced or dropped.
func New(coalesce bool) *Relay {
	r := &Relay{
		coalesce: coalesce,
		out:      make(chan domain.ProgressEvent),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.pump()
	return r
}

// Emit enqueues an event. It returns false once the relay is closed.
func (r *Relay) Emit(ev domain.ProgressEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	if r.coalesce && ev.Phase == domain.PhaseDownloading {
		if n := len(r.queue); n > 0 && r.queue[n-1].Phase == domain.PhaseDownloading {
			r.queue[n-1] = ev
			return true
		}
	}

	r.queue = append(r.queue, ev)
	r.cond.Signal()
	return true
}

// Sink adapts Emit to a domain.ProgressSink
func (r *Relay) Sink() domain.ProgressSink {
	return func(ev domain.ProgressEvent) { r.Emit(ev) }
}

// Events returns the delivery channel. It is closed after Close once every queued event
// has been delivered.
func (r *Relay) Events() <-chan domain.ProgressEvent {
	return r.out
}

// Close stops accepting events. Already queued events are still delivered.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.cond.Broadcast()
}

// Pending returns the number of queued, undelivered events
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Relay) pump() {
	defer close(r.out)

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		ev := r.queue[0]
		r.queue[0] = domain.ProgressEvent{}
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.out <- ev
	}
}
