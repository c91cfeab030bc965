package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// CloseReasonTooSlow is the close reason sent when the client fell behind a running job
const CloseReasonTooSlow = "subscriber too slow"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the server binds to localhost by default
	},
}

// EventMessage is one websocket frame of a job stream
type EventMessage struct {
	JobID   string               `json:"job_id"`
	Event   domain.ProgressEvent `json:"event"`
	Percent float64              `json:"percent"`
}

// JobEventsHandler streams job events over websockets
type JobEventsHandler struct {
	jobs   JobService
	logger *zap.Logger
}

// NewJobEventsHandler creates a new websocket handler
func NewJobEventsHandler(jobs JobService, log *zap.Logger) *JobEventsHandler {
	return &JobEventsHandler{
		jobs:   jobs,
		logger: log,
	}
}

// HandleWebSocket handles GET /api/v1/jobs/:id/events. The client first receives the
// events so far, then live events; the server closes the socket when the job ends.
func (h *JobEventsHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	replay, sub, err := h.jobs.Subscribe(id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket client connected",
		zap.String("job_id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	for _, ev := range replay {
		if err := h.write(conn, id, ev); err != nil {
			return
		}
	}

	// Read messages from client so pongs and close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, h.closeMessage(id), time.Now().Add(writeWait))
				return
			}
			if err := h.write(conn, id, ev); err != nil {
				h.logger.Debug("Failed to send job event", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// closeMessage tells a dropped subscriber apart from the end of the job.
// The hub only closes a stream after the job has left the active set.
func (h *JobEventsHandler) closeMessage(id string) []byte {
	if active, ok := h.jobs.Active(); ok && active == id {
		h.logger.Warn("Dropped slow WebSocket subscriber", zap.String("job_id", id))
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, CloseReasonTooSlow)
	}
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
}

func (h *JobEventsHandler) write(conn *websocket.Conn, id string, ev domain.ProgressEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(EventMessage{JobID: id, Event: ev, Percent: ev.Percent()})
}
