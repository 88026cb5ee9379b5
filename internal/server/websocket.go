package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eduscan/markscan/internal/jobs"
)

// watchPollInterval is how often a watch connection re-reads the job.
const watchPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS middleware on the REST surface;
		// the watch endpoint mirrors that policy via corsOrigin "*".
		return true
	},
}

// WatchMessage is a job snapshot pushed over a watch connection.
type WatchMessage struct {
	Type  string       `json:"type"` // "job" or "error"
	Job   *JobResponse `json:"job,omitempty"`
	Error string       `json:"error,omitempty"`
}

// jobWatchHandler upgrades the connection and streams job snapshots until
// the job reaches a terminal status or the client goes away.
func (s *Server) jobWatchHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	j, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			s.writeError(w, "Job not found", http.StatusNotFound)
			return
		}
		s.writeError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("Job watch connection established", "job_id", id, "remote_addr", r.RemoteAddr)

	// Drain client frames so close handshakes are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("Job watch read error", "job_id", id, "error", err)
				}
				return
			}
			websocketMessagesTotal.WithLabelValues("received").Inc()
		}
	}()

	s.streamJob(r, conn, j, clientGone)
}

// streamJob pushes the current snapshot, then polls the store and pushes a
// new snapshot whenever the status changes.
func (s *Server) streamJob(r *http.Request, conn *websocket.Conn, j *jobs.Job, clientGone <-chan struct{}) {
	last := j.Status
	if !s.sendSnapshot(conn, j) {
		return
	}
	if last.Terminal() {
		s.closeWatch(conn)
		return
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		cur, err := s.orchestrator.Status(r.Context(), j.ID)
		if err != nil {
			s.sendWatchError(conn, "Failed to load job")
			return
		}
		if cur.Status == last {
			continue
		}
		last = cur.Status
		if !s.sendSnapshot(conn, cur) {
			return
		}
		if last.Terminal() {
			s.closeWatch(conn)
			return
		}
	}
}

func (s *Server) sendSnapshot(conn *websocket.Conn, j *jobs.Job) bool {
	resp, err := jobResponse(j)
	if err != nil {
		s.sendWatchError(conn, "Failed to decode job result")
		return false
	}
	return s.sendWatchMessage(conn, WatchMessage{Type: "job", Job: &resp})
}

func (s *Server) sendWatchError(conn *websocket.Conn, msg string) {
	s.sendWatchMessage(conn, WatchMessage{Type: "error", Error: msg})
}

func (s *Server) sendWatchMessage(conn *websocket.Conn, msg WatchMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal watch message", "error", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send watch message", "error", err)
		return false
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return true
}

func (s *Server) closeWatch(conn *websocket.Conn) {
	deadline := time.Now().Add(5 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
