package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// streamPollInterval is how often the stream handler re-reads the record
// between pushes. Clients only see a message when something changed.
const streamPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same trust model as the poll endpoint
	},
}

// handleStream pushes a status snapshot over a websocket whenever the
// job's state advances, and closes after the first terminal snapshot.
// The poll endpoint remains the primary contract; this is a convenience
// for clients that want progress without polling.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var lastUpdated time.Time
	for {
		rec, ok := s.store.Get(id)
		if !ok {
			// Evicted or consumed while streaming.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "job evicted"),
				time.Now().Add(time.Second))
			return
		}

		snap := rec.Snapshot()
		if snap.UpdatedAt.After(lastUpdated) {
			lastUpdated = snap.UpdatedAt
			if err := conn.WriteJSON(statusFromSnapshot(snap)); err != nil {
				return
			}
			if snap.Status.Terminal() {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
