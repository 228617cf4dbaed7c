package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	// Origins are enforced by the CORS middleware configuration
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream handles GET /ws/{jobId} - pushes progress events until the
// terminal one, then closes the socket
func (h *RelayHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	// A viewer going away must not cancel the job it watches.
	events, err := h.service.Events(context.WithoutCancel(r.Context()), jobID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to stream status")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("WebSocket read error", zap.String("job_id", jobID), zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				return
			}

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("WebSocket write error", zap.String("job_id", jobID), zap.Error(err))
				return
			}
		}
	}
}
