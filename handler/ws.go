package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventsHandler struct {
	store       service.ReviewStore
	broadcaster *service.StatusBroadcaster
}

func NewEventsHandler(store service.ReviewStore, broadcaster *service.StatusBroadcaster) *EventsHandler {
	return &EventsHandler{store: store, broadcaster: broadcaster}
}

// Subscribe upgrades the connection and streams status snapshots for one
// submission until it reaches a terminal state or the client disconnects.
// The current snapshot is sent first so late subscribers see where the
// submission stands; history is not replayed.
func (h *EventsHandler) Subscribe(c *gin.Context) {
	id := c.Param("id")

	// Subscribe before reading the current snapshot so a transition in
	// between is not lost; a duplicate snapshot is harmless
	updates, cancel := h.broadcaster.Subscribe(id)
	defer cancel()

	current, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load review"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(current); err != nil {
		slog.Warn("failed to write snapshot", "submission_id", id, "error", err)
		return
	}
	if model.IsTerminal(current.Status) {
		return
	}

	// Reads only surface client disconnects; incoming payloads are ignored
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot, open := <-updates:
			if !open {
				return
			}
			if err := ws.WriteJSON(snapshot); err != nil {
				slog.Warn("failed to write snapshot", "submission_id", id, "error", err)
				return
			}
			if model.IsTerminal(snapshot.Status) {
				return
			}
		case <-disconnected:
			slog.Debug("websocket client disconnected", "submission_id", id)
			return
		}
	}
}
