package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/useCases"
)

// progressUpdate is the wire form pushed to connected clients.
type progressUpdate struct {
	UserID   string `json:"user_id"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// ProgressBroadcaster implements the ProgressBroadcaster interface for
// sync progress updates, as a push alternative to polling
// GET /sync/progress.
type ProgressBroadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewProgressBroadcaster(logger *slog.Logger) *ProgressBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressBroadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

var _ useCases.ProgressBroadcaster = (*ProgressBroadcaster)(nil)

// BroadcastProgress pushes one progress transition to every connected
// client, dropping connections that fail to write.
func (b *ProgressBroadcaster) BroadcastProgress(userID string, progress model.SyncProgress) {
	msg, err := json.Marshal(progressUpdate{
		UserID:   userID,
		Progress: progress.Progress,
		Status:   string(progress.Status),
		Message:  progress.Message,
	})
	if err != nil {
		b.logger.Error("failed to marshal progress update", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Debug("websocket write error", "error", err)
			c.Close()
			delete(b.clients, c)
		}
	}
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *ProgressBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Debug("websocket upgrade error", "error", err)
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// Read loop keeps the connection alive and detects closes.
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
