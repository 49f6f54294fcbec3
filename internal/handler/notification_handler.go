package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxSessionLifetime = 15 * time.Minute
	writeWait          = 10 * time.Second // Time allowed to write a message to the peer
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize     = 4 * 1024
	clientBuffer       = 32
)

// WSEvent is one frame of the admin feed.
type WSEvent struct {
	Type         string               `json:"type"` // "notification", "session_expired"
	Notification *broker.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type feedClient struct {
	conn        *websocket.Conn
	userID      uuid.UUID
	send        chan WSEvent
	connectedAt time.Time
}

// NotificationHandler pushes broker notifications to connected admins.
type NotificationHandler struct {
	upgrader websocket.Upgrader
	clients  map[*feedClient]struct{}
	mu       sync.RWMutex
}

func NewNotificationHandler(allowedOrigins []string) *NotificationHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &NotificationHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// GET /api/admin/ws
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &feedClient{
		conn:        conn,
		userID:      admin.ID,
		send:        make(chan WSEvent, clientBuffer),
		connectedAt: time.Now(),
	}
	h.addClient(client)
	defer h.removeClient(client)

	done := make(chan struct{})
	go h.writePump(client, done)
	h.readPump(client)
	close(done)
}

// Run fans notifications from the broker out to every connected admin until
// the channel closes.
func (h *NotificationHandler) Run(notifications <-chan broker.Notification) {
	for n := range notifications {
		n := n
		h.broadcast(WSEvent{Type: "notification", Notification: &n})
	}
	logger.Log.Info("Notification fan-out stopped")
}

// Start subscribes to the broker and runs the fan-out in the background.
func (h *NotificationHandler) Start(ctx context.Context, b broker.NotificationBroker) error {
	ch, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	go h.Run(ch)
	return nil
}

func (h *NotificationHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump discards client frames; it only keeps the read deadline alive
// and notices disconnects.
func (h *NotificationHandler) readPump(client *feedClient) {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket error", zap.String("user_id", client.userID.String()), zap.Error(err))
			}
			return
		}
	}
}

func (h *NotificationHandler) writePump(client *feedClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	sessionTimer := time.NewTimer(maxSessionLifetime)
	defer sessionTimer.Stop()

	for {
		select {
		case <-done:
			return

		case ev := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(ev); err != nil {
				logger.Log.Warn("Failed to send notification", zap.String("user_id", client.userID.String()), zap.Error(err))
				client.conn.Close()
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.conn.Close()
				return
			}

		case <-sessionTimer.C:
			h.closeClientGracefully(client, "session expired after 15 minutes")
			return
		}
	}
}

func (h *NotificationHandler) broadcast(ev WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- ev:
		default:
			logger.Log.Warn("Dropping notification for slow client", zap.String("user_id", client.userID.String()))
		}
	}
}

func (h *NotificationHandler) closeClientGracefully(client *feedClient, reason string) {
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = client.conn.WriteJSON(WSEvent{Type: "session_expired", Error: reason})

	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = client.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
	)
	// Unblocks readPump.
	client.conn.Close()
}

func (h *NotificationHandler) addClient(client *feedClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	logger.Log.Info("Admin feed connected",
		zap.String("user_id", client.userID.String()),
		zap.Int("total", total),
	)
}

func (h *NotificationHandler) removeClient(client *feedClient) {
	h.mu.Lock()
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	client.conn.Close()
	logger.Log.Info("Admin feed disconnected",
		zap.String("user_id", client.userID.String()),
		zap.Duration("session_duration", time.Since(client.connectedAt).Round(time.Second)),
		zap.Int("remaining", total),
	)
}
