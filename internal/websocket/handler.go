package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"lectern/internal/config"
	"lectern/internal/hub"
	"lectern/internal/session"
	"lectern/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is deferred to the deployment's reverse proxy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades observer requests and attaches them to the broadcast hub.
type Handler struct {
	registry *session.Registry
	hub      *hub.Hub
	cfg      config.WebSocketConfig
}

// NewHandler creates a WebSocket handler for live assessment observers.
func NewHandler(registry *session.Registry, h *hub.Hub, cfg config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		hub:      h,
		cfg:      cfg,
	}
}

// HandleWebSocket validates the requested assessment, upgrades the connection
// and subscribes it to the session's event stream. Validation happens before
// the upgrade so invalid requests get proper HTTP status codes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessment_id")
	if assessmentID == "" {
		http.Error(w, "Missing required query parameter: assessment_id", http.StatusBadRequest)
		return
	}
	if !types.IsValidSessionID(assessmentID) {
		http.Error(w, "Invalid assessment_id format", http.StatusBadRequest)
		return
	}

	if _, err := h.registry.Get(assessmentID); err != nil {
		http.Error(w, "Assessment not found or already finished", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.SendBuffer, h.cfg.WriteTimeout)

	sub, err := h.hub.Subscribe(assessmentID, wsConn)
	if err != nil {
		log.Printf("Failed to subscribe observer session_id=%s: %v", assessmentID, err)
		_ = wsConn.Close()
		return
	}

	go h.handleConnection(wsConn, sub)
}

// handleConnection owns the read side of an observer connection. Observers
// never send application messages; the read loop exists to detect disconnects
// and to service the ping/pong heartbeat.
func (h *Handler) handleConnection(conn *Connection, sub *hub.Subscription) {
	defer func() {
		h.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Observer connection error session_id=%s: %v", sub.SessionID(), err)
			}
			return
		}
	}
}
