package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes
	},
}

// TokenValidator is satisfied by service.AuthService
type TokenValidator interface {
	ValidateToken(token string) (*model.UserClaims, error)
}

// ProfileSource supplies the snapshot sent right after connecting
type ProfileSource interface {
	Get(ctx context.Context, readerID string) (*model.ReaderProfile, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	profiles ProfileSource
	log      zerolog.Logger
}

func NewHandler(hub *Hub, tokens TokenValidator, profiles ProfileSource) *Handler {
	return &Handler{
		hub:      hub,
		tokens:   tokens,
		profiles: profiles,
		log:      logging.Component("ws"),
	}
}

// CanWatch reports whether user may follow readerID. Students only see
// themselves; the other roles may look up any reader.
func CanWatch(user model.User, readerID string) bool {
	if user.Role == model.RoleStudent {
		return strings.EqualFold(user.Email, strings.TrimSpace(readerID))
	}
	return true
}

// ReaderWS handles GET /v1/ws/readers/{readerId}
func (h *Handler) ReaderWS(w http.ResponseWriter, r *http.Request) {
	readerID := readerKey(mux.Vars(r)["readerId"])
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	user := claims.User()
	if !CanWatch(user, readerID) {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &Connection{
		ReaderID: readerID,
		Viewer:   user.Email,
		Send:     make(chan []byte, sendBuffer),
	}
	h.sendSnapshot(r.Context(), conn)
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) sendSnapshot(ctx context.Context, conn *Connection) {
	if h.profiles == nil {
		return
	}
	profile, err := h.profiles.Get(ctx, conn.ReaderID)
	if err != nil {
		h.log.Warn().Err(err).Str("reader", conn.ReaderID).Msg("failed to load profile snapshot")
		return
	}
	if profile == nil {
		return
	}
	msg, err := NewMessage(MsgProfileSnapshot, profile)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	conn.Send <- data
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Str("reader", conn.ReaderID).Msg("websocket closed")
			}
			return
		}
		// Subscribers are listen-only
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
