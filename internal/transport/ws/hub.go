package ws

import (
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/metrics"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgProfileSnapshot MessageType = "profile_snapshot"
	MsgError           MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans reader updates out to every dashboard watching that reader.
// A student and a parent may watch the same reader at once.
type Hub struct {
	readers map[string]map[*Connection]struct{}
	mu      sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	stopOnce   sync.Once

	log zerolog.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	ReaderID string
	Viewer   string
	Send     chan []byte
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	ReaderID string
	Message  *Message
}

func NewHub() *Hub {
	h := &Hub{
		readers:    make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        logging.Component("ws"),
	}
	go h.run()
	return h
}

func readerKey(readerID string) string {
	return strings.ToLower(strings.TrimSpace(readerID))
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for key, conns := range h.readers {
				for conn := range conns {
					close(conn.Send)
					metrics.WSConnections.Dec()
				}
				delete(h.readers, key)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			key := readerKey(conn.ReaderID)
			h.mu.Lock()
			if h.readers[key] == nil {
				h.readers[key] = make(map[*Connection]struct{})
			}
			h.readers[key][conn] = struct{}{}
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			h.log.Debug().Str("reader", key).Str("viewer", conn.Viewer).Msg("subscriber connected")

		case conn := <-h.unregister:
			key := readerKey(conn.ReaderID)
			h.mu.Lock()
			if conns, ok := h.readers[key]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					metrics.WSConnections.Dec()
					if len(conns) == 0 {
						delete(h.readers, key)
					}
					h.log.Debug().Str("reader", key).Str("viewer", conn.Viewer).Msg("subscriber disconnected")
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.log.Error().Err(err).Msg("failed to encode message")
				continue
			}
			h.mu.RLock()
			for conn := range h.readers[readerKey(msg.ReaderID)] {
				select {
				case conn.Send <- data:
				default:
					// Slow subscriber, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Subscribers reports how many connections watch a reader
func (h *Hub) Subscribers(readerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.readers[readerKey(readerID)])
}

// BroadcastToReader implements service.Broadcaster. It never blocks; updates
// are dropped when the queue is full or the hub is stopped.
func (h *Hub) BroadcastToReader(readerID string, msgType string, payload interface{}) {
	msg, err := NewMessage(MessageType(msgType), payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("failed to encode payload")
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{ReaderID: readerID, Message: msg}:
	case <-h.done:
	default:
		h.log.Warn().Str("reader", readerID).Str("type", msgType).Msg("broadcast queue full, dropping update")
	}
}

// Stop closes every connection and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: data}, nil
}
