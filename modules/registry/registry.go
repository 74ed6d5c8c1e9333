// Package registry tracks live WebSocket connections and delivers outbound
// events to them through per-connection queues.
package registry

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// ErrConnectionNotFound is returned by Send when the connection ID is not
// registered. Callers treat it as "member already gone", never as fatal.
var ErrConnectionNotFound = errors.New("connection not found")

// AnonymousName is the display name used for sessions without an identity.
const AnonymousName = "Anonymous"

// defaultQueueSize is the outbound queue capacity per connection. A full
// queue drops events instead of blocking the sender.
const defaultQueueSize = 256

// Conn is the transport side of a session. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Event is a named, JSON-shaped payload delivered to clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Session binds a live connection to an identity. Sessions exist only for
// the lifetime of the connection and are never persisted.
type Session struct {
	ID          string
	UserID      string
	DisplayName string
	Role        string

	conn   Conn
	queue  chan []byte
	mu     sync.Mutex
	closed bool
}

// enqueue hands data to the session's writer. It never blocks: a closed
// session ignores the event and a full queue drops it.
func (s *Session) enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- data:
		return true
	default:
		return false
	}
}

// close marks the session closed and stops its writer.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

// writeLoop drains the outbound queue onto the connection. It exits when the
// queue is closed or the transport write fails.
func (s *Session) writeLoop() {
	for data := range s.queue {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// Registry tracks live sessions and the reverse index from user ID to the
// connections currently bound to that user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
	logger   types.Logger
}

// New creates an empty Registry.
func New(logger types.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Register allocates a session for a new connection and starts its writer.
// userID may be empty for anonymous connections. Register never fails.
func (r *Registry) Register(conn Conn, userID, displayName, role string) *Session {
	if displayName == "" {
		displayName = AnonymousName
	}
	s := &Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		conn:        conn,
		queue:       make(chan []byte, defaultQueueSize),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	if userID != "" {
		r.bindLocked(s.ID, userID)
	}
	r.mu.Unlock()

	go s.writeLoop()

	r.logger.Info("Connection registered", "connID", s.ID, "userID", userID)
	return s
}

// Deregister removes a session and its reverse-index entries. It is
// idempotent: deregistering an unknown ID is a no-op.
func (r *Registry) Deregister(connID string) {
	r.mu.Lock()
	s, ok := r.sessions[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, connID)
	for userID, conns := range r.byUser {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
	r.mu.Unlock()

	s.close()
	r.logger.Info("Connection deregistered", "connID", connID)
}

// Send enqueues an event for delivery to one connection. Delivery is
// fire-and-forget; no acknowledgment is awaited.
func (r *Registry) Send(connID string, event Event) error {
	r.mu.RLock()
	s, ok := r.sessions[connID]
	r.mu.RUnlock()
	if !ok {
		return ErrConnectionNotFound
	}

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal event", "event", event.Event, "error", err)
		return nil
	}

	if !s.enqueue(data) {
		r.logger.Warn("Dropped event for slow or closed connection",
			"connID", connID, "event", event.Event)
	}
	return nil
}

// BindUser adds connID to the reverse index for userID. Joining the room
// keyed by your own user ID and binding here are the same act seen from the
// two sides of the registry.
func (r *Registry) BindUser(connID, userID string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[connID]; !ok {
		return
	}
	r.bindLocked(connID, userID)
}

func (r *Registry) bindLocked(connID, userID string) {
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
}

// Connections returns the connection IDs currently bound to userID.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	result := make([]string, 0, len(conns))
	for id := range conns {
		result = append(result, id)
	}
	return result
}

// Session returns the session for connID.
func (r *Registry) Session(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
