// Package rooms maintains room membership sets and performs fan-out to the
// connection registry.
package rooms

import (
	"errors"
	"sync"

	"github.com/example/support-chat/modules/registry"
	"github.com/go-monolith/mono/pkg/types"
)

// SupportRoom is the well-known key of the permanent shared support room.
const SupportRoom = "live_support"

// Manager maintains room membership. Private "rooms" are keyed by a user ID
// (each party's own mailbox); the support room is a singleton that is never
// deleted, even when empty.
type Manager struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomKey -> set of connIDs
	reg     *registry.Registry
	logger  types.Logger
}

// NewManager creates a Manager with the support room pre-created.
func NewManager(reg *registry.Registry, logger types.Logger) *Manager {
	m := &Manager{
		members: make(map[string]map[string]struct{}),
		reg:     reg,
		logger:  logger,
	}
	m.members[SupportRoom] = make(map[string]struct{})
	return m
}

// Join adds a connection to a room, creating the room if absent.
func (m *Manager) Join(connID, roomKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[roomKey] == nil {
		m.members[roomKey] = make(map[string]struct{})
	}
	m.members[roomKey][connID] = struct{}{}
}

// Leave removes a connection from a room. Rooms other than the support
// singleton are deleted when their membership reaches zero.
func (m *Manager) Leave(connID, roomKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(connID, roomKey)
}

func (m *Manager) leaveLocked(connID, roomKey string) {
	conns, ok := m.members[roomKey]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 && roomKey != SupportRoom {
		delete(m.members, roomKey)
	}
}

// LeaveAll removes a connection from every room it belongs to and returns
// the keys of the rooms it left. Called on disconnect, before the handler
// returns, so no room observes a phantom member.
func (m *Manager) LeaveAll(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var left []string
	for roomKey, conns := range m.members {
		if _, ok := conns[connID]; !ok {
			continue
		}
		left = append(left, roomKey)
		m.leaveLocked(connID, roomKey)
	}
	return left
}

// IsMember reports whether connID belongs to roomKey.
func (m *Manager) IsMember(connID, roomKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[roomKey][connID]
	return ok
}

// Members returns a snapshot of a room's member connection IDs.
func (m *Manager) Members(roomKey string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := m.members[roomKey]
	if len(conns) == 0 {
		return nil
	}
	result := make([]string, 0, len(conns))
	for id := range conns {
		result = append(result, id)
	}
	return result
}

// Count returns the number of members in a room.
func (m *Manager) Count(roomKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[roomKey])
}

// Broadcast delivers an event to every member of a room except the excluded
// connections. The member set is snapshotted before delivery; a member added
// or removed mid-fan-out may miss or receive this specific event, which is
// accepted best-effort ordering. A stale member triggers an implicit leave.
func (m *Manager) Broadcast(roomKey string, event registry.Event, exclude ...string) {
	members := m.Members(roomKey)
	if len(members) == 0 {
		return
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	for _, connID := range members {
		if _, ok := skip[connID]; ok {
			continue
		}
		m.deliver(connID, roomKey, event)
	}
}

// Unicast delivers an event to every live connection currently bound to one
// user identity: the registry's reverse index plus the members of the room
// keyed by that user's ID, deduplicated. The recipient need not have joined
// any room for reverse-index delivery to reach it.
func (m *Manager) Unicast(userID string, event registry.Event) {
	if userID == "" {
		return
	}

	seen := make(map[string]struct{})
	for _, connID := range m.reg.Connections(userID) {
		seen[connID] = struct{}{}
	}
	for _, connID := range m.Members(userID) {
		seen[connID] = struct{}{}
	}

	for connID := range seen {
		m.deliver(connID, userID, event)
	}
}

// deliver sends to one connection, treating a vanished connection as a
// member that already left.
func (m *Manager) deliver(connID, roomKey string, event registry.Event) {
	if err := m.reg.Send(connID, event); err != nil {
		if errors.Is(err, registry.ErrConnectionNotFound) {
			m.Leave(connID, roomKey)
			return
		}
		m.logger.Error("Failed to deliver event", "connID", connID, "error", err)
	}
}
