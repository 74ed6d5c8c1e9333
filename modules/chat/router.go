package chat

import (
	"encoding/json"
	"time"

	"github.com/example/support-chat/domain/user"
	"github.com/example/support-chat/events"
	"github.com/example/support-chat/modules/registry"
	"github.com/example/support-chat/modules/rooms"
	"github.com/google/uuid"
)

// Connect allocates a session for a new connection. claims is nil for
// anonymous connections; the support room allows them.
func (m *Module) Connect(conn registry.Conn, claims *user.Claims) *registry.Session {
	if claims == nil {
		return m.registry.Register(conn, "", "", "")
	}
	return m.registry.Register(conn, claims.UserID, claims.Name, claims.Role)
}

// Disconnect tears a session down: membership is removed from every room
// before the call returns, so no room observes a phantom member afterwards.
func (m *Module) Disconnect(connID string) {
	sess, ok := m.registry.Session(connID)
	if !ok {
		return
	}

	left := m.rooms.LeaveAll(connID)
	m.registry.Deregister(connID)

	for _, roomKey := range left {
		if roomKey != rooms.SupportRoom {
			continue
		}
		m.rooms.Broadcast(rooms.SupportRoom, registry.Event{
			Event: EventUserLeftSupport,
			Data: UserLeftSupport{
				UserID:    displayUserID(sess),
				Timestamp: time.Now(),
			},
		})
	}
}

// HandleEvent parses and dispatches one inbound event. Malformed events are
// dropped; no application-level error ever tears down the connection.
func (m *Module) HandleEvent(sess *registry.Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.logger.Debug("Dropped unparsable frame", "connID", sess.ID, "error", err)
		return
	}

	switch env.Event {
	case EventJoinRoom, EventJoinPrivateChat:
		m.handleJoinMailbox(sess, env.Data)
	case EventJoinSupportChat:
		m.handleJoinSupport(sess)
	case EventLeaveSupportChat:
		m.handleLeaveSupport(sess)
	case EventSendPrivateMessage:
		m.handlePrivateMessage(sess, env.Data)
	case EventSendSupportMessage:
		m.handleSupportMessage(sess, env.Data)
	case EventAdminSupportMessage:
		m.handleAdminSupportMessage(sess, env.Data)
	case EventTyping:
		m.handleTyping(sess, env.Data)
	case EventSupportTyping:
		m.handleSupportTyping(sess, env.Data)
	case EventMarkAsRead:
		m.handleMarkAsRead(sess, env.Data)
	default:
		m.logger.Debug("Dropped unknown event", "connID", sess.ID, "event", env.Event)
	}
}

// handleJoinMailbox subscribes the connection to the mailbox room keyed by a
// user ID and binds the reverse index. join_room and join_private_chat are
// the same operation on this side: each party listens on its own ID.
func (m *Module) handleJoinMailbox(sess *registry.Session, data json.RawMessage) {
	var d JoinRoomData
	if err := json.Unmarshal(data, &d); err != nil || d.UserID == "" {
		m.dropMalformed(sess, EventJoinRoom)
		return
	}

	m.registry.BindUser(sess.ID, d.UserID)
	m.rooms.Join(sess.ID, d.UserID)
	m.logger.Debug("Joined mailbox room", "connID", sess.ID, "userID", d.UserID)
}

func (m *Module) handleJoinSupport(sess *registry.Session) {
	m.rooms.Join(sess.ID, rooms.SupportRoom)

	// The joiner does not receive its own join notification.
	m.rooms.Broadcast(rooms.SupportRoom, registry.Event{
		Event: EventUserJoinedSupport,
		Data: UserJoinedSupport{
			UserID:    displayUserID(sess),
			Timestamp: time.Now(),
			Message:   "A user has joined the support chat",
		},
	}, sess.ID)

	m.logger.Info("Joined support room", "connID", sess.ID, "userID", sess.UserID)
}

func (m *Module) handleLeaveSupport(sess *registry.Session) {
	m.rooms.Leave(sess.ID, rooms.SupportRoom)

	m.rooms.Broadcast(rooms.SupportRoom, registry.Event{
		Event: EventUserLeftSupport,
		Data: UserLeftSupport{
			UserID:    displayUserID(sess),
			Timestamp: time.Now(),
		},
	})

	m.logger.Info("Left support room", "connID", sess.ID, "userID", sess.UserID)
}

// handlePrivateMessage delivers to the recipient's mailbox and synthesizes
// the sender's confirmation copy. Private messages are not persisted.
func (m *Module) handlePrivateMessage(sess *registry.Session, data json.RawMessage) {
	var d PrivateMessageData
	if err := json.Unmarshal(data, &d); err != nil ||
		d.SenderID == "" || d.ReceiverID == "" || d.Message == "" {
		m.dropMalformed(sess, EventSendPrivateMessage)
		return
	}

	now := time.Now()
	m.rooms.Unicast(d.ReceiverID, registry.Event{
		Event: EventReceivePrivateMessage,
		Data: ReceivePrivateMessage{
			SenderID:  d.SenderID,
			Message:   d.Message,
			Timestamp: now,
		},
	})
	m.rooms.Unicast(d.SenderID, registry.Event{
		Event: EventPrivateMessageSent,
		Data: PrivateMessageSent{
			ReceiverID: d.ReceiverID,
			Message:    d.Message,
			Timestamp:  now,
		},
	})
}

func (m *Module) handleSupportMessage(sess *registry.Session, data json.RawMessage) {
	var d SupportMessageData
	if err := json.Unmarshal(data, &d); err != nil || d.Message == "" {
		m.dropMalformed(sess, EventSendSupportMessage)
		return
	}
	if d.SenderName == "" {
		d.SenderName = registry.AnonymousName
	}

	m.postSupportMessage(sess, d.SenderID, d.SenderName, d.Message, false)

	// Delivery confirmation back to the sending connection only.
	if err := m.registry.Send(sess.ID, registry.Event{
		Event: EventSupportMessageSent,
		Data: SupportMessageSent{
			Message:   d.Message,
			Timestamp: time.Now(),
		},
	}); err != nil {
		m.logger.Debug("Sender gone before confirmation", "connID", sess.ID)
	}
}

// handleAdminSupportMessage behaves like a support message tagged isAdmin.
// A non-admin sender is dropped silently: no broadcast, no persistence, and
// no error back, so role information never leaks.
func (m *Module) handleAdminSupportMessage(sess *registry.Session, data json.RawMessage) {
	if sess.Role != user.RoleAdmin {
		m.logger.Debug("Dropped admin event from non-admin", "connID", sess.ID)
		return
	}

	var d AdminSupportMessageData
	if err := json.Unmarshal(data, &d); err != nil || d.Message == "" {
		m.dropMalformed(sess, EventAdminSupportMessage)
		return
	}
	if d.AdminName == "" {
		d.AdminName = "Support Agent"
	}

	m.postSupportMessage(sess, d.AdminID, d.AdminName, d.Message, true)
}

// postSupportMessage fans a message out to the support room (sender
// included) and hands it to the persistence bus. The broadcast never waits
// on store durability.
func (m *Module) postSupportMessage(sess *registry.Session, senderID, senderName, body string, isAdmin bool) {
	now := time.Now()

	m.rooms.Broadcast(rooms.SupportRoom, registry.Event{
		Event: EventReceiveSupportMessage,
		Data: ReceiveSupportMessage{
			SenderID:   senderID,
			SenderName: senderName,
			Message:    body,
			IsAdmin:    isAdmin,
			Timestamp:  now,
		},
	})

	if m.eventBus == nil {
		return
	}
	posted := events.SupportMessagePosted{
		MessageID:  uuid.New().String(),
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		IsAdmin:    isAdmin,
		Timestamp:  now,
	}
	if err := events.SupportMessagePostedV1.Publish(m.eventBus, posted, nil); err != nil {
		m.logger.Warn("Failed to publish SupportMessagePosted event", "error", err)
	}
}

func (m *Module) handleTyping(sess *registry.Session, data json.RawMessage) {
	var d TypingData
	if err := json.Unmarshal(data, &d); err != nil || d.SenderID == "" || d.ReceiverID == "" {
		m.dropMalformed(sess, EventTyping)
		return
	}

	m.rooms.Unicast(d.ReceiverID, registry.Event{
		Event: EventUserTyping,
		Data: UserTyping{
			SenderID: d.SenderID,
			IsTyping: d.IsTyping,
		},
	})
}

func (m *Module) handleSupportTyping(sess *registry.Session, data json.RawMessage) {
	var d SupportTypingData
	if err := json.Unmarshal(data, &d); err != nil || d.SenderID == "" {
		m.dropMalformed(sess, EventSupportTyping)
		return
	}

	m.rooms.Broadcast(rooms.SupportRoom, registry.Event{
		Event: EventSupportUserTyping,
		Data: SupportUserTyping{
			SenderID: d.SenderID,
			IsTyping: d.IsTyping,
		},
	}, sess.ID)
}

func (m *Module) handleMarkAsRead(sess *registry.Session, data json.RawMessage) {
	var d MarkAsReadData
	if err := json.Unmarshal(data, &d); err != nil ||
		d.SenderID == "" || d.ReceiverID == "" || d.MessageID == "" {
		m.dropMalformed(sess, EventMarkAsRead)
		return
	}

	// The receipt goes back to the author of the original message.
	m.rooms.Unicast(d.SenderID, registry.Event{
		Event: EventMessageRead,
		Data: MessageRead{
			ReceiverID: d.ReceiverID,
			MessageID:  d.MessageID,
			ReadAt:     time.Now(),
		},
	})
}

// NotifyRoleUpdated unicasts a role_updated event to every live connection
// of the target user. The recipient may not have joined any room; the
// registry's reverse index still reaches it.
func (m *Module) NotifyRoleUpdated(userID, role string) {
	m.rooms.Unicast(userID, registry.Event{
		Event: EventRoleUpdated,
		Data: RoleUpdated{
			Role:    role,
			Message: "Your role has been updated!",
		},
	})
}

func (m *Module) dropMalformed(sess *registry.Session, event string) {
	m.logger.Debug("Dropped malformed event", "connID", sess.ID, "event", event)
}

func displayUserID(sess *registry.Session) string {
	if sess.UserID == "" {
		return registry.AnonymousName
	}
	return sess.UserID
}
