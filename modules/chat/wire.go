package chat

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom            = "join_room"
	EventJoinPrivateChat     = "join_private_chat"
	EventJoinSupportChat     = "join_support_chat"
	EventLeaveSupportChat    = "leave_support_chat"
	EventSendPrivateMessage  = "send_private_message"
	EventSendSupportMessage  = "send_support_message"
	EventAdminSupportMessage = "admin_support_message"
	EventTyping              = "typing"
	EventSupportTyping       = "support_typing"
	EventMarkAsRead          = "mark_as_read"
)

// Outbound event names.
const (
	EventReceivePrivateMessage = "receive_private_message"
	EventPrivateMessageSent    = "private_message_sent"
	EventReceiveSupportMessage = "receive_support_message"
	EventSupportMessageSent    = "support_message_sent"
	EventUserTyping            = "user_typing"
	EventSupportUserTyping     = "support_user_typing"
	EventMessageRead           = "message_read"
	EventUserJoinedSupport     = "user_joined_support"
	EventUserLeftSupport       = "user_left_support"
	EventRoleUpdated           = "role_updated"
)

// Envelope is the wire frame for every inbound event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads. One closed struct per event kind; required fields are
// validated at the router boundary.

// JoinRoomData carries the user ID whose mailbox room to join.
type JoinRoomData struct {
	UserID string `json:"userId"`
}

// PrivateMessageData is the payload of send_private_message.
type PrivateMessageData struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

// SupportMessageData is the payload of send_support_message.
type SupportMessageData struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

// AdminSupportMessageData is the payload of admin_support_message.
type AdminSupportMessageData struct {
	AdminID   string `json:"adminId"`
	AdminName string `json:"adminName"`
	Message   string `json:"message"`
}

// TypingData is the payload of typing (private chat indicator).
type TypingData struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// SupportTypingData is the payload of support_typing.
type SupportTypingData struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// MarkAsReadData is the payload of mark_as_read. SenderID is the author of
// the original message, the party who receives the receipt.
type MarkAsReadData struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	MessageID  string `json:"messageId"`
}

// Outbound payloads.

// ReceivePrivateMessage is delivered to the private-message recipient.
type ReceivePrivateMessage struct {
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PrivateMessageSent is the sender's confirmation copy. A private room is two
// independent mailboxes, so the sender's copy is synthesized rather than
// echoed through self-membership.
type PrivateMessageSent struct {
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReceiveSupportMessage is broadcast to every support-room member, the
// sender included.
type ReceiveSupportMessage struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	IsAdmin    bool      `json:"isAdmin"`
	Timestamp  time.Time `json:"timestamp"`
}

// SupportMessageSent is the sender's delivery confirmation.
type SupportMessageSent struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTyping is the private-chat typing indicator.
type UserTyping struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// SupportUserTyping is the support-room typing indicator.
type SupportUserTyping struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// MessageRead is the read receipt delivered to the original sender.
type MessageRead struct {
	ReceiverID string    `json:"receiverId"`
	MessageID  string    `json:"messageId"`
	ReadAt     time.Time `json:"readAt"`
}

// UserJoinedSupport announces a new support-room member to the others.
type UserJoinedSupport struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// UserLeftSupport announces a departure to the remaining members.
type UserLeftSupport struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// RoleUpdated notifies a user that an admin changed their role.
type RoleUpdated struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}
