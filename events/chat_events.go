package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// SupportMessagePosted is emitted after a support-room message has been
// fanned out to live members. The history module consumes it to persist the
// message; delivery to live members never waits on the store.
type SupportMessagePosted struct {
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	IsAdmin    bool      `json:"is_admin"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	SupportMessagePostedV1 = helper.EventDefinition[SupportMessagePosted](
		"chat",
		"SupportMessagePosted",
		"v1",
	)
)
