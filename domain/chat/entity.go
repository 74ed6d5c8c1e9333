package chat

import "time"

// SupportReceiver is the well-known receiver value for support-room messages.
// Every message posted to the shared support room is addressed to this group.
const SupportReceiver = "admin_group"

// Message represents a persisted support-room chat message.
type Message struct {
	ID         string `gorm:"primaryKey;type:text"`
	Sender     string `gorm:"index;not null;type:text"`
	SenderName string `gorm:"type:text"`
	Receiver   string `gorm:"index;not null;type:text"`
	Body       string `gorm:"not null;type:text"`
	IsAdmin    bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "support_messages"
}
