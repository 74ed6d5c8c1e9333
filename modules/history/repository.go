package history

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/example/support-chat/domain/chat"
	"gorm.io/gorm"
)

// ErrStoreUnavailable wraps any write failure of the message store. Writes
// are at-most-once: the caller logs and moves on, delivery to live members
// has already happened.
var ErrStoreUnavailable = errors.New("message store unavailable")

// Filter selects history rows by caller identity. An admin sees every
// support-room message; anyone else sees the union of messages they authored
// and all support-room messages.
type Filter struct {
	UserID string
	Admin  bool
}

// Entry is a history row with the sender's account details resolved.
type Entry struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	Message     string    `json:"message"`
	IsAdmin     bool      `json:"isAdmin"`
	Timestamp   time.Time `json:"timestamp"`
}

// Repository provides access to durable support-message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append durably writes one message.
func (r *Repository) Append(msg *domain.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// History returns messages matching the filter, oldest first.
func (r *Repository) History(filter Filter) ([]domain.Message, error) {
	var messages []domain.Message
	q := r.db.Order("created_at ASC")
	if filter.Admin {
		q = q.Where("receiver = ?", domain.SupportReceiver)
	} else {
		q = q.Where("receiver = ? OR sender = ?", domain.SupportReceiver, filter.UserID)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return messages, nil
}

// historyRow is the scan target for the sender-resolving join.
type historyRow struct {
	ID         string
	Sender     string
	SenderName string
	Body       string
	IsAdmin    bool
	CreatedAt  time.Time
	UserName   string
	UserEmail  string
}

// HistoryWithSender returns matching messages oldest first with the sender's
// account name and email resolved where the sender has one. Anonymous
// senders keep the display name captured at send time.
func (r *Repository) HistoryWithSender(filter Filter) ([]Entry, error) {
	var rows []historyRow
	q := r.db.Table("support_messages").
		Select("support_messages.id, support_messages.sender, support_messages.sender_name, " +
			"support_messages.body, support_messages.is_admin, support_messages.created_at, " +
			"users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN users ON users.id = support_messages.sender").
		Order("support_messages.created_at ASC")
	if filter.Admin {
		q = q.Where("support_messages.receiver = ?", domain.SupportReceiver)
	} else {
		q = q.Where("support_messages.receiver = ? OR support_messages.sender = ?",
			domain.SupportReceiver, filter.UserID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		name := row.UserName
		if name == "" {
			name = row.SenderName
		}
		entries = append(entries, Entry{
			ID:          row.ID,
			SenderID:    row.Sender,
			SenderName:  name,
			SenderEmail: row.UserEmail,
			Message:     row.Body,
			IsAdmin:     row.IsAdmin,
			Timestamp:   row.CreatedAt,
		})
	}
	return entries, nil
}

// Clear unconditionally purges all support-room messages.
func (r *Repository) Clear() error {
	if err := r.db.Where("receiver = ?", domain.SupportReceiver).
		Delete(&domain.Message{}).Error; err != nil {
		return fmt.Errorf("failed to clear support messages: %w", err)
	}
	return nil
}

// Count returns the number of stored support-room messages.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&domain.Message{}).
		Where("receiver = ?", domain.SupportReceiver).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
