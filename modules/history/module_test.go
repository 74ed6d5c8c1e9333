package history

import (
	"context"
	"testing"
	"time"

	"github.com/example/support-chat/events"
)

func TestHandleSupportMessagePosted(t *testing.T) {
	m := &Module{
		repo:   NewRepository(setupTestDB(t)),
		logger: newMockLogger(),
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := events.SupportMessagePosted{
		MessageID:  "msg-1",
		SenderID:   "user-1",
		SenderName: "Alice",
		Body:       "hello support",
		IsAdmin:    false,
		Timestamp:  at,
	}

	if err := m.handleSupportMessagePosted(context.Background(), event, nil); err != nil {
		t.Fatalf("handleSupportMessagePosted() error = %v", err)
	}

	messages, err := m.repo.History(Filter{Admin: true})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(messages))
	}
	got := messages[0]
	if got.ID != "msg-1" || got.Sender != "user-1" || got.SenderName != "Alice" {
		t.Errorf("stored message = %+v", got)
	}
	if got.Body != "hello support" {
		t.Errorf("body = %q, want 'hello support'", got.Body)
	}
	if got.IsAdmin {
		t.Error("isAdmin = true, want false")
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, at)
	}
}

func TestHandleSupportMessagePostedStoreFailure(t *testing.T) {
	m := &Module{
		repo:   NewRepository(setupTestDB(t)),
		logger: newMockLogger(),
	}

	event := events.SupportMessagePosted{
		MessageID: "msg-1",
		SenderID:  "user-1",
		Body:      "hello",
		Timestamp: time.Now(),
	}

	if err := m.handleSupportMessagePosted(context.Background(), event, nil); err != nil {
		t.Fatalf("first write error = %v", err)
	}

	// A duplicate write fails in the store; the consumer swallows it so the
	// bus never redelivers.
	if err := m.handleSupportMessagePosted(context.Background(), event, nil); err != nil {
		t.Errorf("consumer returned %v on store failure, want nil", err)
	}

	count, err := m.repo.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
