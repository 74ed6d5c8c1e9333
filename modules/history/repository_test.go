package history

import (
	"errors"
	"testing"
	"time"

	chatdomain "github.com/example/support-chat/domain/chat"
	userdomain "github.com/example/support-chat/domain/user"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func newMockLogger() types.Logger {
	return &mockLogger{}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// The users table backs the sender-resolving join.
	if err := db.AutoMigrate(&chatdomain.Message{}, &userdomain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func supportMessage(id, sender, name, body string, isAdmin bool, at time.Time) *chatdomain.Message {
	return &chatdomain.Message{
		ID:         id,
		Sender:     sender,
		SenderName: name,
		Receiver:   chatdomain.SupportReceiver,
		Body:       body,
		IsAdmin:    isAdmin,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestAppendAndCount(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	if err := repo.Append(supportMessage("m1", "user-1", "Alice", "hello", false, time.Now())); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestAppendDuplicateID(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	at := time.Now()
	if err := repo.Append(supportMessage("m1", "user-1", "Alice", "hello", false, at)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	err := repo.Append(supportMessage("m1", "user-1", "Alice", "again", false, at))
	if err == nil {
		t.Fatal("Append() with duplicate ID succeeded, want error")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Append() error = %v, want wrapped ErrStoreUnavailable", err)
	}
}

func TestHistoryRoleFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []*chatdomain.Message{
		supportMessage("m1", "user-1", "Alice", "first", false, base),
		supportMessage("m2", "admin-1", "Dana", "reply", true, base.Add(time.Minute)),
		supportMessage("m3", "user-2", "Bob", "another", false, base.Add(2*time.Minute)),
	}
	for _, msg := range seed {
		if err := repo.Append(msg); err != nil {
			t.Fatalf("Append(%s) error = %v", msg.ID, err)
		}
	}
	// A stray row addressed to an individual, not the support group.
	stray := &chatdomain.Message{
		ID: "m4", Sender: "user-1", SenderName: "Alice", Receiver: "user-2",
		Body: "direct", CreatedAt: base.Add(3 * time.Minute), UpdatedAt: base.Add(3 * time.Minute),
	}
	if err := db.Create(stray).Error; err != nil {
		t.Fatalf("failed to seed stray row: %v", err)
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{
			name:    "admin sees every support message only",
			filter:  Filter{UserID: "admin-1", Admin: true},
			wantIDs: []string{"m1", "m2", "m3"},
		},
		{
			name:    "user sees support messages plus own authored rows",
			filter:  Filter{UserID: "user-1"},
			wantIDs: []string{"m1", "m2", "m3", "m4"},
		},
		{
			name:    "unrelated user sees support messages only",
			filter:  Filter{UserID: "user-9"},
			wantIDs: []string{"m1", "m2", "m3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := repo.History(tt.filter)
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if len(messages) != len(tt.wantIDs) {
				t.Fatalf("History() returned %d rows, want %d", len(messages), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if messages[i].ID != want {
					t.Errorf("row %d = %s, want %s", i, messages[i].ID, want)
				}
			}
		})
	}
}

func TestHistoryOldestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// Inserted newest first; the read must come back oldest first.
	for i, id := range []string{"newest", "middle", "oldest"} {
		at := base.Add(time.Duration(-i) * time.Hour)
		if err := repo.Append(supportMessage(id, "user-1", "Alice", id, false, at)); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	messages, err := repo.History(Filter{Admin: true})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	wantOrder := []string{"oldest", "middle", "newest"}
	for i, want := range wantOrder {
		if messages[i].ID != want {
			t.Errorf("row %d = %s, want %s", i, messages[i].ID, want)
		}
	}
}

func TestHistoryWithSenderResolution(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	account := &userdomain.User{
		ID: "user-1", Name: "Alice Smith", Email: "alice@example.com",
		PasswordHash: "x", Role: userdomain.RoleCustomer,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Append(supportMessage("m1", "user-1", "stale name", "hello", false, base)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := repo.Append(supportMessage("m2", "", "Guest", "anon question", false, base.Add(time.Minute))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := repo.HistoryWithSender(Filter{Admin: true})
	if err != nil {
		t.Fatalf("HistoryWithSender() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("HistoryWithSender() returned %d entries, want 2", len(entries))
	}

	// Registered sender: account details win over the captured name.
	if entries[0].SenderName != "Alice Smith" {
		t.Errorf("senderName = %q, want 'Alice Smith'", entries[0].SenderName)
	}
	if entries[0].SenderEmail != "alice@example.com" {
		t.Errorf("senderEmail = %q, want 'alice@example.com'", entries[0].SenderEmail)
	}
	if entries[0].Message != "hello" {
		t.Errorf("message = %q, want 'hello'", entries[0].Message)
	}

	// Anonymous sender: the display name captured at send time survives.
	if entries[1].SenderName != "Guest" {
		t.Errorf("senderName = %q, want 'Guest'", entries[1].SenderName)
	}
	if entries[1].SenderEmail != "" {
		t.Errorf("senderEmail = %q, want empty", entries[1].SenderEmail)
	}
}

func TestClear(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	base := time.Now()
	if err := repo.Append(supportMessage("m1", "user-1", "Alice", "hello", false, base)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	stray := &chatdomain.Message{
		ID: "m2", Sender: "user-1", Receiver: "user-2", Body: "direct",
		CreatedAt: base, UpdatedAt: base,
	}
	if err := db.Create(stray).Error; err != nil {
		t.Fatalf("failed to seed stray row: %v", err)
	}

	if err := repo.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after Clear = %d, want 0", count)
	}

	// Rows not addressed to the support group are untouched.
	var strayCount int64
	if err := db.Model(&chatdomain.Message{}).Where("receiver = ?", "user-2").Count(&strayCount).Error; err != nil {
		t.Fatalf("failed to count stray rows: %v", err)
	}
	if strayCount != 1 {
		t.Errorf("stray rows = %d, want 1", strayCount)
	}
}
