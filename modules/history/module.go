// Package history is the persistence adapter for support-room messages. It
// consumes SupportMessagePosted events off the bus, so durable writes never
// sit on the broadcast path.
package history

import (
	"context"
	"fmt"
	"os"

	domain "github.com/example/support-chat/domain/chat"
	"github.com/example/support-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides durable support-message storage via GORM + SQLite.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new history module.
func NewModule(moduleLogger types.Logger) *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "support_chat.db"
	}
	return &Module{
		dbPath: dbPath,
		logger: moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&domain.Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)
	m.logger.Info("History module started", "database", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("History module stopped")
	return nil
}

// Health performs a database ping.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterEventConsumers subscribes to chat events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.SupportMessagePostedV1, m.handleSupportMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register SupportMessagePosted consumer: %w", err)
	}
	m.logger.Info("Registered history event consumers")
	return nil
}

// handleSupportMessagePosted durably writes a fanned-out support message.
// Failures are logged and never retried: the message was already delivered
// live, only its history copy is lost.
func (m *Module) handleSupportMessagePosted(_ context.Context, event events.SupportMessagePosted, _ *mono.Msg) error {
	msg := &domain.Message{
		ID:         event.MessageID,
		Sender:     event.SenderID,
		SenderName: event.SenderName,
		Receiver:   domain.SupportReceiver,
		Body:       event.Body,
		IsAdmin:    event.IsAdmin,
		CreatedAt:  event.Timestamp,
		UpdatedAt:  event.Timestamp,
	}
	if err := m.repo.Append(msg); err != nil {
		m.logger.Error("Failed to persist support message",
			"messageID", event.MessageID, "error", err)
	}
	return nil
}

// Repository returns the message repository.
func (m *Module) Repository() *Repository {
	return m.repo
}
