// Package chat is the messaging core: it owns the connection registry and
// room manager and routes inbound socket events to the right rooms,
// connections, and the persistence bus.
package chat

import (
	"context"

	"github.com/example/support-chat/events"
	"github.com/example/support-chat/modules/registry"
	"github.com/example/support-chat/modules/rooms"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module is the messaging service. It is constructed once at startup and
// handed to every component that needs to emit events.
type Module struct {
	registry *registry.Registry
	rooms    *rooms.Manager
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the messaging service.
func NewModule(logger types.Logger) *Module {
	reg := registry.New(logger)
	return &Module{
		registry: reg,
		rooms:    rooms.NewManager(reg, logger),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.SupportMessagePostedV1.ToBase(),
	}
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Chat module started", "supportRoom", rooms.SupportRoom)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Chat module stopped", "liveConnections", m.registry.Count())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":     m.registry.Count(),
			"support_members": m.rooms.Count(rooms.SupportRoom),
		},
	}
}

// Registry exposes the connection registry.
func (m *Module) Registry() *registry.Registry {
	return m.registry
}

// Rooms exposes the room manager.
func (m *Module) Rooms() *rooms.Manager {
	return m.rooms
}

// ClientCount returns the number of live connections.
func (m *Module) ClientCount() int {
	return m.registry.Count()
}
