package api

import (
	"context"
	"errors"

	domain "github.com/example/support-chat/domain/user"
	"github.com/example/support-chat/modules/auth"
	"github.com/example/support-chat/modules/history"
	"github.com/example/support-chat/modules/registry"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	api := m.app.Group("/api/v1")

	// Auth
	api.Post("/auth/register", m.register)
	api.Post("/auth/login", m.login)
	api.Post("/auth/refresh", m.refresh)

	// Support chat history
	authMW := AuthMiddleware(m.auth.Service())
	api.Get("/chat/support", authMW, m.getSupportHistory)
	api.Delete("/chat/support/clear", authMW, RequireAdmin(), m.clearSupportHistory)

	// User administration
	api.Put("/users/:id/role", authMW, RequireAdmin(), m.updateUserRole)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.chat.ClientCount(),
		},
	})
}

// register handles POST /api/v1/auth/register.
func (m *Module) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	user, err := m.auth.Service().Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Error:   "user_exists",
				Message: "User already exists",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

// login handles POST /api/v1/auth/login.
func (m *Module) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	tokens, err := m.auth.Service().Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	}

	return c.JSON(tokens)
}

// refresh handles POST /api/v1/auth/refresh.
func (m *Module) refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	tokens, err := m.auth.Service().RefreshTokens(c.UserContext(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid refresh token",
		})
	}

	return c.JSON(tokens)
}

// getSupportHistory handles GET /api/v1/chat/support. An admin sees every
// support-room message; anyone else sees the union of messages they
// authored and all support-room messages, oldest first.
func (m *Module) getSupportHistory(c *fiber.Ctx) error {
	claims, ok := claimsFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
	}

	entries, err := m.history.Repository().HistoryWithSender(history.Filter{
		UserID: claims.UserID,
		Admin:  claims.Role == domain.RoleAdmin,
	})
	if err != nil {
		m.logger.Error("Failed to load support history", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Error loading chat history",
		})
	}

	return c.JSON(HistoryResponse{
		Messages: entries,
		Total:    len(entries),
	})
}

// clearSupportHistory handles DELETE /api/v1/chat/support/clear.
func (m *Module) clearSupportHistory(c *fiber.Ctx) error {
	if err := m.history.Repository().Clear(); err != nil {
		m.logger.Error("Failed to clear support history", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "clear_failed",
			Message: "Error clearing chats",
		})
	}
	return c.JSON(fiber.Map{"message": "All support chats cleared"})
}

// updateUserRole handles PUT /api/v1/users/:id/role. The updated role is
// persisted and the target user's live connections are notified.
func (m *Module) updateUserRole(c *fiber.Ctx) error {
	userID := c.Params("id")

	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	user, err := m.auth.Service().UpdateRole(c.UserContext(), userID, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "User not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	m.chat.NotifyRoleUpdated(user.ID, user.Role)

	return c.JSON(fiber.Map{
		"message": "User role updated",
		"user": UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

// handleWebSocket handles WebSocket connections at /ws. A valid ?token=
// binds the session to that identity; no token means an anonymous session,
// which the support room allows. An invalid token is rejected outright.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	var claims *domain.Claims
	if token := c.Query("token"); token != "" {
		var err error
		claims, err = m.auth.Service().Authenticate(context.Background(), token)
		if err != nil {
			m.logger.Warn("Rejected WebSocket connection with invalid token", "error", err)
			_ = c.WriteJSON(registry.Event{
				Event: "error",
				Data:  fiber.Map{"message": "Invalid or expired token"},
			})
			_ = c.Close()
			return
		}
	}

	sess := m.chat.Connect(c, claims)
	defer m.chat.Disconnect(sess.ID)

	m.logger.Info("WebSocket client connected", "connID", sess.ID, "userID", sess.UserID)

	// Welcome frame carries the connection ID; delivered through the
	// session queue so the writer goroutine stays the only writer.
	_ = m.chat.Registry().Send(sess.ID, registry.Event{
		Event: "connected",
		Data:  fiber.Map{"connectionId": sess.ID},
	})

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Error("WebSocket read error", "connID", sess.ID, "error", err)
			}
			break
		}
		m.chat.HandleEvent(sess, msgBytes)
	}

	m.logger.Info("WebSocket client disconnected", "connID", sess.ID)
}
