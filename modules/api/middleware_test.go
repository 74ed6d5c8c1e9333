package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/example/support-chat/domain/user"
	"github.com/example/support-chat/modules/auth"
	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testJWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		SecretKey:            "test-secret-key",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "test-issuer",
	}
}

func setupTestAuth(t *testing.T) (*auth.AuthService, *auth.JWTManager) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	manager := auth.NewJWTManager(testJWTConfig())
	svc := auth.NewAuthService(auth.NewUserRepository(db), auth.NewPasswordHasher(), manager)
	return svc, manager
}

func TestAuthMiddleware(t *testing.T) {
	svc, manager := setupTestAuth(t)

	validToken, err := manager.GenerateAccessToken("user-123", "test@example.com", "Alice", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `Authorization header is required`,
		},
		{
			name:           "invalid authorization format - no bearer",
			authHeader:     "Basic token123",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `Invalid authorization header format`,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer not-a-real-token",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `Invalid or expired token`,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer " + validToken,
			expectedStatus: http.StatusOK,
			expectedBody:   `"user-123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(AuthMiddleware(svc))
			app.Get("/test", func(c *fiber.Ctx) error {
				claims, ok := claimsFromContext(c)
				if !ok {
					return c.Status(fiber.StatusInternalServerError).SendString("no claims")
				}
				return c.JSON(fiber.Map{"userId": claims.UserID})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.expectedStatus)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("failed to read response body: %v", err)
			}
			if !strings.Contains(string(body), tt.expectedBody) {
				t.Errorf("body = %s, want it to contain %s", body, tt.expectedBody)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	svc, manager := setupTestAuth(t)

	adminToken, err := manager.GenerateAccessToken("admin-1", "admin@example.com", "Dana", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	customerToken, err := manager.GenerateAccessToken("user-1", "alice@example.com", "Alice", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "admin passes",
			token:          adminToken,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "customer is rejected",
			token:          customerToken,
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(AuthMiddleware(svc))
			app.Use(RequireAdmin())
			app.Get("/admin", func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.expectedStatus)
			}
		})
	}
}

func TestRequireAdminWithoutClaims(t *testing.T) {
	app := fiber.New()
	app.Use(RequireAdmin())
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}
