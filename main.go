package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/support-chat/modules/api"
	"github.com/example/support-chat/modules/auth"
	"github.com/example/support-chat/modules/chat"
	"github.com/example/support-chat/modules/history"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Support Chat Service ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	authModule := auth.NewModule(app.Logger())
	chatModule := chat.NewModule(app.Logger())
	historyModule := history.NewModule(app.Logger())
	apiModule := api.NewModule(chatModule, authModule, historyModule, app.Logger())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - auth: identity (owns the users table, so it migrates first)
	// - chat: messaging core (registry + rooms + router, event emitter)
	// - history: message store (event consumer for persistence)
	// - api: driving adapter (Fiber HTTP/WebSocket server)
	app.Register(authModule)
	app.Register(chatModule)
	app.Register(historyModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                         - Health check")
	log.Println("  POST   /api/v1/auth/register           - Register a new user")
	log.Println("  POST   /api/v1/auth/login              - Login and get tokens")
	log.Println("  POST   /api/v1/auth/refresh            - Refresh access token")
	log.Println("  GET    /api/v1/chat/support            - Support chat history (role-aware)")
	log.Println("  DELETE /api/v1/chat/support/clear      - Clear support history (admin)")
	log.Println("  PUT    /api/v1/users/:id/role          - Update a user's role (admin)")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Connect with: ws://localhost:5000/ws?token=<access-token>")
	log.Println("  (no token = anonymous support-chat session)")
	log.Println("  Inbound events: join_room, join_private_chat, join_support_chat,")
	log.Println("    leave_support_chat, send_private_message, send_support_message,")
	log.Println("    admin_support_message, typing, support_typing, mark_as_read")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
