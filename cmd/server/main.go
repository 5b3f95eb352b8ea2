package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportchat-backend/internal/config"
	"supportchat-backend/internal/database"
	"supportchat-backend/internal/handler"
	"supportchat-backend/internal/middleware"
	"supportchat-backend/internal/repository"
	"supportchat-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := database.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied successfully")

	// Repositories
	adminRepo := repository.NewAdminRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Services
	hub := service.NewHub()
	authSvc := service.NewAuthService(adminRepo, cfg.JWTSecret)
	presenceSvc := service.NewPresenceService(adminRepo, sessionRepo, hub)
	chatSvc := service.NewChatService(sessionRepo, messageRepo, adminRepo, customerRepo, hub)
	console := service.NewConsole(sessionRepo, chatSvc, cfg.PollInterval)

	blobStore, err := service.NewDiskStore(cfg.AttachmentDir)
	if err != nil {
		log.Fatalf("Failed to create attachment dir: %v", err)
	}
	fileSvc := service.NewFileService(blobStore)

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    service.MaxAttachmentSize + 1024*1024,
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(cors.New())

	// Health
	healthH := handler.NewHealthHandler(db)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)

	// API v1
	v1 := app.Group("/api/v1")

	// Auth (public)
	adminH := handler.NewAdminHandler(authSvc, presenceSvc, console)
	v1.Post("/auth/login", middleware.RateLimit(10, time.Minute), adminH.Login)

	// JWT-protected routes
	protected := v1.Group("", middleware.Auth(authSvc))

	chatH := handler.NewChatHandler(chatSvc, fileSvc)
	chat := protected.Group("/chat", middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
	chat.Post("/sessions", chatH.StartSession)
	chat.Get("/sessions", middleware.RequireAdmin(), adminH.Queues)
	chat.Post("/sessions/:id/messages", chatH.SendMessage)
	chat.Get("/sessions/:id/messages", chatH.ListMessages)
	chat.Post("/sessions/:id/read", chatH.MarkRead)
	chat.Post("/sessions/:id/close", middleware.RequireAdmin(), chatH.CloseSession)
	chat.Post("/attachments", chatH.UploadAttachment)

	protected.Get("/admins", adminH.ListAdmins)
	protected.Post("/admins/presence", middleware.RequireAdmin(), adminH.SetPresence)

	// WebSocket
	wsH := handler.NewWSHandler(hub, authSvc, chatSvc)
	app.Get("/ws", wsH.Upgrade)

	// Console refresh loop
	consoleCtx, stopConsole := context.WithCancel(context.Background())
	go console.Run(consoleCtx, cfg.ConsoleRefresh)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("Support chat backend running on :%s (%s)", cfg.Port, cfg.Env)

	<-quit
	log.Println("Shutting down...")
	stopConsole()
	_ = app.ShutdownWithTimeout(5 * time.Second)
	log.Println("Server stopped")
}
