package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/gateway"
	"github.com/zesbe/hallowa-sub001/internal/handlers"
	"github.com/zesbe/hallowa-sub001/internal/services"
	"github.com/zesbe/hallowa-sub001/pkg/logger"
	"github.com/zesbe/hallowa-sub001/pkg/middleware"
	"github.com/zesbe/hallowa-sub001/router"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxRequestBody limits request bodies; contact imports are the largest
// legitimate payload.
const maxRequestBody = 4 << 20

// SetupServer initializes the database, services, routes, and background
// scheduler, returning the configured HTTP server.
func SetupServer(cfg *config.Config) (*http.Server, *services.Scheduler, error) {
	if cfg == nil {
		return nil, nil, errors.New("configuration is required")
	}

	if cfg.Server.Port <= 0 {
		return nil, nil, errors.New("invalid server port")
	}

	// Initialize database
	database, err := db.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Seed database if enabled
	if cfg.Seed.Enable {
		if err := database.SeedDatabase(cfg.Seed.AdminPassword); err != nil {
			return nil, nil, fmt.Errorf("failed to seed database: %w", err)
		}
	}

	// Initialize repositories
	userRepo := db.NewUserRepository(database.GetDB())
	deviceRepo := db.NewDeviceRepository(database.GetDB())
	contactRepo := db.NewContactRepository(database.GetDB())
	templateRepo := db.NewTemplateRepository(database.GetDB())
	broadcastRepo := db.NewBroadcastRepository(database.GetDB())
	queueRepo := db.NewQueueRepository(database.GetDB())
	paymentRepo := db.NewPaymentRepository(database.GetDB())
	addonRepo := db.NewAddonRepository(database.GetDB())
	chatbotRepo := db.NewChatbotRepository(database.GetDB())
	reminderRepo := db.NewReminderRepository(database.GetDB())

	// Initialize external clients
	paymentGateway := gateway.NewPaymentClient(cfg)
	aiClient := gateway.NewAIClient(cfg)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg)
	addonService := services.NewAddonService(addonRepo)
	deviceService := services.NewDeviceService(deviceRepo, userRepo, addonRepo)
	contactService := services.NewContactService(contactRepo)
	templateService := services.NewTemplateService(templateRepo)
	broadcastService := services.NewBroadcastService(
		broadcastRepo, queueRepo, contactRepo, templateRepo, deviceRepo, userRepo)
	queueService := services.NewQueueService(queueRepo, broadcastRepo)
	paymentService := services.NewPaymentService(paymentRepo, addonRepo, userService, paymentGateway)
	chatbotService := services.NewChatbotService(chatbotRepo, queueRepo, addonService, aiClient)

	// Initialize scheduler unless background jobs are disabled
	var scheduler *services.Scheduler
	if cfg.Scheduler.Enable {
		scheduler, err = services.NewScheduler(cfg, broadcastService, userRepo, deviceRepo, queueRepo, reminderRepo)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup scheduler: %w", err)
		}
	}

	// Initialize router
	engine := gin.Default()

	setupRoutes(engine, cfg, &handlerSet{
		auth:      handlers.NewAuthHandler(cfg, userService),
		user:      handlers.NewUserHandler(userService),
		device:    handlers.NewDeviceHandler(deviceService),
		contact:   handlers.NewContactHandler(contactService),
		template:  handlers.NewTemplateHandler(templateService),
		broadcast: handlers.NewBroadcastHandler(broadcastService),
		message:   handlers.NewMessageHandler(queueService),
		payment:   handlers.NewPaymentHandler(paymentService),
		addon:     handlers.NewAddonHandler(addonService),
		chatbot:   handlers.NewChatbotHandler(chatbotService),
		admin: handlers.NewAdminHandler(
			userService, userRepo, deviceRepo, broadcastRepo, queueRepo, paymentRepo),
	})

	// Mount the bridge surface
	bridge := router.NewBridge(cfg, deviceService, queueService, chatbotService)
	bridge.Register(engine)

	// Create server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, scheduler, nil
}

// handlerSet bundles the dashboard handlers for route registration
type handlerSet struct {
	auth      *handlers.AuthHandler
	user      *handlers.UserHandler
	device    *handlers.DeviceHandler
	contact   *handlers.ContactHandler
	template  *handlers.TemplateHandler
	broadcast *handlers.BroadcastHandler
	message   *handlers.MessageHandler
	payment   *handlers.PaymentHandler
	addon     *handlers.AddonHandler
	chatbot   *handlers.ChatbotHandler
	admin     *handlers.AdminHandler
}

// setupRoutes configures all the HTTP routes
func setupRoutes(engine *gin.Engine, cfg *config.Config, h *handlerSet) {
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.SecurityHeadersMiddleware())
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.RequestSizeLimitMiddleware(maxRequestBody))
	engine.Use(middleware.AuditLogMiddleware())

	// Basic health check endpoint (public)
	engine.GET("/health", handleHealthCheck)

	// Auth endpoints (public)
	authGroup := engine.Group("/api/auth")
	{
		authGroup.POST("/login", h.auth.Login)
		authGroup.POST("/register", h.user.Register)
	}

	// Payment gateway callback (public; authenticated by HMAC signature)
	engine.POST("/api/payments/callback", h.payment.Callback)

	// Protected routes group
	protected := engine.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		// Account self-service
		protected.GET("/users/me", h.user.Me)
		protected.PUT("/users/me", h.user.UpdateMe)
		protected.POST("/users/me/password", h.user.ChangePassword)
		protected.POST("/users/me/totp/generate", h.user.GenerateTOTP)
		protected.POST("/users/me/totp/enable", h.user.EnableTOTP)
		protected.POST("/users/me/totp/disable", h.user.DisableTOTP)

		// Devices
		protected.POST("/devices", h.device.Register)
		protected.GET("/devices", h.device.List)
		protected.GET("/devices/:id", h.device.Get)
		protected.PUT("/devices/:id", h.device.Update)
		protected.POST("/devices/:id/connect", h.device.Connect)
		protected.POST("/devices/:id/disconnect", h.device.Disconnect)
		protected.DELETE("/devices/:id", h.device.Delete)

		// Contacts
		protected.POST("/contacts", h.contact.Create)
		protected.GET("/contacts", h.contact.List)
		protected.GET("/contacts/:id", h.contact.Get)
		protected.PUT("/contacts/:id", h.contact.Update)
		protected.DELETE("/contacts/:id", h.contact.Delete)
		protected.POST("/contacts/import", h.contact.Import)

		// Templates
		protected.POST("/templates", h.template.Create)
		protected.GET("/templates", h.template.List)
		protected.GET("/templates/:id", h.template.Get)
		protected.PUT("/templates/:id", h.template.Update)
		protected.DELETE("/templates/:id", h.template.Delete)

		// Broadcasts
		protected.POST("/broadcasts", h.broadcast.Create)
		protected.POST("/broadcasts/quick-send", h.broadcast.QuickSend)
		protected.GET("/broadcasts", h.broadcast.List)
		protected.GET("/broadcasts/:id", h.broadcast.Get)
		protected.POST("/broadcasts/:id/send", h.broadcast.Send)
		protected.POST("/broadcasts/:id/cancel", h.broadcast.Cancel)

		// Messages
		protected.GET("/messages/history", h.message.History)
		protected.GET("/queue/stats", h.message.QueueStats)

		// Payments
		protected.POST("/payments", h.payment.Create)
		protected.GET("/payments", h.payment.List)

		// Add-ons
		protected.GET("/addons", h.addon.Catalog)
		protected.GET("/addons/mine", h.addon.Mine)

		// Chatbot rules
		protected.POST("/chatbot/rules", h.chatbot.Create)
		protected.GET("/chatbot/rules", h.chatbot.List)
		protected.PUT("/chatbot/rules/:id", h.chatbot.Update)
		protected.POST("/chatbot/rules/:id/active", h.chatbot.SetActive)
		protected.DELETE("/chatbot/rules/:id", h.chatbot.Delete)
	}

	// Admin routes (permission-gated)
	admin := engine.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	{
		admin.GET("/users",
			middleware.RequirePermission("users:read"), h.admin.ListUsers)
		admin.GET("/users/:id",
			middleware.RequirePermission("users:read"), h.admin.GetUser)
		admin.PUT("/users/:id",
			middleware.RequirePermission("users:write"), h.admin.UpdateUser)
		admin.POST("/users/:id/plan",
			middleware.RequirePermission("users:write"), h.admin.SetPlan)
		admin.POST("/users/:id/password/reset",
			middleware.RequirePermission("users:write"), h.admin.ResetPassword)
		admin.DELETE("/users/:id",
			middleware.RequirePermission("users:delete"), h.admin.DeleteUser)
		admin.GET("/stats",
			middleware.RequireAnyPermission("stats:read", "payments:read"), h.admin.Stats)
	}
}

// handleHealthCheck handles the health check endpoint
func handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"version": version,
		"service": "hallowa",
	})
}

// StartServer starts the HTTP server and scheduler and handles graceful
// shutdown on SIGINT/SIGTERM.
func StartServer(srv *http.Server, scheduler *services.Scheduler) error {
	if scheduler != nil {
		scheduler.Start()
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	// Create a timeout context for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
