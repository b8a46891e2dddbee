package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/faultline/faultline/internal/config"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/escalate"
	"github.com/faultline/faultline/internal/handlers"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/services"
	"github.com/faultline/faultline/internal/taxonomy"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Faultline error incident engine...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize default database records
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	// Build the error code registry: compiled-in table plus the optional
	// YAML overlay.
	registry := taxonomy.NewRegistry()
	if cfg.RegistryPath != "" {
		if err := registry.LoadFile(cfg.RegistryPath); err != nil {
			log.Fatalf("Failed to load error code registry from %s: %v", cfg.RegistryPath, err)
		}
		log.Printf("Error code registry loaded from %s (%d codes, version %d)", cfg.RegistryPath, registry.Len(), registry.Version())
	} else {
		log.Printf("Error code registry using compiled-in table (%d codes, version %d)", registry.Len(), registry.Version())
	}

	// Authentication for the query/settings API; denials render as
	// problem+json classified through the registry.
	authenticator := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          time.Duration(cfg.JWTExpiryHours) * time.Hour,
		SkipPaths: []string{
			"/health",
			"/api/errors/report",
			"/auth/login",
		},
	}, registry)
	log.Printf("Authentication enabled for operator: %s", cfg.AdminUsername)

	db := database.GetDB()

	// Initialize incident service
	incidentService := services.NewIncidentService(db, registry)
	log.Printf("Incident service initialized")

	// Initialize analytics service
	analyticsService := services.NewAnalyticsService(db)
	log.Printf("Analytics service initialized")

	// Escalation settings drive the dispatcher retry budget
	settings, err := database.GetOrCreateEscalationSettings(db)
	if err != nil {
		log.Fatalf("Failed to load escalation settings: %v", err)
	}

	// Pick the ticket sink: webhook when configured, local log otherwise
	var sink escalate.TicketSink
	if cfg.TicketWebhookURL != "" {
		sink = escalate.NewWebhookSink(cfg.TicketWebhookURL, cfg.TicketWebhookSecret)
		log.Printf("Ticket sink: webhook %s", cfg.TicketWebhookURL)
	} else {
		sink = escalate.LogSink{}
		log.Printf("Ticket sink: local log (set TICKET_WEBHOOK_URL to create real tickets)")
	}

	dispatcher := escalate.NewDispatcher(db, sink,
		settings.DispatchMaxAttempts,
		time.Duration(settings.DispatchBackoffSeconds)*time.Second)
	incidentService.SetEscalationNotifier(dispatcher.Enqueue)

	stopDispatcher := make(chan struct{})
	go dispatcher.Start(stopDispatcher)
	log.Printf("Escalation dispatcher started")

	// Initialize HTTP handler
	httpHandler := handlers.NewHTTPHandler()

	// Initialize ingest handler for error reports
	reportHandler := handlers.NewReportHandler(incidentService, registry)

	// Initialize API handler for the management surface
	apiHandler := handlers.NewAPIHandler(incidentService, analyticsService)

	// Initialize auth handler
	authHandler := handlers.NewAuthHandler(authenticator, registry)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	reportHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	// Wrap all routes with CORS first, then correlation IDs, then
	// authentication, so denials carry the request's trace ID.
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := corsMiddleware.Wrap(middleware.CorrelationIDMiddleware(authenticator.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Faultline is running! Press Ctrl+C to exit.")
	log.Printf("Error ingest endpoint: http://localhost:%d/api/errors/report", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	close(stopDispatcher)

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
