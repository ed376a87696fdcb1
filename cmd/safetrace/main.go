package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/handlers"
	"github.com/safetrace/safetrace/internal/jobs"
	"github.com/safetrace/safetrace/internal/llm"
	"github.com/safetrace/safetrace/internal/middleware"
	"github.com/safetrace/safetrace/internal/notify"
	"github.com/safetrace/safetrace/internal/services"
	"github.com/safetrace/safetrace/internal/storage"
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

	log.Printf("Starting SafeTrace incident investigation server...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			// Internal retrigger endpoint: passes through without a
			// token, but a valid token still attributes the action
			"/api/documents/process",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Load analysis settings (defaults plus optional YAML overrides)
	settings, err := config.LoadAnalysisSettings(cfg.AnalysisSettingsPath)
	if err != nil {
		log.Fatalf("Failed to load analysis settings: %v", err)
	}
	if cfg.AnalysisSettingsPath != "" {
		log.Printf("Analysis settings loaded from %s", cfg.AnalysisSettingsPath)
	}

	// Initialize object storage backend
	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "gcs":
		gcsStore, err := storage.NewGCSStore(context.Background(), cfg.GCSBucket)
		if err != nil {
			log.Fatalf("Failed to initialize GCS storage: %v", err)
		}
		store = gcsStore
		log.Printf("Object storage: GCS bucket %s", cfg.GCSBucket)
	default:
		localStore, err := storage.NewLocalStore(cfg.LocalStorePath)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		store = localStore
		log.Printf("Object storage: local directory %s", cfg.LocalStorePath)
	}

	// Initialize LLM client (shared by all analysis stages)
	llmClient := llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIKey == "" {
		log.Printf("Warning: OPENAI_API_KEY is not set; analysis endpoints will fail")
	}

	// Slack notifier (nil-safe when no token is configured)
	notifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackSafetyChannel)
	if cfg.SlackBotToken != "" {
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackSafetyChannel)
	} else {
		log.Printf("Slack notifications disabled (no SLACK_BOT_TOKEN)")
	}

	// Event hub for workflow push updates
	hub := events.NewHub()

	// Background task dispatcher
	dispatcher := jobs.NewDispatcher(cfg.DispatcherWorkers, cfg.DispatcherQueueSize, 5*time.Minute)
	dispatcher.Start()

	// Workflow services
	db := database.GetDB()
	audit := services.NewAuditRecorder(db)
	incidentService := services.NewIncidentService(db, audit)
	documentService := services.NewDocumentService(db, store, llmClient, audit, hub, settings)
	firstPassService := services.NewFirstPassService(db, llmClient, audit, hub, notifier, settings)
	secondPassService := services.NewSecondPassService(db, llmClient, audit, hub, notifier, settings)
	reviewService := services.NewReviewService(db, audit, dispatcher, secondPassService)
	reportService := services.NewReportService(db, audit, hub, notifier)
	log.Printf("Workflow services initialized")

	// Processing deadline sweeper
	sweeper := jobs.NewProcessingSweeper(db, time.Duration(settings.ProcessingDeadlineMinutes)*time.Minute)
	sweeperStop := make(chan struct{})
	go sweeper.Start(time.Duration(settings.SweepIntervalMinutes)*time.Minute, sweeperStop)
	log.Printf("Processing sweeper started (deadline %dm, interval %dm)",
		settings.ProcessingDeadlineMinutes, settings.SweepIntervalMinutes)

	// HTTP handlers
	httpHandler := handlers.NewHTTPHandler()
	apiHandler := handlers.NewAPIHandler(incidentService, documentService,
		firstPassService, secondPassService, reviewService, reportService,
		audit, hub, dispatcher)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	// Wrap all routes: request ID, CORS, then JWT authentication
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

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

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	close(sweeperStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	// Drain in-flight background tasks before exiting
	dispatcher.Stop()

	log.Println("Shutdown complete")
}
