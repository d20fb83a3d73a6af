package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/diligince-ai/be-procurement-approvals/internal/client"
	"github.com/diligince-ai/be-procurement-approvals/internal/config"
	"github.com/diligince-ai/be-procurement-approvals/internal/database"
	"github.com/diligince-ai/be-procurement-approvals/internal/handler"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
	"github.com/diligince-ai/be-procurement-approvals/internal/middleware"
	"github.com/diligince-ai/be-procurement-approvals/internal/repository"
	"github.com/diligince-ai/be-procurement-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Procurement Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	configRepo := repository.NewConfigurationRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)

	// Initialize notification publisher
	publisher, err := client.NewNotificationPublisher(cfg.NATS.URL, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification publisher")
	}

	// Initialize services
	approvalService := service.NewApprovalService(
		configRepo, workflowRepo, auditRepo, requirementRepo, publisher, log)
	configService := service.NewConfigurationService(configRepo, log)

	// Background overdue-stage scanner
	if cfg.Overdue.Enabled {
		scanner := service.NewOverdueScanner(workflowRepo, publisher, log, cfg.Overdue.ScanInterval)
		go scanner.Run(ctx)
	}

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, configService, log)
	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router, middleware.Auth(cfg.Auth.JWTSecret))

	// Apply middleware (outermost first at the bottom)
	var h http.Handler = router
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
