package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"vetscan-backend/internal/blobstore"
	"vetscan-backend/internal/config"
	"vetscan-backend/internal/database"
	"vetscan-backend/internal/extraction"
	"vetscan-backend/internal/handlers"
	"vetscan-backend/internal/middleware"
	"vetscan-backend/internal/normalizer"
	"vetscan-backend/internal/pdfimages"
	"vetscan-backend/internal/pipeline"
	"vetscan-backend/internal/repository"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	initLogger(cfg.LogLevel)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	if err := migrator.Run(context.Background()); err != nil {
		migrator.Close()
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	migrator.Close()

	store, err := repository.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	blobs, err := blobstore.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.UploadsBucket, cfg.ImagesBucket)
	if err != nil {
		slog.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	extractionClient := extraction.NewClient(cfg.ExtractionBaseURL, cfg.ExtractionAPIKey, cfg.ExtractionTimeout)
	imageExtractor := pdfimages.New(blobs, cfg.MinImageAreaPx, cfg.MaxImageDimension)

	orchestrator := pipeline.New(store, extractionClient, imageExtractor, normalizer.New(nil), pipeline.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Budget:      cfg.ProcessingBudget,
	})

	documentsHandler := handlers.NewDocumentsHandler(store, blobs, orchestrator, cfg.MaxFileSizeMB, cfg.SignedURLTTL)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	api.POST("/documents", documentsHandler.Upload)
	api.GET("/documents", documentsHandler.List)
	api.GET("/documents/:document_id", documentsHandler.Get)
	api.GET("/documents/:document_id/images", documentsHandler.Images)
	api.DELETE("/documents/:document_id", documentsHandler.Delete)

	slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func initLogger(level string) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}
