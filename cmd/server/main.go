package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitsync/settings-app/internal/api"
	"fitsync/settings-app/internal/cache"
	"fitsync/settings-app/internal/config"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository/mongo"
	"fitsync/settings-app/internal/service"
	"fitsync/settings-app/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// --- Logger ---
	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("starting settings service")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		appLog.Fatal("could not connect to MongoDB", "error", err)
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			appLog.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	appLog.Info("database connection established", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		mongo.EnsureProfileIndexes(ctx, appDB, appLog)
		mongo.EnsureSettingsIndexes(ctx, appDB, appLog)
	}()

	// --- Cached-view Invalidation ---
	views, err := cache.NewRedisInvalidator(cfg.Redis, appLog)
	if err != nil {
		appLog.Fatal("could not connect to Redis", "error", err)
	}
	defer views.Close()

	// --- Object Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3, appLog)
	if err != nil {
		appLog.Fatal("could not initialize object storage", "error", err)
	}

	// --- Repositories ---
	settingsRepo := mongo.NewMongoSettingsRepository(appDB, appLog)
	accountRepo := mongo.NewMongoAccountRepository(appDB, appLog)

	// --- Services ---
	profileStore := service.NewProfileStore(accountRepo, cfg.JWT.Secret, cfg.JWT.Expiration, appLog)
	settingsService := service.NewSettingsService(settingsRepo, accountRepo, views, profileStore, fileStorage, appLog)

	// --- HTTP ---
	router := gin.Default()
	api.SetupRoutes(router, cfg.JWT.Secret, profileStore, settingsService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	appLog.Info("server starting", "address", cfg.Server.Address)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("listen and serve error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Fatal("server forced to shutdown", "error", err)
	}

	appLog.Info("server exiting")
}
