package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/adventure-engine/internal/config"
	"github.com/jwebster45206/adventure-engine/internal/handlers"
	"github.com/jwebster45206/adventure-engine/internal/logger"
	"github.com/jwebster45206/adventure-engine/internal/middleware"
	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/internal/services/events"
	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/internal/storage"
	store "github.com/jwebster45206/adventure-engine/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Adventure Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"round_policy", cfg.RoundPolicy())

	opts := sessions.Options{
		Logger:           log,
		AdvanceTurnDelay: cfg.AdvanceTurnDelay,
		HistoryLimit:     cfg.HistoryLimit,
		RoundPolicy:      cfg.RoundPolicy(),
	}

	var storageService store.Storage
	var eventsHandler *handlers.EventsHandler

	switch cfg.StorageBackend {
	case config.BackendSQLite:
		sqlite, err := storage.OpenSQLite(cfg.SQLitePath, cfg.DataDir, log)
		if err != nil {
			log.Error("Failed to open SQLite storage", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		storageService = sqlite
		opts.EffectLog = effectlog.NewMemoryLog(cfg.EffectLogSize)
		log.Info("Using SQLite storage; event streaming is disabled", "path", cfg.SQLitePath)

	default:
		redisStorage, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, cfg.StateTTL, log)
		if err != nil {
			logger.WithError(log, err).Error("Failed to configure Redis storage")
			os.Exit(1)
		}
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := redisStorage.WaitForConnection(waitCtx); err != nil {
			waitCancel()
			logger.WithError(log, err).Error("Failed to connect to storage")
			os.Exit(1)
		}
		waitCancel()

		storageService = redisStorage
		broadcaster := events.NewBroadcaster(redisStorage.Client(), log)
		opts.Publisher = broadcaster
		opts.EffectLog = effectlog.NewRedisLog(redisStorage.Client(), cfg.EffectLogSize)
		eventsHandler = handlers.NewEventsHandler(broadcaster, log)
	}
	log.Info("Storage connection established successfully")

	opts.Storage = storageService
	manager := sessions.NewManager(opts)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     routes(log, storageService, manager, eventsHandler),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoint streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(log, err).Error("Server forced to shutdown")
	}

	manager.Close()
	if err := storageService.Close(); err != nil {
		logger.WithError(log, err).Error("Error closing storage connection")
	}

	log.Info("Server exited")
}

func routes(log *slog.Logger, storageService store.Storage, manager *sessions.Manager, eventsHandler *handlers.EventsHandler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(storageService, manager, log))

	adventuresHandler := handlers.NewAdventuresHandler(storageService, log)
	mux.Handle("/v1/adventures", adventuresHandler)
	mux.Handle("/v1/adventures/", adventuresHandler)

	sessionsHandler := handlers.NewSessionsHandler(manager, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	mux.Handle("/v1/unlocks/", handlers.NewUnlocksHandler(storageService, log))

	if eventsHandler != nil {
		mux.Handle("/v1/events/", eventsHandler)
	}

	return middleware.Recover(log, middleware.Logger(log, mux))
}
