package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/config"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers"
	"github.com/chris/escrow-settlement/pkg/handlers/respond"
	wshandler "github.com/chris/escrow-settlement/pkg/handlers/websockets"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage/memory"
	"github.com/chris/escrow-settlement/pkg/websockets"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if len(cfg.JWTSecret) == 0 {
		logger.Error("JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	store := cfg.Storage(awsCfg)
	if mem, ok := store.(*memory.Store); ok && cfg.SeedItemsPath != "" {
		if err := seedItems(mem, cfg.SeedItemsPath); err != nil {
			logger.Error("failed to seed items", "path", cfg.SeedItemsPath, "error", err)
			os.Exit(1)
		}
	}

	calc, err := cfg.FeeCalculator()
	if err != nil {
		logger.Error("failed to load fee rules", "error", err)
		os.Exit(1)
	}

	// Local connections are pushed to directly; the queue feeds everything else.
	hub := websockets.NewHub()
	notifier := notify.Multi{hub}
	if queue := cfg.QueueNotifier(awsCfg); queue != nil {
		notifier = append(notifier, queue)
	}

	engine := escrow.New(store, calc, cfg.Gateways(), notifier, cfg.Escrow())

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.NewStructuredLogger(logger))
	router.Use(middleware.NewAuthenticator(cfg.JWTSecret))

	router.Handle("/ws", wshandler.NewHandler(nil, hub, cfg.JWTSecret))

	api.HandlerWithOptions(handlers.NewApiHandler(engine), api.ChiServerOptions{
		BaseRouter:       router,
		ErrorHandlerFunc: respond.Error,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting server", "port", cfg.HTTPPort, "storage", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func seedItems(store *memory.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	for _, item := range items {
		store.PutItem(item)
	}
	slog.Info("Seeded catalog items", "count", len(items))
	return nil
}
