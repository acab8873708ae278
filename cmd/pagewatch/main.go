// main.go - analytics pipeline HTTP server
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	v1 "pagewatch/api/v1"
	"pagewatch/internal/config"
	"pagewatch/internal/identity"
	"pagewatch/internal/logging"
	"pagewatch/internal/recorder"
	"pagewatch/internal/storage"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	// Best-effort .env load for local development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg := config.GetConfig()
	logger := logging.New(cfg)

	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		log.Fatalf("Failed to create storage directory: %v", err)
	}

	// The local store always exists: it holds the identity record and the
	// counters even when events go to the remote backend.
	local, err := storage.NewLocalStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}

	store := storage.Select(cfg, logger, local)
	identities := identity.NewStore(local, logger)
	rec := recorder.New(store, identities, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
	})

	handler := v1.NewHandler(cfg, store, local, rec, identities, logger)
	handler.RegisterRoutes(app)

	go func() {
		logger.Info("Starting server", slog.String("port", cfg.GetPort()))
		if err := app.Listen(":" + cfg.GetPort()); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	waitForShutdownSignal(app, logger)
}

// waitForShutdownSignal sets up signal handling and performs graceful shutdown
func waitForShutdownSignal(app *fiber.App, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Error during shutdown", slog.Any("error", err))
		os.Exit(1)
	}
}
