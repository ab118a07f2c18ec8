package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/config"
	"github.com/Mastero4ek/bull-diary-sub002/internal/app"
	httphandler "github.com/Mastero4ek/bull-diary-sub002/internal/handlers/http"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutting down...")
		cancel()
	}()

	log.Info("Initializing app...")
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}

	// Set up HTTP server
	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := httphandler.NewServer(httpAddr, application.SyncService, application.Progress, application.Broadcaster, log)

	// Start HTTP server in a goroutine
	go func() {
		log.Info("HTTP server listening", "addr", httpAddr)
		if err := httpServer.Start(); err != nil {
			log.Info("HTTP server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Clean up app resources
	log.Info("Cleaning up app resources...")
	application.Cleanup(ctx)

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("Service stopped.")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default: // envLocal
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
}
