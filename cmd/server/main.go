package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/csabourin/stamppassport/internal/server/config"
	"github.com/csabourin/stamppassport/internal/server/handlers"
	"github.com/csabourin/stamppassport/internal/server/locations"
	"github.com/csabourin/stamppassport/internal/server/middleware"
	"github.com/csabourin/stamppassport/internal/server/progress"
	"github.com/csabourin/stamppassport/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	if cfg.LocationsPath != "" {
		seed, err := locations.Load(cfg.LocationsPath)
		if err != nil {
			return fmt.Errorf("failed to load locations: %w", err)
		}
		if err := store.SeedLocations(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed locations: %w", err)
		}
		logger.Info("locations seeded", "count", len(seed))
	}

	progressHandler := handlers.NewProgressHandler(logger, progress.NewService(store, logger))
	collectionHandler := handlers.NewCollectionHandler(logger, store, handlers.GeofenceConfig{
		Enabled: cfg.GeofenceEnabled,
		Radius:  cfg.GeofenceRadius,
	})
	healthHandler := handlers.NewHealthHandler(logger, Version)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{"/health"}))
	r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow, logger))

	r.Get("/health", healthHandler.Health)
	r.Get("/contest-progress", progressHandler.GetProgress)
	r.Post("/contest-progress", progressHandler.PostProgress)
	r.Get("/api/locations", collectionHandler.ListLocations)
	r.Get("/api/resolve", collectionHandler.Resolve)
	r.Post("/api/collect", collectionHandler.Collect)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("Stamp Passport Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
