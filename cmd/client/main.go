package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/csabourin/stamppassport/internal/client/api"
	"github.com/csabourin/stamppassport/internal/client/cli"
	"github.com/csabourin/stamppassport/internal/client/payload"
	"github.com/csabourin/stamppassport/internal/client/session"
	"github.com/csabourin/stamppassport/internal/client/storage/boltdb"
	"github.com/csabourin/stamppassport/internal/client/storage/dual"
	"github.com/csabourin/stamppassport/internal/client/storage/kvfile"
	"github.com/csabourin/stamppassport/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// beaconGrace is how long the exiting process waits for the detached
// teardown beacon to reach the wire.
const beaconGrace = 250 * time.Millisecond

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server base URL (empty disables sync)")
	dataDir := flag.String("dir", ".stamppassport", "Data directory")
	bootstrapCID := flag.String("cid", "", "Bootstrap contest id (used only on first run)")
	contestVersion := flag.String("contest", "2026", "Contest version")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	command := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx := context.Background()

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	// The BoltDB tier is best effort: when it cannot be opened the JSON
	// fallback carries the passport alone.
	var primary dual.Backend
	if boltStorage, err := boltdb.New(ctx, filepath.Join(*dataDir, "passport.db")); err != nil {
		logger.Warn("primary storage unavailable, using fallback only", "error", err)
	} else {
		primary = boltStorage
	}

	fallbackPath, err := kvfile.DefaultPath(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare storage: %v\n", err)
		os.Exit(1)
	}
	fallback, err := kvfile.New(fallbackPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}

	store := dual.New(primary, fallback, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close storage", "error", err)
		}
	}()

	sess, err := session.Open(ctx, store, *bootstrapCID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open session: %v\n", err)
		os.Exit(1)
	}

	var apiClient api.ClientAPI
	if *serverURL != "" {
		apiClient = api.NewClient(*serverURL, logger)
	}

	builder := payload.NewBuilder(store, *contestVersion)
	svc := sync.NewService(apiClient, store, store, builder, sess.ContestID(), logger)

	var runErr error
	switch command {
	case "collect":
		runErr = cli.RunCollect(ctx, args[1:], store, svc, os.Stdout)
	case "stamps":
		runErr = cli.RunStamps(ctx, store, os.Stdout)
	case "status":
		runErr = cli.RunStatus(ctx, store, sess.ContestID(), os.Stdout)
	case "sync":
		runErr = cli.RunSync(ctx, svc, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	// The process is about to exit, which is this client's teardown
	// moment: fire the final best-effort beacon before stopping. The
	// beacon is detached, so it needs a moment on the wire before the
	// process goes away.
	if apiClient != nil {
		svc.Teardown(ctx)
		time.Sleep(beaconGrace)
	}
	svc.Stop()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Stamp Passport Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
