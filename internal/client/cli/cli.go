// Package cli implements the passport client commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/client/sync"
	"github.com/csabourin/stamppassport/internal/models"
)

// PrintUsage writes the command summary.
func PrintUsage(out io.Writer) {
	fmt.Fprintln(out, `Usage: stamppassport-client [flags] <command> [args]

Commands:
  collect <location>   record a stamp for a location
  stamps               list collected stamps
  status               show sync state
  sync                 run a sync cycle now

Flags:
  -server   server base URL (empty disables sync)
  -dir      data directory
  -cid      bootstrap contest id (used only on first run)
  -contest  contest version
  -version  show version information`)
}

// RunCollect records a stamp for a location and triggers a sync.
// Collecting works offline; the stamp is local first and synced when the
// network allows.
func RunCollect(ctx context.Context, args []string, stamps storage.StampStorage, svc sync.Service, out io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: collect <location>")
	}
	locationID := args[0]

	if existing, err := stamps.Has(ctx, locationID); err == nil {
		fmt.Fprintf(out, "Already collected %s on %s\n",
			locationID, existing.CollectedAt.Local().Format("2006-01-02 15:04"))
		return nil
	} else if !errors.Is(err, storage.ErrStampNotFound) {
		return fmt.Errorf("failed to check stamp: %w", err)
	}

	stamp := &models.Stamp{
		LocationID:  locationID,
		CollectedAt: time.Now().UTC(),
	}
	if err := stamps.Put(ctx, stamp); err != nil {
		return fmt.Errorf("failed to record stamp: %w", err)
	}

	fmt.Fprintf(out, "Collected %s\n", locationID)

	// Best effort; an offline collect is still a collect.
	if err := svc.SyncProgress(ctx); err != nil {
		fmt.Fprintf(out, "Sync deferred: %v\n", err)
	}

	return nil
}

// RunStamps lists every collected stamp.
func RunStamps(ctx context.Context, stamps storage.StampStorage, out io.Writer) error {
	all, err := stamps.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stamps: %w", err)
	}

	if len(all) == 0 {
		fmt.Fprintln(out, "No stamps collected yet")
		return nil
	}

	for _, stamp := range all {
		fmt.Fprintf(out, "%s  %s\n",
			stamp.CollectedAt.Local().Format("2006-01-02 15:04"), stamp.LocationID)
	}
	fmt.Fprintf(out, "Total: %d\n", len(all))

	return nil
}

// RunStatus shows the contest id and sync state.
func RunStatus(ctx context.Context, meta storage.MetadataStorage, cid string, out io.Writer) error {
	fmt.Fprintf(out, "Contest ID: %s\n", cid)

	revision, err := meta.GetRevision(ctx)
	if err != nil {
		return fmt.Errorf("failed to read revision: %w", err)
	}
	fmt.Fprintf(out, "Revision:   %d\n", revision)

	lastSync, err := meta.GetLastSyncTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last sync time: %w", err)
	}
	if lastSync.IsZero() {
		fmt.Fprintln(out, "Last sync:  never")
	} else {
		fmt.Fprintf(out, "Last sync:  %s\n", lastSync.Local().Format("2006-01-02 15:04:05"))
	}

	if _, err := meta.GetOutbox(ctx); err == nil {
		fmt.Fprintln(out, "Outbox:     pending payload waiting for the network")
	} else if !errors.Is(err, storage.ErrOutboxEmpty) {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	return nil
}

// RunSync runs one sync cycle immediately.
func RunSync(ctx context.Context, svc sync.Service, out io.Writer) error {
	if err := svc.SyncProgress(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Fprintln(out, "Sync completed")
	return nil
}
