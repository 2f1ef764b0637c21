package storage

import (
	"context"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
)

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines the interface for sync bookkeeping on the
// client device: the contest identifier, the last known server revision,
// the last sync time, the outbox slot and one-time UI flags.
type MetadataStorage interface {
	// GetContestID returns the persisted contest identifier, or ""
	// if none has been issued yet.
	GetContestID(ctx context.Context) (string, error)

	// SaveContestID persists the contest identifier.
	SaveContestID(ctx context.Context, cid string) error

	// GetRevision returns the last known server revision, or 0 if the
	// client has never completed a sync.
	GetRevision(ctx context.Context) (int64, error)

	// SaveRevision persists the last known server revision.
	SaveRevision(ctx context.Context, revision int64) error

	// GetLastSyncTime returns the time of the last successful sync,
	// or the zero time if none has happened.
	GetLastSyncTime(ctx context.Context) (time.Time, error)

	// SaveLastSyncTime persists the time of the last successful sync.
	SaveLastSyncTime(ctx context.Context, t time.Time) error

	// GetOutbox returns the payload parked by a failed sync attempt.
	// Returns ErrOutboxEmpty if nothing is pending.
	GetOutbox(ctx context.Context) (*models.ProgressPayload, error)

	// SaveOutbox parks a payload for the next sync opportunity.
	// A newer payload replaces any older one: payloads are cumulative
	// snapshots, so only the latest matters.
	SaveOutbox(ctx context.Context, payload *models.ProgressPayload) error

	// ClearOutbox empties the outbox slot.
	ClearOutbox(ctx context.Context) error

	// GetFlag reports whether a one-time UI flag has been set.
	GetFlag(ctx context.Context, name string) (bool, error)

	// SetFlag sets a one-time UI flag.
	SetFlag(ctx context.Context, name string) error
}
