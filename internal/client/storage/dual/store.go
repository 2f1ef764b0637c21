// Package dual layers the two client storage tiers behind one facade.
// Writes go to both tiers so either can serve reads; a missing or failing
// primary degrades silently to the fallback, matching the behaviour of
// the richer store being unavailable on some devices.
package dual

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

// Backend is one storage tier: stamps plus sync bookkeeping.
type Backend interface {
	storage.StampStorage
	storage.MetadataStorage
	Close() error
}

// Store implements storage.StampStorage and storage.MetadataStorage over
// a primary and a fallback backend. The primary may be nil.
type Store struct {
	primary  Backend
	fallback Backend
	logger   *slog.Logger
}

// New creates a dual store. primary may be nil when the primary backend
// could not be opened; callers are never told the difference.
func New(primary, fallback Backend, logger *slog.Logger) *Store {
	return &Store{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Close closes both tiers.
func (s *Store) Close() error {
	var errs []error
	if s.primary != nil {
		errs = append(errs, s.primary.Close())
	}
	errs = append(errs, s.fallback.Close())
	return errors.Join(errs...)
}

// writeBoth applies a mutation to both tiers. Primary failures are logged
// and swallowed; the fallback write is authoritative for error reporting.
func (s *Store) writeBoth(op string, primary, fallback func() error) error {
	if s.primary != nil {
		if err := primary(); err != nil {
			s.logger.Warn("primary storage write failed",
				"op", op,
				"error", err)
		}
	}
	return fallback()
}

// Has retrieves a stamp, trying the primary tier first.
func (s *Store) Has(ctx context.Context, locationID string) (*models.Stamp, error) {
	if s.primary != nil {
		stamp, err := s.primary.Has(ctx, locationID)
		if err == nil {
			return stamp, nil
		}
		if !errors.Is(err, storage.ErrStampNotFound) {
			s.logger.Warn("primary storage read failed", "op", "has", "error", err)
		}
	}
	return s.fallback.Has(ctx, locationID)
}

// Put stores a stamp in both tiers.
func (s *Store) Put(ctx context.Context, stamp *models.Stamp) error {
	return s.writeBoth("put_stamp",
		func() error { return s.primary.Put(ctx, stamp) },
		func() error { return s.fallback.Put(ctx, stamp) })
}

// ListAll returns every collected stamp from the first tier that answers.
func (s *Store) ListAll(ctx context.Context) ([]*models.Stamp, error) {
	if s.primary != nil {
		stamps, err := s.primary.ListAll(ctx)
		if err == nil {
			return stamps, nil
		}
		s.logger.Warn("primary storage read failed", "op", "list", "error", err)
	}
	return s.fallback.ListAll(ctx)
}

// GetContestID returns the contest identifier from the first tier that
// has one.
func (s *Store) GetContestID(ctx context.Context) (string, error) {
	if s.primary != nil {
		cid, err := s.primary.GetContestID(ctx)
		if err == nil && cid != "" {
			return cid, nil
		}
		if err != nil {
			s.logger.Warn("primary storage read failed", "op", "get_cid", "error", err)
		}
	}
	return s.fallback.GetContestID(ctx)
}

// SaveContestID persists the contest identifier in both tiers.
func (s *Store) SaveContestID(ctx context.Context, cid string) error {
	return s.writeBoth("save_cid",
		func() error { return s.primary.SaveContestID(ctx, cid) },
		func() error { return s.fallback.SaveContestID(ctx, cid) })
}

// GetRevision returns the last known server revision.
func (s *Store) GetRevision(ctx context.Context) (int64, error) {
	if s.primary != nil {
		revision, err := s.primary.GetRevision(ctx)
		if err == nil && revision != 0 {
			return revision, nil
		}
		if err != nil {
			s.logger.Warn("primary storage read failed", "op", "get_revision", "error", err)
		}
	}
	return s.fallback.GetRevision(ctx)
}

// SaveRevision persists the last known server revision in both tiers.
func (s *Store) SaveRevision(ctx context.Context, revision int64) error {
	return s.writeBoth("save_revision",
		func() error { return s.primary.SaveRevision(ctx, revision) },
		func() error { return s.fallback.SaveRevision(ctx, revision) })
}

// GetLastSyncTime returns the time of the last successful sync.
func (s *Store) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	if s.primary != nil {
		t, err := s.primary.GetLastSyncTime(ctx)
		if err == nil && !t.IsZero() {
			return t, nil
		}
		if err != nil {
			s.logger.Warn("primary storage read failed", "op", "get_last_sync", "error", err)
		}
	}
	return s.fallback.GetLastSyncTime(ctx)
}

// SaveLastSyncTime persists the last sync time in both tiers.
func (s *Store) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	return s.writeBoth("save_last_sync",
		func() error { return s.primary.SaveLastSyncTime(ctx, t) },
		func() error { return s.fallback.SaveLastSyncTime(ctx, t) })
}

// GetOutbox returns the pending payload from the first tier that has one.
func (s *Store) GetOutbox(ctx context.Context) (*models.ProgressPayload, error) {
	if s.primary != nil {
		payload, err := s.primary.GetOutbox(ctx)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, storage.ErrOutboxEmpty) {
			s.logger.Warn("primary storage read failed", "op", "get_outbox", "error", err)
		}
	}
	return s.fallback.GetOutbox(ctx)
}

// SaveOutbox parks a payload in both tiers.
func (s *Store) SaveOutbox(ctx context.Context, payload *models.ProgressPayload) error {
	return s.writeBoth("save_outbox",
		func() error { return s.primary.SaveOutbox(ctx, payload) },
		func() error { return s.fallback.SaveOutbox(ctx, payload) })
}

// ClearOutbox empties the outbox in both tiers.
func (s *Store) ClearOutbox(ctx context.Context) error {
	return s.writeBoth("clear_outbox",
		func() error { return s.primary.ClearOutbox(ctx) },
		func() error { return s.fallback.ClearOutbox(ctx) })
}

// GetFlag reports whether a one-time UI flag has been set in either tier.
func (s *Store) GetFlag(ctx context.Context, name string) (bool, error) {
	if s.primary != nil {
		set, err := s.primary.GetFlag(ctx, name)
		if err == nil && set {
			return true, nil
		}
		if err != nil {
			s.logger.Warn("primary storage read failed", "op", "get_flag", "error", err)
		}
	}
	return s.fallback.GetFlag(ctx, name)
}

// SetFlag sets a one-time UI flag in both tiers.
func (s *Store) SetFlag(ctx context.Context, name string) error {
	return s.writeBoth("set_flag",
		func() error { return s.primary.SetFlag(ctx, name) },
		func() error { return s.fallback.SetFlag(ctx, name) })
}
