// Package session owns the contest identifier for one device profile.
// The CID is issued once, persisted, and never regenerated unless local
// storage is cleared.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/validation"
)

// Session holds the device's contest identifier and the store it lives
// in. Construct with Open; there is no implicit global state.
type Session struct {
	meta   storage.MetadataStorage
	logger *slog.Logger
	cid    string
}

// Open loads or issues the contest identifier.
//
// bootstrapCID is a one-time handoff value (e.g. from a shared
// cross-domain link). It is adopted only when no CID exists locally yet;
// adopting over an existing CID would fork the device's synced record.
// An invalid bootstrap value is ignored.
func Open(ctx context.Context, meta storage.MetadataStorage, bootstrapCID string, logger *slog.Logger) (*Session, error) {
	s := &Session{meta: meta, logger: logger}

	existing, err := meta.GetContestID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest id: %w", err)
	}

	if existing != "" {
		if bootstrapCID != "" && bootstrapCID != existing {
			logger.Debug("ignoring bootstrap contest id, device already has one",
				"existing", existing)
		}
		s.cid = existing
		return s, nil
	}

	if bootstrapCID != "" && validation.IsValidCID(bootstrapCID) {
		if err := meta.SaveContestID(ctx, bootstrapCID); err != nil {
			return nil, fmt.Errorf("failed to persist bootstrap contest id: %w", err)
		}
		logger.Info("adopted bootstrap contest id")
		s.cid = bootstrapCID
		return s, nil
	}

	cid := uuid.NewString()
	if err := meta.SaveContestID(ctx, cid); err != nil {
		return nil, fmt.Errorf("failed to persist contest id: %w", err)
	}
	logger.Info("issued new contest id")

	s.cid = cid
	return s, nil
}

// ContestID returns the session's contest identifier.
func (s *Session) ContestID() string {
	return s.cid
}
