// Package payload derives the canonical sync payload from the local
// progress store.
package payload

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

// Builder produces ProgressPayload snapshots. Deterministic for the same
// store contents except for updatedAt.
type Builder struct {
	now            func() time.Time
	stamps         storage.StampStorage
	contestVersion string
}

// NewBuilder creates a payload builder for the given stamp store.
func NewBuilder(stamps storage.StampStorage, contestVersion string) *Builder {
	return &Builder{
		stamps:         stamps,
		contestVersion: contestVersion,
		now:            time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build snapshots the stamp store as a ProgressPayload: sorted step ids,
// score equal to the step count, and a timestamp for every step. A stamp
// missing its own collection time gets "now"; that should not happen in
// practice, but a step must never ship without provenance.
func (b *Builder) Build(ctx context.Context) (*models.ProgressPayload, error) {
	stamps, err := b.stamps.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stamps: %w", err)
	}

	now := b.now().UTC()

	steps := make([]string, 0, len(stamps))
	timestamps := make(map[string]string, len(stamps))

	for _, stamp := range stamps {
		steps = append(steps, stamp.LocationID)

		collected := stamp.CollectedAt
		if collected.IsZero() {
			collected = now
		}
		timestamps[stamp.LocationID] = collected.UTC().Format(time.RFC3339)
	}
	sort.Strings(steps)

	return &models.ProgressPayload{
		SchemaVersion:  models.SchemaVersion,
		ContestVersion: b.contestVersion,
		UpdatedAt:      now.Format(time.RFC3339),
		Progress: models.Progress{
			StepsCompleted: steps,
			Score:          len(steps),
			Custom:         models.CustomData{StampTimestamps: timestamps},
		},
	}, nil
}
