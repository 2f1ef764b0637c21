package kvfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

func TestStore_StampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "passport.kv.json")

	s, err := New(path)
	require.NoError(t, err)

	_, err = s.Has(ctx, "loc1")
	assert.ErrorIs(t, err, storage.ErrStampNotFound)

	first := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, &models.Stamp{LocationID: "loc1", CollectedAt: first}))
	require.NoError(t, s.Put(ctx, &models.Stamp{LocationID: "loc2", CollectedAt: first.Add(time.Hour)}))

	// First-write-wins on re-collection.
	require.NoError(t, s.Put(ctx, &models.Stamp{LocationID: "loc1", CollectedAt: first.Add(48 * time.Hour)}))

	got, err := s.Has(ctx, "loc1")
	require.NoError(t, err)
	assert.True(t, got.CollectedAt.Equal(first))

	stamps, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	assert.Equal(t, "loc1", stamps[0].LocationID)
	assert.Equal(t, "loc2", stamps[1].LocationID)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "passport.kv.json")

	s, err := New(path)
	require.NoError(t, err)

	require.NoError(t, s.SaveContestID(ctx, "550e8400-e29b-41d4-a716-446655440000"))
	require.NoError(t, s.SaveRevision(ctx, 7))
	require.NoError(t, s.Put(ctx, &models.Stamp{
		LocationID:  "loc1",
		CollectedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}))

	reopened, err := New(path)
	require.NoError(t, err)

	cid, err := reopened.GetContestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", cid)

	revision, err := reopened.GetRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), revision)

	stamps, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stamps, 1)
}

func TestStore_MetadataDefaults(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "passport.kv.json"))
	require.NoError(t, err)

	cid, err := s.GetContestID(ctx)
	require.NoError(t, err)
	assert.Empty(t, cid)

	revision, err := s.GetRevision(ctx)
	require.NoError(t, err)
	assert.Zero(t, revision)

	ts, err := s.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = s.GetOutbox(ctx)
	assert.ErrorIs(t, err, storage.ErrOutboxEmpty)
}

func TestStore_OutboxAndFlags(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "passport.kv.json"))
	require.NoError(t, err)

	payload := &models.ProgressPayload{
		SchemaVersion:  models.SchemaVersion,
		ContestVersion: "2026",
		UpdatedAt:      "2026-08-15T12:00:00Z",
		Progress: models.Progress{
			StepsCompleted: []string{"loc1"},
			Score:          1,
			Custom: models.CustomData{
				StampTimestamps: map[string]string{"loc1": "2026-08-15T11:00:00Z"},
			},
		},
	}

	require.NoError(t, s.SaveOutbox(ctx, payload))
	got, err := s.GetOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.ClearOutbox(ctx))
	_, err = s.GetOutbox(ctx)
	assert.ErrorIs(t, err, storage.ErrOutboxEmpty)

	set, err := s.GetFlag(ctx, "sticker_prompt_dismissed")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.SetFlag(ctx, "sticker_prompt_dismissed"))
	set, err = s.GetFlag(ctx, "sticker_prompt_dismissed")
	require.NoError(t, err)
	assert.True(t, set)
}

func TestStore_LastSyncTime(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "passport.kv.json"))
	require.NoError(t, err)

	want := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveLastSyncTime(ctx, want))

	got, err := s.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}
