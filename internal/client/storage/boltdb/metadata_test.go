package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

func TestMetadata_ContestID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	cid, err := s.GetContestID(ctx)
	require.NoError(t, err)
	assert.Empty(t, cid, "no contest id before first issuance")

	want := uuid.NewString()
	require.NoError(t, s.SaveContestID(ctx, want))

	cid, err = s.GetContestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, cid)
}

func TestMetadata_Revision(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	revision, err := s.GetRevision(ctx)
	require.NoError(t, err)
	assert.Zero(t, revision, "revision defaults to 0 before first sync")

	require.NoError(t, s.SaveRevision(ctx, 42))

	revision, err = s.GetRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), revision)
}

func TestMetadata_LastSyncTime(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	ts, err := s.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	want := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveLastSyncTime(ctx, want))

	ts, err = s.GetLastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.Equal(want))
}

func TestMetadata_Outbox(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetOutbox(ctx)
	assert.ErrorIs(t, err, storage.ErrOutboxEmpty)

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

	// Clearing an empty outbox is fine.
	require.NoError(t, s.ClearOutbox(ctx))
}

func TestMetadata_Flags(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	set, err := s.GetFlag(ctx, "draw_prompt_dismissed")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.SetFlag(ctx, "draw_prompt_dismissed"))

	set, err = s.GetFlag(ctx, "draw_prompt_dismissed")
	require.NoError(t, err)
	assert.True(t, set)

	// Other flags stay unset.
	set, err = s.GetFlag(ctx, "sticker_prompt_dismissed")
	require.NoError(t, err)
	assert.False(t, set)
}
