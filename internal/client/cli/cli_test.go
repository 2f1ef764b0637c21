package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csabourin/stamppassport/internal/client/payload"
	"github.com/csabourin/stamppassport/internal/client/storage/kvfile"
	"github.com/csabourin/stamppassport/internal/client/sync"
	"github.com/csabourin/stamppassport/internal/models"
)

const testCID = "550e8400-e29b-41d4-a716-446655440000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *kvfile.Store {
	t.Helper()
	s, err := kvfile.New(filepath.Join(t.TempDir(), "passport.kv.json"))
	require.NoError(t, err)
	return s
}

// offlineService builds a sync service with no endpoint configured, so
// every cycle is a no-op.
func offlineService(store *kvfile.Store) sync.Service {
	return sync.NewService(nil, store, store, payload.NewBuilder(store, "2026"), testCID, testLogger())
}

func TestRunCollect(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	var out bytes.Buffer

	err := RunCollect(ctx, []string{"museum"}, store, offlineService(store), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Collected museum")

	stamp, err := store.Has(ctx, "museum")
	require.NoError(t, err)
	assert.False(t, stamp.CollectedAt.IsZero())
}

func TestRunCollect_AlreadyCollected(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	original := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &models.Stamp{LocationID: "museum", CollectedAt: original}))

	var out bytes.Buffer
	err := RunCollect(ctx, []string{"museum"}, store, offlineService(store), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Already collected museum")

	// The original timestamp is untouched.
	stamp, err := store.Has(ctx, "museum")
	require.NoError(t, err)
	assert.True(t, stamp.CollectedAt.Equal(original))
}

func TestRunCollect_MissingArg(t *testing.T) {
	store := testStore(t)
	err := RunCollect(context.Background(), nil, store, offlineService(store), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunStamps(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	var out bytes.Buffer
	require.NoError(t, RunStamps(ctx, store, &out))
	assert.Contains(t, out.String(), "No stamps collected yet")

	require.NoError(t, store.Put(ctx, &models.Stamp{LocationID: "museum", CollectedAt: time.Now()}))
	require.NoError(t, store.Put(ctx, &models.Stamp{LocationID: "harbor", CollectedAt: time.Now()}))

	out.Reset()
	require.NoError(t, RunStamps(ctx, store, &out))
	assert.Contains(t, out.String(), "museum")
	assert.Contains(t, out.String(), "harbor")
	assert.Contains(t, out.String(), "Total: 2")
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	var out bytes.Buffer
	require.NoError(t, RunStatus(ctx, store, testCID, &out))
	assert.Contains(t, out.String(), testCID)
	assert.Contains(t, out.String(), "Revision:   0")
	assert.Contains(t, out.String(), "Last sync:  never")
	assert.NotContains(t, out.String(), "Outbox")

	require.NoError(t, store.SaveRevision(ctx, 4))
	require.NoError(t, store.SaveLastSyncTime(ctx, time.Now()))
	require.NoError(t, store.SaveOutbox(ctx, &models.ProgressPayload{SchemaVersion: models.SchemaVersion}))

	out.Reset()
	require.NoError(t, RunStatus(ctx, store, testCID, &out))
	assert.Contains(t, out.String(), "Revision:   4")
	assert.Contains(t, out.String(), "pending payload")
	assert.NotContains(t, out.String(), "never")
}

func TestRunSync_Offline(t *testing.T) {
	store := testStore(t)

	var out bytes.Buffer
	require.NoError(t, RunSync(context.Background(), offlineService(store), &out))
	assert.Contains(t, out.String(), "Sync completed")
}
