package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/pkg/api"
)

const testCID = "550e8400-e29b-41d4-a716-446655440000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPayload() *models.ProgressPayload {
	return &models.ProgressPayload{
		SchemaVersion:  models.SchemaVersion,
		ContestVersion: "2026",
		UpdatedAt:      "2026-08-10T00:00:00Z",
		Progress: models.Progress{
			StepsCompleted: []string{"loc1"},
			Score:          1,
			Custom: models.CustomData{
				StampTimestamps: map[string]string{"loc1": "2026-08-01T09:00:00Z"},
			},
		},
	}
}

func TestGetProgress(t *testing.T) {
	payloadJSON, err := testPayload().MarshalCanonical()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/contest-progress", r.URL.Path)
		assert.Equal(t, testCID, r.URL.Query().Get("cid"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ProgressGetResponse{
			OK:              true,
			CID:             testCID,
			Revision:        3,
			Payload:         payloadJSON,
			ServerUpdatedAt: "2026-08-10T00:00:00Z",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	resp, err := client.GetProgress(context.Background(), testCID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.Revision)
	assert.Equal(t, testCID, resp.CID)

	var decoded models.ProgressPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &decoded))
	assert.Equal(t, []string{"loc1"}, decoded.Progress.StepsCompleted)
}

func TestGetProgress_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.ErrNotFound})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err := client.GetProgress(context.Background(), testCID)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestGetProgress_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err := client.GetProgress(context.Background(), testCID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProgressNotFound)
}

func TestPushProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.ProgressPostRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testCID, req.CID)
		require.NotNil(t, req.ClientRevision)
		assert.Equal(t, int64(2), *req.ClientRevision)

		var decoded models.ProgressPayload
		require.NoError(t, json.Unmarshal(req.Payload, &decoded))
		assert.Equal(t, []string{"loc1"}, decoded.Progress.StepsCompleted)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ProgressPostResponse{
			OK:       true,
			CID:      testCID,
			Revision: 3,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	resp, err := client.PushProgress(context.Background(), testCID, testPayload(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Revision)
}

func TestPushProgress_ZeroRevisionSerialized(t *testing.T) {
	// clientRevision 0 (the create case) must appear in the request body,
	// not be dropped as an empty field.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Contains(t, raw, "clientRevision")
		assert.Equal(t, "0", string(raw["clientRevision"]))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ProgressPostResponse{OK: true, CID: testCID, Revision: 1})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err := client.PushProgress(context.Background(), testCID, testPayload(), 0)
	require.NoError(t, err)
}

func TestPushProgress_Conflict(t *testing.T) {
	serverPayloadJSON, err := testPayload().MarshalCanonical()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:           api.ErrConflict,
			ServerRevision:  7,
			ServerPayload:   serverPayloadJSON,
			ServerUpdatedAt: "2026-08-10T12:00:00Z",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err = client.PushProgress(context.Background(), testCID, testPayload(), 2)
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(7), conflict.ServerRevision)
	assert.Equal(t, "2026-08-10T12:00:00Z", conflict.ServerUpdatedAt)
	require.NotNil(t, conflict.ServerPayload)
	assert.Equal(t, []string{"loc1"}, conflict.ServerPayload.Progress.StepsCompleted)
}

func TestPushProgress_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{name: "payload too large", status: http.StatusRequestEntityTooLarge, code: api.ErrPayloadTooLarge},
		{name: "invalid payload", status: http.StatusBadRequest, code: "missing_or_invalid_steps_completed"},
		{name: "wrong content type", status: http.StatusUnsupportedMediaType, code: api.ErrContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: tt.code})
			}))
			defer srv.Close()

			client := NewClient(srv.URL, testLogger())

			_, err := client.PushProgress(context.Background(), testCID, testPayload(), 1)
			require.Error(t, err)

			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.code, rejected.Reason)
		})
	}
}

func TestSendBeacon(t *testing.T) {
	var mu sync.Mutex
	var got *api.ProgressPostRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.ProgressPostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			mu.Lock()
			got = &req
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ProgressPostResponse{OK: true, CID: testCID, Revision: 4})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	client.SendBeacon(testCID, testPayload(), 3)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, testCID, got.CID)
	require.NotNil(t, got.ClientRevision)
	assert.Equal(t, int64(3), *got.ClientRevision)
}
