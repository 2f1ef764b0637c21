// Package kvfile is the fallback client store: a flat key-value map
// persisted as a single JSON file. It mirrors the key layout of the
// primary BoltDB store so either tier can serve any read.
package kvfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

const (
	stampPrefix     = "stamp:"
	keyContestID    = "contest_id"
	keyRevision     = "last_revision"
	keyLastSyncTime = "last_sync_time"
	keyOutbox       = "outbox_payload"
	flagPrefix      = "flag:"
)

// Store is a file-backed key-value store. All methods are safe for
// concurrent use; every write rewrites the whole file, which is fine at
// the scale of one participant's passport.
type Store struct {
	entries map[string]json.RawMessage
	path    string
	mu      sync.RWMutex
}

// New opens (or creates) the store at path.
func New(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read kv file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("failed to parse kv file: %w", err)
		}
	}

	return s, nil
}

// Close is a no-op; the file is rewritten on every mutation.
func (s *Store) Close() error {
	return nil
}

// flush persists the map. Caller must hold the write lock.
func (s *Store) flush() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal kv entries: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write kv file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace kv file: %w", err)
	}

	return nil
}

func (s *Store) get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = data
	return s.flush()
}

// Has retrieves the stamp for a location.
func (s *Store) Has(ctx context.Context, locationID string) (*models.Stamp, error) {
	data, ok := s.get(stampPrefix + locationID)
	if !ok {
		return nil, storage.ErrStampNotFound
	}

	stamp := &models.Stamp{}
	if err := json.Unmarshal(data, stamp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stamp: %w", err)
	}

	return stamp, nil
}

// Put stores a stamp, first-write-wins.
func (s *Store) Put(ctx context.Context, stamp *models.Stamp) error {
	key := stampPrefix + stamp.LocationID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return nil
	}

	data, err := json.Marshal(stamp)
	if err != nil {
		return fmt.Errorf("failed to marshal stamp: %w", err)
	}

	s.entries[key] = data
	return s.flush()
}

// ListAll returns every collected stamp, ordered by location id.
func (s *Store) ListAll(ctx context.Context) ([]*models.Stamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.entries {
		if len(k) > len(stampPrefix) && k[:len(stampPrefix)] == stampPrefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	stamps := make([]*models.Stamp, 0, len(keys))
	for _, k := range keys {
		stamp := &models.Stamp{}
		if err := json.Unmarshal(s.entries[k], stamp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stamp %s: %w", k, err)
		}
		stamps = append(stamps, stamp)
	}

	return stamps, nil
}

// GetContestID returns the persisted contest identifier, or "".
func (s *Store) GetContestID(ctx context.Context) (string, error) {
	data, ok := s.get(keyContestID)
	if !ok {
		return "", nil
	}

	var cid string
	if err := json.Unmarshal(data, &cid); err != nil {
		return "", fmt.Errorf("failed to unmarshal contest id: %w", err)
	}
	return cid, nil
}

// SaveContestID persists the contest identifier.
func (s *Store) SaveContestID(ctx context.Context, cid string) error {
	return s.put(keyContestID, cid)
}

// GetRevision returns the last known server revision, or 0.
func (s *Store) GetRevision(ctx context.Context) (int64, error) {
	data, ok := s.get(keyRevision)
	if !ok {
		return 0, nil
	}

	revision, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse revision: %w", err)
	}
	return revision, nil
}

// SaveRevision persists the last known server revision.
func (s *Store) SaveRevision(ctx context.Context, revision int64) error {
	return s.put(keyRevision, revision)
}

// GetLastSyncTime returns the time of the last successful sync, or zero.
func (s *Store) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	data, ok := s.get(keyLastSyncTime)
	if !ok {
		return time.Time{}, nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal last sync time: %w", err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last sync time: %w", err)
	}
	return t, nil
}

// SaveLastSyncTime persists the time of the last successful sync.
func (s *Store) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	return s.put(keyLastSyncTime, t.UTC().Format(time.RFC3339))
}

// GetOutbox returns the pending payload, or storage.ErrOutboxEmpty.
func (s *Store) GetOutbox(ctx context.Context) (*models.ProgressPayload, error) {
	data, ok := s.get(keyOutbox)
	if !ok {
		return nil, storage.ErrOutboxEmpty
	}

	payload := &models.ProgressPayload{}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox payload: %w", err)
	}
	return payload, nil
}

// SaveOutbox parks a payload for the next sync opportunity.
func (s *Store) SaveOutbox(ctx context.Context, payload *models.ProgressPayload) error {
	return s.put(keyOutbox, payload)
}

// ClearOutbox empties the outbox slot.
func (s *Store) ClearOutbox(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[keyOutbox]; !ok {
		return nil
	}
	delete(s.entries, keyOutbox)
	return s.flush()
}

// GetFlag reports whether a one-time UI flag has been set.
func (s *Store) GetFlag(ctx context.Context, name string) (bool, error) {
	_, ok := s.get(flagPrefix + name)
	return ok, nil
}

// SetFlag sets a one-time UI flag.
func (s *Store) SetFlag(ctx context.Context, name string) error {
	return s.put(flagPrefix+name, true)
}

// DefaultPath returns a store path inside dir, creating dir if needed.
func DefaultPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create storage dir: %w", err)
	}
	return filepath.Join(dir, "passport.kv.json"), nil
}
