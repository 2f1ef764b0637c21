package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

const (
	keyContestID    = "contest_id"
	keyRevision     = "last_revision"
	keyLastSyncTime = "last_sync_time"
	keyOutbox       = "outbox_payload"
	flagPrefix      = "flag:"
)

// GetContestID returns the persisted contest identifier, or "" if none
// has been issued yet.
func (s *Storage) GetContestID(ctx context.Context) (string, error) {
	var cid string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		cid = string(bucket.Get([]byte(keyContestID)))
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to get contest id: %w", err)
	}

	return cid, nil
}

// SaveContestID persists the contest identifier.
func (s *Storage) SaveContestID(ctx context.Context, cid string) error {
	return s.putMeta(keyContestID, []byte(cid))
}

// GetRevision returns the last known server revision, or 0 before the
// first completed sync.
func (s *Storage) GetRevision(ctx context.Context) (int64, error) {
	var revision int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		data := bucket.Get([]byte(keyRevision))
		if data == nil {
			revision = 0
			return nil
		}

		revision = int64(binary.BigEndian.Uint64(data))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get revision: %w", err)
	}

	return revision, nil
}

// SaveRevision persists the last known server revision.
func (s *Storage) SaveRevision(ctx context.Context, revision int64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(revision))
	return s.putMeta(keyRevision, data)
}

// GetLastSyncTime returns the time of the last successful sync, or the
// zero time if none has happened yet.
func (s *Storage) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	var t time.Time

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		data := bucket.Get([]byte(keyLastSyncTime))
		if data == nil {
			return nil
		}

		unix := int64(binary.BigEndian.Uint64(data))
		t = time.Unix(unix, 0).UTC()
		return nil
	})

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return t, nil
}

// SaveLastSyncTime persists the time of the last successful sync.
func (s *Storage) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(t.Unix()))
	return s.putMeta(keyLastSyncTime, data)
}

// GetOutbox returns the payload parked by a failed sync attempt.
// Returns storage.ErrOutboxEmpty if nothing is pending.
func (s *Storage) GetOutbox(ctx context.Context) (*models.ProgressPayload, error) {
	var payload *models.ProgressPayload

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		data := bucket.Get([]byte(keyOutbox))
		if data == nil {
			return storage.ErrOutboxEmpty
		}

		payload = &models.ProgressPayload{}
		if err := json.Unmarshal(data, payload); err != nil {
			return fmt.Errorf("failed to unmarshal outbox payload: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return payload, nil
}

// SaveOutbox parks a payload; a newer snapshot replaces any older one.
func (s *Storage) SaveOutbox(ctx context.Context, payload *models.ProgressPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	return s.putMeta(keyOutbox, data)
}

// ClearOutbox empties the outbox slot.
func (s *Storage) ClearOutbox(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		return bucket.Delete([]byte(keyOutbox))
	})
}

// GetFlag reports whether a one-time UI flag has been set.
func (s *Storage) GetFlag(ctx context.Context, name string) (bool, error) {
	var set bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		set = bucket.Get([]byte(flagPrefix+name)) != nil
		return nil
	})

	if err != nil {
		return false, fmt.Errorf("failed to get flag %s: %w", name, err)
	}

	return set, nil
}

// SetFlag sets a one-time UI flag.
func (s *Storage) SetFlag(ctx context.Context, name string) error {
	return s.putMeta(flagPrefix+name, []byte{1})
}

// putMeta writes a single key into the meta bucket.
func (s *Storage) putMeta(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if err := bucket.Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}

		return nil
	})
}
