package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/models"
)

// Has retrieves the stamp for a location.
// Returns storage.ErrStampNotFound if the location has not been collected.
func (s *Storage) Has(ctx context.Context, locationID string) (*models.Stamp, error) {
	var stamp *models.Stamp

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStamps)
		if bucket == nil {
			return fmt.Errorf("stamps bucket not found")
		}

		data := bucket.Get([]byte(locationID))
		if data == nil {
			return storage.ErrStampNotFound
		}

		stamp = &models.Stamp{}
		if err := json.Unmarshal(data, stamp); err != nil {
			return fmt.Errorf("failed to unmarshal stamp: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return stamp, nil
}

// Put stores a stamp. First-write-wins: an existing entry for the same
// location is left untouched so the original collection time survives.
func (s *Storage) Put(ctx context.Context, stamp *models.Stamp) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStamps)
		if bucket == nil {
			return fmt.Errorf("stamps bucket not found")
		}

		if bucket.Get([]byte(stamp.LocationID)) != nil {
			// Already collected; never overwrite the original timestamp.
			return nil
		}

		data, err := json.Marshal(stamp)
		if err != nil {
			return fmt.Errorf("failed to marshal stamp: %w", err)
		}

		if err := bucket.Put([]byte(stamp.LocationID), data); err != nil {
			return fmt.Errorf("failed to save stamp: %w", err)
		}

		return nil
	})
}

// ListAll returns every collected stamp.
func (s *Storage) ListAll(ctx context.Context) ([]*models.Stamp, error) {
	var stamps []*models.Stamp

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStamps)
		if bucket == nil {
			return fmt.Errorf("stamps bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			stamp := &models.Stamp{}
			if err := json.Unmarshal(v, stamp); err != nil {
				return fmt.Errorf("failed to unmarshal stamp %s: %w", k, err)
			}
			stamps = append(stamps, stamp)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list stamps: %w", err)
	}

	return stamps, nil
}
