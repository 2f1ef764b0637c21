package storage

import (
	"context"

	"github.com/csabourin/stamppassport/internal/models"
)

//go:generate moq -out stampstorage_mock.go . StampStorage

// StampStorage defines the interface for persisting collected stamps on
// the client device.
type StampStorage interface {
	// Has retrieves the stamp for a location.
	// Returns ErrStampNotFound if the location has not been collected.
	Has(ctx context.Context, locationID string) (*models.Stamp, error)

	// Put stores a stamp. Idempotent and first-write-wins: if a stamp
	// already exists for the location, the original timestamp is kept
	// and the call succeeds without writing.
	Put(ctx context.Context, stamp *models.Stamp) error

	// ListAll returns every collected stamp.
	ListAll(ctx context.Context) ([]*models.Stamp, error)
}
