package storage

import (
	"context"

	"github.com/csabourin/stamppassport/internal/models"
)

// ProgressStorage defines interface for contest progress persistence
type ProgressStorage interface {
	// GetProgress retrieves the record for a contest identifier.
	// Returns ErrProgressNotFound if no record exists.
	GetProgress(ctx context.Context, contestID string) (*models.ProgressRecord, error)

	// SaveProgress writes a payload under optimistic concurrency control.
	//
	// No record yet: inserts at revision 1, ignoring expectedRevision.
	// expectedRevision differs from the stored one: returns
	// *ConflictError carrying the current record, even for identical
	// content.
	// Identical payloadHash at the stored revision: accepts without
	// bumping the revision.
	// Otherwise: overwrites and bumps the revision by one.
	//
	// Returns the record as stored after the call.
	SaveProgress(ctx context.Context, contestID string, payloadJSON []byte, payloadHash string, expectedRevision int64) (*models.ProgressRecord, error)
}

// LocationStorage defines interface for stamp location lookups
type LocationStorage interface {
	// ListLocations returns every enabled location in short-code order.
	ListLocations(ctx context.Context) ([]*models.Location, error)

	// GetLocation retrieves an enabled location by short code.
	// Returns ErrLocationNotFound if no enabled location exists.
	GetLocation(ctx context.Context, shortCode string) (*models.Location, error)

	// SeedLocations inserts or refreshes the given locations.
	SeedLocations(ctx context.Context, locations []*models.Location) error
}
