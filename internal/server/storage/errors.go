package storage

import (
	"errors"
	"fmt"

	"github.com/csabourin/stamppassport/internal/models"
)

// Common storage errors
var (
	// ErrProgressNotFound indicates no progress record exists for the CID
	ErrProgressNotFound = errors.New("progress record not found")

	// ErrLocationNotFound indicates no location exists for the short code
	ErrLocationNotFound = errors.New("location not found")
)

// ConflictError is returned by SaveProgress when the caller's expected
// revision no longer matches the stored one. Record carries the current
// server state so the handler can return it without a second read.
type ConflictError struct {
	Record *models.ProgressRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("revision conflict: server is at revision %d", e.Record.Revision)
}
