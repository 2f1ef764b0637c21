package storage

import "errors"

// Common client storage errors
var (
	// ErrStampNotFound indicates the location has not been collected yet
	ErrStampNotFound = errors.New("stamp not found")

	// ErrOutboxEmpty indicates no payload is waiting to be pushed
	ErrOutboxEmpty = errors.New("outbox is empty")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
