package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/storage"
)

// GetProgress retrieves the record for a contest identifier
// Returns ErrProgressNotFound if no record exists
func (s *Storage) GetProgress(ctx context.Context, contestID string) (*models.ProgressRecord, error) {
	query := `
		SELECT contest_id, payload_json, payload_hash, revision,
		       created_at, updated_at
		FROM contest_progress
		WHERE contest_id = ?
	`

	record := &models.ProgressRecord{}
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, contestID).Scan(
		&record.ContestID,
		&record.PayloadJSON,
		&record.PayloadHash,
		&record.Revision,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	record.CreatedAt = unixToTime(createdAt)
	record.UpdatedAt = unixToTime(updatedAt)

	return record, nil
}

// SaveProgress writes a payload under optimistic concurrency control.
//
// The revision check and the write are not a single statement, but the
// single-connection pool serializes writers, and the conditional UPDATE
// re-checks the revision in its WHERE clause anyway.
func (s *Storage) SaveProgress(ctx context.Context, contestID string, payloadJSON []byte, payloadHash string, expectedRevision int64) (*models.ProgressRecord, error) {
	existing, err := s.GetProgress(ctx, contestID)
	if err != nil && !errors.Is(err, storage.ErrProgressNotFound) {
		return nil, fmt.Errorf("failed to check existing progress: %w", err)
	}

	if existing == nil {
		return s.insertProgress(ctx, contestID, payloadJSON, payloadHash)
	}

	// The revision gate runs before the content comparison: a stale
	// writer is told to refetch even when it happens to carry the
	// current bytes.
	if existing.Revision != expectedRevision {
		return nil, &storage.ConflictError{Record: existing}
	}

	// Identical content at the current revision is accepted without
	// advancing it, so a client re-sending the same snapshot never
	// manufactures a new revision.
	if existing.PayloadHash == payloadHash {
		return existing, nil
	}

	now := time.Now().UTC()
	query := `
		UPDATE contest_progress
		SET payload_json = ?, payload_hash = ?, revision = revision + 1,
		    updated_at = ?
		WHERE contest_id = ? AND revision = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(payloadJSON),
		payloadHash,
		now.Unix(),
		contestID,
		expectedRevision,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Zero rows means another writer advanced the revision between the
	// read and the update. Refetch and report the winner's state.
	if rows == 0 {
		current, err := s.GetProgress(ctx, contestID)
		if err != nil {
			return nil, fmt.Errorf("failed to refetch after lost update: %w", err)
		}
		return nil, &storage.ConflictError{Record: current}
	}

	return &models.ProgressRecord{
		ContestID:   contestID,
		PayloadJSON: payloadJSON,
		PayloadHash: payloadHash,
		Revision:    expectedRevision + 1,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}, nil
}

// insertProgress creates the first record for a CID at revision 1.
// The caller's expected revision is irrelevant for a create.
func (s *Storage) insertProgress(ctx context.Context, contestID string, payloadJSON []byte, payloadHash string) (*models.ProgressRecord, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO contest_progress (
			contest_id, payload_json, payload_hash, revision,
			created_at, updated_at
		) VALUES (?, ?, ?, 1, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		contestID,
		string(payloadJSON),
		payloadHash,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		// Two creates racing: the loser hits the primary key and gets
		// the winner's record back as a conflict.
		if isUniqueViolation(err) {
			current, gerr := s.GetProgress(ctx, contestID)
			if gerr != nil {
				return nil, fmt.Errorf("failed to refetch after insert race: %w", gerr)
			}
			return nil, &storage.ConflictError{Record: current}
		}
		return nil, fmt.Errorf("failed to insert progress: %w", err)
	}

	return &models.ProgressRecord{
		ContestID:   contestID,
		PayloadJSON: payloadJSON,
		PayloadHash: payloadHash,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0).UTC()
}
