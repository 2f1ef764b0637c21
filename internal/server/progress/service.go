// Package progress implements the server side of contest progress sync:
// payload validation, content hashing, and the revision-checked write.
package progress

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/storage"
	"github.com/csabourin/stamppassport/internal/validation"
)

// MaxPayloadBytes caps the serialized payload size. Generous for the
// schema (a few hundred steps fit in a couple of kilobytes) while keeping
// a hostile client from using the endpoint as free blob storage.
const MaxPayloadBytes = 32768

// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrInvalidCID indicates the contest identifier is not a well-formed
// UUID v4.
var ErrInvalidCID = errors.New("invalid contest id")

// ValidationError reports which payload check failed, in the wire
// vocabulary the client sees.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

// Service orchestrates progress reads and writes.
type Service struct {
	storage storage.ProgressStorage
	logger  *slog.Logger
}

// NewService creates a progress service.
func NewService(storage storage.ProgressStorage, logger *slog.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Get retrieves the record for a contest identifier.
// Returns ErrInvalidCID for a malformed identifier and
// storage.ErrProgressNotFound when no record exists.
func (s *Service) Get(ctx context.Context, cid string) (*models.ProgressRecord, error) {
	if !validation.IsValidCID(cid) {
		return nil, ErrInvalidCID
	}

	return s.storage.GetProgress(ctx, cid)
}

// Save validates a payload and writes it under optimistic concurrency.
//
// Returns *ValidationError for a malformed payload, ErrPayloadTooLarge
// past the size cap, and *storage.ConflictError on a lost revision race.
func (s *Service) Save(ctx context.Context, cid string, payload json.RawMessage, clientRevision int64) (*models.ProgressRecord, error) {
	if !validation.IsValidCID(cid) {
		return nil, ErrInvalidCID
	}

	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	canonical, err := compact(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compact payload: %w", err)
	}

	// Size is checked after shape validation so a structurally broken
	// payload reports its real problem, not its length.
	if len(canonical) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	record, err := s.storage.SaveProgress(ctx, cid, canonical, hashPayload(canonical), clientRevision)
	if err != nil {
		return nil, err
	}

	s.logger.Info("progress saved", "revision", record.Revision)
	return record, nil
}

// ValidatePayload runs the ordered payload checks. The first failing
// check wins, so clients always see a stable, most-specific reason.
func ValidatePayload(payload json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &ValidationError{Reason: "missing_or_invalid_schema_version"}
	}

	schemaVersion, ok := asInt(doc["schemaVersion"])
	if !ok {
		return &ValidationError{Reason: "missing_or_invalid_schema_version"}
	}
	if schemaVersion != models.SchemaVersion {
		return &ValidationError{Reason: "unsupported_schema_version"}
	}

	contestVersion, ok := doc["contestVersion"].(string)
	if !ok || contestVersion == "" {
		return &ValidationError{Reason: "missing_or_invalid_contest_version"}
	}

	progress, ok := doc["progress"].(map[string]any)
	if !ok {
		return &ValidationError{Reason: "missing_or_invalid_progress"}
	}

	updatedAt, ok := doc["updatedAt"].(string)
	if !ok {
		return &ValidationError{Reason: "missing_or_invalid_updated_at"}
	}
	if _, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		return &ValidationError{Reason: "missing_or_invalid_updated_at"}
	}

	steps, ok := progress["stepsCompleted"].([]any)
	if !ok {
		return &ValidationError{Reason: "missing_or_invalid_steps_completed"}
	}
	for _, step := range steps {
		id, ok := step.(string)
		if !ok || id == "" {
			return &ValidationError{Reason: "missing_or_invalid_steps_completed"}
		}
	}

	score, ok := asInt(progress["score"])
	if !ok || score < 0 {
		return &ValidationError{Reason: "missing_or_invalid_score"}
	}

	return nil
}

// asInt extracts a non-fractional JSON number.
func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// compact strips insignificant whitespace so formatting differences
// never change the content hash.
func compact(payload json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// hashPayload returns the hex SHA-256 of the canonical payload bytes.
func hashPayload(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
