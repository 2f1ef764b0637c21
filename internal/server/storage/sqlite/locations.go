package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/storage"
)

// ListLocations returns every enabled location in short-code order
func (s *Storage) ListLocations(ctx context.Context) ([]*models.Location, error) {
	query := `
		SELECT short_code, title, tagline, latitude, longitude, enabled
		FROM stamp_locations
		WHERE enabled = 1
		ORDER BY short_code ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var locations []*models.Location
	for rows.Next() {
		loc, err := scanLocation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return locations, nil
}

// GetLocation retrieves an enabled location by short code
// Returns ErrLocationNotFound if no enabled location exists
func (s *Storage) GetLocation(ctx context.Context, shortCode string) (*models.Location, error) {
	query := `
		SELECT short_code, title, tagline, latitude, longitude, enabled
		FROM stamp_locations
		WHERE short_code = ? AND enabled = 1
	`

	loc, err := scanLocation(s.db.QueryRowContext(ctx, query, shortCode).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	return loc, nil
}

// SeedLocations inserts or refreshes the given locations inside one
// transaction. Existing rows are overwritten; rows absent from the seed
// are left alone.
func (s *Storage) SeedLocations(ctx context.Context, locations []*models.Location) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO stamp_locations (short_code, title, tagline, latitude, longitude, enabled)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(short_code) DO UPDATE SET
			title = excluded.title,
			tagline = excluded.tagline,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			enabled = excluded.enabled
	`

	for _, loc := range locations {
		if _, err := tx.ExecContext(ctx, query,
			loc.ShortCode, loc.Title, loc.Tagline, loc.Latitude, loc.Longitude, boolToInt(loc.Enabled),
		); err != nil {
			return fmt.Errorf("failed to seed location %s: %w", loc.ShortCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	return nil
}

// scanLocation reads one location row via the given Scan function.
func scanLocation(scan func(dest ...any) error) (*models.Location, error) {
	loc := &models.Location{}
	var enabled int

	if err := scan(&loc.ShortCode, &loc.Title, &loc.Tagline, &loc.Latitude, &loc.Longitude, &enabled); err != nil {
		return nil, err
	}

	loc.Enabled = enabled != 0
	return loc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
