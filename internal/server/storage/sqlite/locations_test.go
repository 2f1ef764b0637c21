package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/storage"
)

func seedLocations() []*models.Location {
	return []*models.Location{
		{ShortCode: "museum", Title: "City Museum", Tagline: "Where it all began", Latitude: 45.4215, Longitude: -75.6972, Enabled: true},
		{ShortCode: "harbor", Title: "Old Harbor", Tagline: "Salt and sails", Latitude: 45.4300, Longitude: -75.7000, Enabled: true},
	}
}

func TestLocationStorage_SeedAndList(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.SeedLocations(ctx, seedLocations()))

	locations, err := s.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 2)

	// Short-code order.
	assert.Equal(t, "harbor", locations[0].ShortCode)
	assert.Equal(t, "museum", locations[1].ShortCode)
}

func TestLocationStorage_GetLocation(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.SeedLocations(ctx, seedLocations()))

	loc, err := s.GetLocation(ctx, "museum")
	require.NoError(t, err)
	assert.Equal(t, "City Museum", loc.Title)
	assert.InDelta(t, 45.4215, loc.Latitude, 1e-9)

	_, err = s.GetLocation(ctx, "nowhere")
	assert.ErrorIs(t, err, storage.ErrLocationNotFound)
}

func TestLocationStorage_SeedRefreshesExisting(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.SeedLocations(ctx, seedLocations()))

	updated := []*models.Location{
		{ShortCode: "museum", Title: "City Museum (renovated)", Tagline: "Back and better", Latitude: 45.4216, Longitude: -75.6973, Enabled: true},
	}
	require.NoError(t, s.SeedLocations(ctx, updated))

	loc, err := s.GetLocation(ctx, "museum")
	require.NoError(t, err)
	assert.Equal(t, "City Museum (renovated)", loc.Title)

	// Rows absent from the refresh survive.
	_, err = s.GetLocation(ctx, "harbor")
	assert.NoError(t, err)
}

func TestLocationStorage_DisabledHidden(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	seed := seedLocations()
	seed = append(seed, &models.Location{
		ShortCode: "closed", Title: "Closed For Season", Latitude: 1, Longitude: 1, Enabled: false,
	})
	require.NoError(t, s.SeedLocations(ctx, seed))

	locations, err := s.ListLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locations, 2)

	_, err = s.GetLocation(ctx, "closed")
	assert.ErrorIs(t, err, storage.ErrLocationNotFound)

	// Re-enabling via a seed refresh makes it visible again.
	require.NoError(t, s.SeedLocations(ctx, []*models.Location{
		{ShortCode: "closed", Title: "Closed For Season", Latitude: 1, Longitude: 1, Enabled: true},
	}))
	_, err = s.GetLocation(ctx, "closed")
	assert.NoError(t, err)
}
