package locations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeSeed(t, `
locations:
  - short_code: museum
    title: City Museum
    tagline: Where it all began
    latitude: 45.4215
    longitude: -75.6972
  - short_code: harbor
    title: Old Harbor
    latitude: 45.43
    longitude: -75.7
`)

	locations, err := Load(path)
	require.NoError(t, err)
	require.Len(t, locations, 2)

	assert.Equal(t, "museum", locations[0].ShortCode)
	assert.Equal(t, "City Museum", locations[0].Title)
	assert.Equal(t, "Where it all began", locations[0].Tagline)
	assert.InDelta(t, 45.4215, locations[0].Latitude, 1e-9)

	// Tagline is optional; enabled defaults to true.
	assert.Empty(t, locations[1].Tagline)
	assert.True(t, locations[0].Enabled)
	assert.True(t, locations[1].Enabled)
}

func TestLoad_ExplicitlyDisabled(t *testing.T) {
	path := writeSeed(t, `
locations:
  - short_code: closed
    title: Closed For Season
    latitude: 1
    longitude: 1
    enabled: false
`)

	locations, err := Load(path)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.False(t, locations[0].Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "not yaml",
			content: "{{{",
			wantErr: "failed to parse",
		},
		{
			name: "missing short code",
			content: `
locations:
  - title: Nameless
    latitude: 1
    longitude: 1
`,
			wantErr: "short_code is required",
		},
		{
			name: "duplicate short code",
			content: `
locations:
  - short_code: museum
    title: One
    latitude: 1
    longitude: 1
  - short_code: museum
    title: Two
    latitude: 2
    longitude: 2
`,
			wantErr: "duplicate short_code",
		},
		{
			name: "missing title",
			content: `
locations:
  - short_code: museum
    latitude: 1
    longitude: 1
`,
			wantErr: "title is required",
		},
		{
			name: "latitude out of range",
			content: `
locations:
  - short_code: museum
    title: City Museum
    latitude: 91
    longitude: 1
`,
			wantErr: "latitude out of range",
		},
		{
			name: "longitude out of range",
			content: `
locations:
  - short_code: museum
    title: City Museum
    latitude: 1
    longitude: -181
`,
			wantErr: "longitude out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSeed(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
