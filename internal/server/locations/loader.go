// Package locations loads the stamp location seed file.
package locations

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/csabourin/stamppassport/internal/models"
)

// seedFile is the YAML layout of a locations seed:
//
//	locations:
//	  - short_code: museum
//	    title: City Museum
//	    tagline: Where it all began
//	    latitude: 45.4215
//	    longitude: -75.6972
//	    enabled: true
type seedFile struct {
	Locations []seedLocation `yaml:"locations"`
}

// seedLocation carries Enabled as a pointer so an omitted field defaults
// to enabled rather than to false.
type seedLocation struct {
	ShortCode string  `yaml:"short_code"`
	Title     string  `yaml:"title"`
	Tagline   string  `yaml:"tagline"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Enabled   *bool   `yaml:"enabled"`
}

// Load reads and validates a locations seed file.
func Load(path string) ([]*models.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse locations file: %w", err)
	}

	locations := make([]*models.Location, 0, len(seed.Locations))
	seen := make(map[string]bool, len(seed.Locations))
	for i, loc := range seed.Locations {
		if loc.ShortCode == "" {
			return nil, fmt.Errorf("location %d: short_code is required", i)
		}
		if seen[loc.ShortCode] {
			return nil, fmt.Errorf("location %d: duplicate short_code %q", i, loc.ShortCode)
		}
		seen[loc.ShortCode] = true

		if loc.Title == "" {
			return nil, fmt.Errorf("location %q: title is required", loc.ShortCode)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return nil, fmt.Errorf("location %q: latitude out of range", loc.ShortCode)
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location %q: longitude out of range", loc.ShortCode)
		}

		enabled := true
		if loc.Enabled != nil {
			enabled = *loc.Enabled
		}

		locations = append(locations, &models.Location{
			ShortCode: loc.ShortCode,
			Title:     loc.Title,
			Tagline:   loc.Tagline,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Enabled:   enabled,
		})
	}

	return locations, nil
}
