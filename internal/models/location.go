package models

// Location is one stampable place in the contest. Short codes are the
// public identifiers printed on signage and embedded in QR links.
// Disabled locations stay in storage but are invisible to clients.
type Location struct {
	ShortCode string  `json:"shortCode"`
	Title     string  `json:"title"`
	Tagline   string  `json:"tagline"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Enabled   bool    `json:"enabled"`
}
