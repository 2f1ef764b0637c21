package api

// LocationInfo describes one stampable location as served to clients.
// Coordinates are the geofence anchor.
type LocationInfo struct {
	ShortCode string  `json:"shortCode"`
	Title     string  `json:"title"`
	Tagline   string  `json:"tagline"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationsResponse is the body of GET /api/locations.
type LocationsResponse struct {
	Success        bool           `json:"success"`
	EnableGeofence bool           `json:"enableGeofence"`
	GeofenceRadius float64        `json:"geofenceRadius"`
	Items          []LocationInfo `json:"items"`
}

// ResolveResponse is the body of GET /api/resolve?q=<shortCode>.
type ResolveResponse struct {
	Success bool         `json:"success"`
	Item    LocationInfo `json:"item"`
}

// CollectRequest is the body of POST /api/collect.
type CollectRequest struct {
	ShortCode string  `json:"shortCode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CollectResponse reports the geofence verdict for a check-in attempt.
// Distance and AllowedRadius are in metres.
type CollectResponse struct {
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	Distance      float64       `json:"distance"`
	AllowedRadius float64       `json:"allowedRadius"`
	Item          *LocationInfo `json:"item,omitempty"`
}
