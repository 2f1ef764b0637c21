package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/csabourin/stamppassport/internal/geo"
	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/storage"
	"github.com/csabourin/stamppassport/pkg/api"
)

//go:generate moq -out location_storage_mock.go . LocationReader

// LocationReader defines what the handler needs from location storage.
type LocationReader interface {
	ListLocations(ctx context.Context) ([]*models.Location, error)
	GetLocation(ctx context.Context, shortCode string) (*models.Location, error)
}

// GeofenceConfig controls the proximity check on check-in attempts.
type GeofenceConfig struct {
	Enabled bool
	Radius  float64 // metres
}

// CollectionHandler serves the location directory and check-in endpoints.
type CollectionHandler struct {
	logger    *slog.Logger
	locations LocationReader
	geofence  GeofenceConfig
}

// NewCollectionHandler creates a collection handler.
func NewCollectionHandler(logger *slog.Logger, locations LocationReader, geofence GeofenceConfig) *CollectionHandler {
	return &CollectionHandler{
		logger:    logger,
		locations: locations,
		geofence:  geofence,
	}
}

// ListLocations handles GET /api/locations.
func (h *CollectionHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locations.ListLocations(r.Context())
	if err != nil {
		h.logger.Error("failed to list locations", "error", err)
		writeCollectionError(w, h.logger, http.StatusInternalServerError, "internal_error")
		return
	}

	items := make([]api.LocationInfo, 0, len(locations))
	for _, loc := range locations {
		items = append(items, locationInfo(loc))
	}

	writeJSON(w, h.logger, http.StatusOK, api.LocationsResponse{
		Success:        true,
		EnableGeofence: h.geofence.Enabled,
		GeofenceRadius: h.geofence.Radius,
		Items:          items,
	})
}

// Resolve handles GET /api/resolve?q=<shortCode>.
func (h *CollectionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	shortCode := r.URL.Query().Get("q")
	if shortCode == "" {
		writeCollectionError(w, h.logger, http.StatusBadRequest, "missing_query")
		return
	}

	loc, err := h.locations.GetLocation(r.Context(), shortCode)
	switch {
	case errors.Is(err, storage.ErrLocationNotFound):
		writeCollectionError(w, h.logger, http.StatusNotFound, "unknown_location")
		return
	case err != nil:
		h.logger.Error("failed to resolve location", "error", err)
		writeCollectionError(w, h.logger, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ResolveResponse{
		Success: true,
		Item:    locationInfo(loc),
	})
}

// Collect handles POST /api/collect: a check-in attempt at a location.
// With the geofence enabled, the reported position must be within the
// allowed radius of the location's anchor.
func (h *CollectionHandler) Collect(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeCollectionError(w, h.logger, http.StatusUnsupportedMediaType, api.ErrContentType)
		return
	}

	var req api.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCollectionError(w, h.logger, http.StatusBadRequest, api.ErrInvalidJSON)
		return
	}

	if req.ShortCode == "" {
		writeCollectionError(w, h.logger, http.StatusBadRequest, "missing_short_code")
		return
	}

	loc, err := h.locations.GetLocation(r.Context(), req.ShortCode)
	switch {
	case errors.Is(err, storage.ErrLocationNotFound):
		writeCollectionError(w, h.logger, http.StatusNotFound, "unknown_location")
		return
	case err != nil:
		h.logger.Error("failed to get location", "error", err)
		writeCollectionError(w, h.logger, http.StatusInternalServerError, "internal_error")
		return
	}

	info := locationInfo(loc)

	if !h.geofence.Enabled {
		writeJSON(w, h.logger, http.StatusOK, api.CollectResponse{
			Success:       true,
			AllowedRadius: h.geofence.Radius,
			Item:          &info,
		})
		return
	}

	within, distance := geo.Check(req.Latitude, req.Longitude, loc.Latitude, loc.Longitude, h.geofence.Radius)
	if !within {
		// 200 on purpose: the request was fine, the verdict is "too far",
		// and the client needs the distance to show it.
		writeJSON(w, h.logger, http.StatusOK, api.CollectResponse{
			Success:       false,
			Error:         "too_far",
			Distance:      distance,
			AllowedRadius: h.geofence.Radius,
		})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.CollectResponse{
		Success:       true,
		Distance:      distance,
		AllowedRadius: h.geofence.Radius,
		Item:          &info,
	})
}

func locationInfo(loc *models.Location) api.LocationInfo {
	return api.LocationInfo{
		ShortCode: loc.ShortCode,
		Title:     loc.Title,
		Tagline:   loc.Tagline,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
}

// writeCollectionError writes the collection endpoints' error envelope.
func writeCollectionError(w http.ResponseWriter, logger *slog.Logger, status int, code string) {
	writeJSON(w, logger, status, api.CollectResponse{Success: false, Error: code})
}
