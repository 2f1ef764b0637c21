package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/internal/server/progress"
	"github.com/csabourin/stamppassport/internal/server/storage"
	"github.com/csabourin/stamppassport/pkg/api"
)

//go:generate moq -out progress_service_mock.go . ProgressService

// ProgressService defines what the handler needs from the progress layer.
type ProgressService interface {
	Get(ctx context.Context, cid string) (*models.ProgressRecord, error)
	Save(ctx context.Context, cid string, payload json.RawMessage, clientRevision int64) (*models.ProgressRecord, error)
}

// ProgressHandler serves GET and POST /contest-progress.
type ProgressHandler struct {
	logger  *slog.Logger
	service ProgressService
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(logger *slog.Logger, service ProgressService) *ProgressHandler {
	return &ProgressHandler{
		logger:  logger,
		service: service,
	}
}

// GetProgress handles GET /contest-progress?cid=<uuid>.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("cid")
	if cid == "" {
		writeError(w, h.logger, http.StatusBadRequest, api.ErrMissingCID)
		return
	}

	record, err := h.service.Get(r.Context(), cid)
	switch {
	case errors.Is(err, progress.ErrInvalidCID):
		writeError(w, h.logger, http.StatusBadRequest, api.ErrInvalidCID)
		return
	case errors.Is(err, storage.ErrProgressNotFound):
		writeError(w, h.logger, http.StatusNotFound, api.ErrNotFound)
		return
	case err != nil:
		h.logger.Error("failed to get progress", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ProgressGetResponse{
		OK:              true,
		CID:             record.ContestID,
		Revision:        record.Revision,
		Payload:         record.PayloadJSON,
		ServerUpdatedAt: record.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// PostProgress handles POST /contest-progress.
func (h *ProgressHandler) PostProgress(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeError(w, h.logger, http.StatusUnsupportedMediaType, api.ErrContentType)
		return
	}

	var req api.ProgressPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, api.ErrInvalidJSON)
		return
	}

	if req.CID == "" {
		writeError(w, h.logger, http.StatusBadRequest, api.ErrMissingCID)
		return
	}
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		writeError(w, h.logger, http.StatusBadRequest, api.ErrMissingPayload)
		return
	}
	if req.ClientRevision == nil {
		writeError(w, h.logger, http.StatusBadRequest, api.ErrMissingClientRevision)
		return
	}

	record, err := h.service.Save(r.Context(), req.CID, req.Payload, *req.ClientRevision)
	if err != nil {
		h.writeSaveError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ProgressPostResponse{
		OK:              true,
		CID:             record.ContestID,
		Revision:        record.Revision,
		ServerUpdatedAt: record.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// writeSaveError maps a Save failure onto the wire.
func (h *ProgressHandler) writeSaveError(w http.ResponseWriter, err error) {
	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, h.logger, http.StatusConflict, api.ErrorResponse{
			OK:              false,
			Error:           api.ErrConflict,
			ServerRevision:  conflict.Record.Revision,
			ServerPayload:   conflict.Record.PayloadJSON,
			ServerUpdatedAt: conflict.Record.UpdatedAt.UTC().Format(time.RFC3339),
		})
		return
	}

	var verr *progress.ValidationError
	if errors.As(err, &verr) {
		writeError(w, h.logger, http.StatusBadRequest, verr.Reason)
		return
	}

	switch {
	case errors.Is(err, progress.ErrInvalidCID):
		writeError(w, h.logger, http.StatusBadRequest, api.ErrInvalidCID)
	case errors.Is(err, progress.ErrPayloadTooLarge):
		writeError(w, h.logger, http.StatusRequestEntityTooLarge, api.ErrPayloadTooLarge)
	default:
		h.logger.Error("failed to save progress", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error")
	}
}

// isJSONRequest reports whether the request declares a JSON body.
func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code string) {
	writeJSON(w, logger, status, api.ErrorResponse{OK: false, Error: code})
}
