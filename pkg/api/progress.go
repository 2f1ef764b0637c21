package api

import "encoding/json"

// Error codes returned by the contest progress endpoint.
const (
	ErrMissingCID            = "missing_cid"
	ErrInvalidCID            = "invalid_cid"
	ErrNotFound              = "not_found"
	ErrInvalidJSON           = "invalid_json"
	ErrMissingPayload        = "missing_payload"
	ErrMissingClientRevision = "missing_client_revision"
	ErrConflict              = "conflict"
	ErrPayloadTooLarge       = "payload_too_large"
	ErrContentType           = "content_type_must_be_json"
)

// ProgressGetResponse is the body of a successful
// GET /contest-progress?cid=<uuid> request.
type ProgressGetResponse struct {
	OK              bool            `json:"ok"`
	CID             string          `json:"cid"`
	Revision        int64           `json:"revision"`
	Payload         json.RawMessage `json:"payload"`
	ServerUpdatedAt string          `json:"serverUpdatedAt"`
}

// ProgressPostRequest is the body of POST /contest-progress.
// ClientRevision is a pointer so a missing field can be told apart
// from an explicit zero (zero means "create").
type ProgressPostRequest struct {
	CID            string          `json:"cid"`
	Payload        json.RawMessage `json:"payload"`
	ClientRevision *int64          `json:"clientRevision"`
}

// ProgressPostResponse is the body of an accepted push.
type ProgressPostResponse struct {
	OK              bool   `json:"ok"`
	CID             string `json:"cid"`
	Revision        int64  `json:"revision"`
	ServerUpdatedAt string `json:"serverUpdatedAt"`
}

// ErrorResponse is the envelope for every non-2xx answer. The server
// state fields are only populated on a 409 conflict so the client can
// re-merge without an extra fetch.
type ErrorResponse struct {
	OK              bool            `json:"ok"`
	Error           string          `json:"error"`
	ServerRevision  int64           `json:"serverRevision,omitempty"`
	ServerPayload   json.RawMessage `json:"serverPayload,omitempty"`
	ServerUpdatedAt string          `json:"serverUpdatedAt,omitempty"`
}
