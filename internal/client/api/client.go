// Package api is the HTTP client for the contest progress sync endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
	"github.com/csabourin/stamppassport/pkg/api"
)

// Sync is a background concern, so requests use a short timeout: a hung
// call must never hold up the user's primary interaction.
const defaultTimeout = 5 * time.Second

// ErrProgressNotFound indicates the server holds no record for the CID.
var ErrProgressNotFound = errors.New("no progress record for contest id")

// ConflictError is a 409: the server's revision advanced past the one the
// client pushed with. It carries the server's current state so the caller
// can re-merge without an extra fetch.
type ConflictError struct {
	ServerPayload   *models.ProgressPayload
	ServerUpdatedAt string
	ServerRevision  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("push conflict: server is at revision %d", e.ServerRevision)
}

// RejectedError is a non-conflict 4xx: the server refused the payload for
// a reason that a retry with the same bytes cannot fix.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("push rejected: %s", e.Reason)
}

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI defines the sync transport used by the sync service.
type ClientAPI interface {
	// GetProgress fetches the server record for a CID.
	// Returns ErrProgressNotFound on 404.
	GetProgress(ctx context.Context, cid string) (*api.ProgressGetResponse, error)

	// PushProgress uploads a payload at the given expected revision.
	// Returns *ConflictError on 409, *RejectedError on other 4xx.
	PushProgress(ctx context.Context, cid string, payload *models.ProgressPayload, clientRevision int64) (*api.ProgressPostResponse, error)

	// SendBeacon fires a final best-effort push and returns immediately.
	// The response is never read; errors are logged at debug level only.
	SendBeacon(cid string, payload *models.ProgressPayload, clientRevision int64)
}

// Client talks to the contest progress endpoint over HTTP+JSON.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a sync API client. baseURL is the server root; the
// progress endpoint lives at <baseURL>/contest-progress.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// GetProgress fetches the server record for a CID.
func (c *Client) GetProgress(ctx context.Context, cid string) (*api.ProgressGetResponse, error) {
	endpoint := fmt.Sprintf("%s/contest-progress?cid=%s", c.baseURL, url.QueryEscape(cid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get progress request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProgressNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get progress failed with status %d: %s", resp.StatusCode, errorCode(body))
	}

	var result api.ProgressGetResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// PushProgress uploads a payload at the given expected revision.
func (c *Client) PushProgress(ctx context.Context, cid string, payload *models.ProgressPayload, clientRevision int64) (*api.ProgressPostResponse, error) {
	payloadJSON, err := payload.MarshalCanonical()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqBody, err := json.Marshal(api.ProgressPostRequest{
		CID:            cid,
		Payload:        payloadJSON,
		ClientRevision: &clientRevision,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := c.baseURL + "/contest-progress"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push progress request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var result api.ProgressPostResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, nil

	case resp.StatusCode == http.StatusConflict:
		return nil, conflictFromBody(body)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &RejectedError{Reason: errorCode(body)}

	default:
		return nil, fmt.Errorf("push progress failed with status %d: %s", resp.StatusCode, errorCode(body))
	}
}

// SendBeacon fires a detached final push, the teardown analogue of a
// browser beacon. No result is awaited, no retry is made.
func (c *Client) SendBeacon(cid string, payload *models.ProgressPayload, clientRevision int64) {
	snapshot := payload.Clone()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		payloadJSON, err := snapshot.MarshalCanonical()
		if err != nil {
			c.logger.Debug("beacon marshal failed", "error", err)
			return
		}

		reqBody, err := json.Marshal(api.ProgressPostRequest{
			CID:            cid,
			Payload:        payloadJSON,
			ClientRevision: &clientRevision,
		})
		if err != nil {
			c.logger.Debug("beacon marshal failed", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contest-progress", bytes.NewReader(reqBody))
		if err != nil {
			c.logger.Debug("beacon request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("beacon send failed", "error", err)
			return
		}
		// Fire and forget: drain and close, ignore the outcome.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
}

// conflictFromBody decodes a 409 envelope into a ConflictError.
func conflictFromBody(body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("failed to decode conflict response: %w", err)
	}

	serverPayload := &models.ProgressPayload{}
	if len(errResp.ServerPayload) > 0 {
		if err := json.Unmarshal(errResp.ServerPayload, serverPayload); err != nil {
			return fmt.Errorf("failed to decode conflict payload: %w", err)
		}
	}

	return &ConflictError{
		ServerRevision:  errResp.ServerRevision,
		ServerPayload:   serverPayload,
		ServerUpdatedAt: errResp.ServerUpdatedAt,
	}
}

// errorCode extracts the error field from an error envelope, falling back
// to the raw body.
func errorCode(body []byte) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}
