// Package sync orchestrates the fetch-merge-push reconciliation cycle
// between the local progress store and the server's versioned record.
//
// Sync is a background concern: network failures park the payload in the
// outbox and surface to nobody; the next trigger (stamp collection,
// reconnect, page load) picks it back up.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	httpClient "github.com/csabourin/stamppassport/internal/client/api"
	"github.com/csabourin/stamppassport/internal/client/payload"
	"github.com/csabourin/stamppassport/internal/client/storage"
	"github.com/csabourin/stamppassport/internal/merge"
	"github.com/csabourin/stamppassport/internal/models"
)

// defaultDebounce coalesces rapid stamp collections into one sync.
const defaultDebounce = 3 * time.Second

//go:generate moq -out service_mock.go . Service

// Service defines the sync client interface.
type Service interface {
	// SyncProgress runs one full reconciliation cycle. Safe to call
	// repeatedly; concurrent calls are serialized internally so only
	// one cycle runs at a time per device.
	SyncProgress(ctx context.Context) error

	// NotifyStampCollected schedules a debounced sync after a new stamp.
	NotifyStampCollected()

	// NotifyOnline runs a sync immediately, used on the offline-to-online
	// transition to flush the outbox.
	NotifyOnline(ctx context.Context)

	// Teardown fires the best-effort final beacon. No result is awaited.
	Teardown(ctx context.Context)

	// Stop cancels any pending debounced sync.
	Stop()
}

type service struct {
	apiClient httpClient.ClientAPI
	stamps    storage.StampStorage
	meta      storage.MetadataStorage
	builder   *payload.Builder
	online    func() bool
	logger    *slog.Logger
	timer     *time.Timer
	cid       string
	debounce  time.Duration
	mu        gosync.Mutex // one sync cycle at a time
	timerMu   gosync.Mutex
}

// Option configures the sync service.
type Option func(*service)

// WithOnlineSignal sets the network reachability probe.
func WithOnlineSignal(online func() bool) Option {
	return func(s *service) { s.online = online }
}

// WithDebounce sets the delay used by NotifyStampCollected.
func WithDebounce(d time.Duration) Option {
	return func(s *service) { s.debounce = d }
}

// NewService creates a sync service for one device session.
// apiClient may be nil when no sync endpoint is configured; every cycle
// is then a no-op.
func NewService(
	apiClient httpClient.ClientAPI,
	stamps storage.StampStorage,
	meta storage.MetadataStorage,
	builder *payload.Builder,
	cid string,
	logger *slog.Logger,
	opts ...Option,
) Service {
	s := &service{
		apiClient: apiClient,
		stamps:    stamps,
		meta:      meta,
		builder:   builder,
		cid:       cid,
		logger:    logger,
		online:    func() bool { return true },
		debounce:  defaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncProgress runs one reconciliation cycle:
//
//  1. Check preconditions (endpoint, CID, reachability); failing them is
//     "nothing to do yet", not an error.
//  2. Flush the outbox at the last known revision.
//  3. Build the local snapshot.
//  4. Fetch the remote record; create it if absent and local has steps.
//  5. Merge and push; on conflict re-merge against the server's returned
//     state and push once more. A second conflict ends the cycle silently.
//
// Network failures park the local snapshot in the outbox and return nil.
func (s *service) SyncProgress(ctx context.Context) error {
	if s.apiClient == nil || s.cid == "" || !s.online() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushOutbox(ctx)

	local, err := s.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build local payload: %w", err)
	}

	remote, err := s.apiClient.GetProgress(ctx, s.cid)
	switch {
	case errors.Is(err, httpClient.ErrProgressNotFound):
		return s.createRemote(ctx, local)
	case err != nil:
		s.park(ctx, local, err)
		return nil
	}

	remotePayload := &models.ProgressPayload{}
	if err := json.Unmarshal(remote.Payload, remotePayload); err != nil {
		return fmt.Errorf("failed to decode remote payload: %w", err)
	}

	result := merge.Merge(local, remotePayload)

	if !result.Changed {
		// Remote already covers everything local; adopt it.
		if err := s.applyPayload(ctx, remotePayload); err != nil {
			return err
		}
		return s.recordSync(ctx, remote.Revision)
	}

	resp, err := s.apiClient.PushProgress(ctx, s.cid, result.Payload, remote.Revision)
	if err != nil {
		return s.handlePushFailure(ctx, result.Payload, err)
	}

	if err := s.applyPayload(ctx, result.Payload); err != nil {
		return err
	}
	return s.recordSync(ctx, resp.Revision)
}

// createRemote handles step 4's not-found branch: push the local payload
// as a create at revision 0. An empty local store means nothing to do.
func (s *service) createRemote(ctx context.Context, local *models.ProgressPayload) error {
	if len(local.Progress.StepsCompleted) == 0 {
		return nil
	}

	resp, err := s.apiClient.PushProgress(ctx, s.cid, local, 0)
	if err != nil {
		return s.handlePushFailure(ctx, local, err)
	}

	s.logger.Info("created server progress record", "revision", resp.Revision)
	return s.recordSync(ctx, resp.Revision)
}

// handlePushFailure dispatches on the kind of push error: conflicts get
// one re-merge-and-retry, rejections are dropped (retrying identical
// bytes fails identically), anything else is transient and parked.
func (s *service) handlePushFailure(ctx context.Context, pushed *models.ProgressPayload, err error) error {
	var conflict *httpClient.ConflictError
	if errors.As(err, &conflict) {
		return s.retryAfterConflict(ctx, pushed, conflict)
	}

	var rejected *httpClient.RejectedError
	if errors.As(err, &rejected) {
		s.logger.Warn("server rejected payload, not retrying", "reason", rejected.Reason)
		return nil
	}

	s.park(ctx, pushed, err)
	return nil
}

// retryAfterConflict re-merges the already-merged payload against the
// server state returned with the conflict and pushes once more at the
// server's fresh revision. A second conflict is deferred to the next
// trigger rather than looped on.
func (s *service) retryAfterConflict(ctx context.Context, pushed *models.ProgressPayload, conflict *httpClient.ConflictError) error {
	s.logger.Debug("push conflict, re-merging",
		"server_revision", conflict.ServerRevision)

	result := merge.Merge(pushed, conflict.ServerPayload)

	if !result.Changed {
		// The winning writer already covers us.
		if err := s.applyPayload(ctx, conflict.ServerPayload); err != nil {
			return err
		}
		return s.recordSync(ctx, conflict.ServerRevision)
	}

	resp, err := s.apiClient.PushProgress(ctx, s.cid, result.Payload, conflict.ServerRevision)
	if err != nil {
		var again *httpClient.ConflictError
		if errors.As(err, &again) {
			s.logger.Debug("second conflict, deferring to next sync trigger",
				"server_revision", again.ServerRevision)
			return nil
		}

		var rejected *httpClient.RejectedError
		if errors.As(err, &rejected) {
			s.logger.Warn("server rejected payload, not retrying", "reason", rejected.Reason)
			return nil
		}

		s.park(ctx, result.Payload, err)
		return nil
	}

	if err := s.applyPayload(ctx, result.Payload); err != nil {
		return err
	}
	return s.recordSync(ctx, resp.Revision)
}

// flushOutbox retries a payload parked by an earlier failed attempt,
// pushing at the last known server revision. Its conflict branch behaves
// like the main cycle's. Failures keep the payload parked.
func (s *service) flushOutbox(ctx context.Context) {
	pending, err := s.meta.GetOutbox(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrOutboxEmpty) {
			s.logger.Warn("failed to read outbox", "error", err)
		}
		return
	}

	revision, err := s.meta.GetRevision(ctx)
	if err != nil {
		s.logger.Warn("failed to read last known revision", "error", err)
		return
	}

	s.logger.Debug("flushing outbox", "revision", revision)

	resp, err := s.apiClient.PushProgress(ctx, s.cid, pending, revision)
	if err == nil {
		s.clearOutbox(ctx)
		if err := s.recordSync(ctx, resp.Revision); err != nil {
			s.logger.Warn("failed to record outbox sync", "error", err)
		}
		return
	}

	var conflict *httpClient.ConflictError
	if errors.As(err, &conflict) {
		result := merge.Merge(pending, conflict.ServerPayload)

		if !result.Changed {
			s.clearOutbox(ctx)
			if err := s.applyPayload(ctx, conflict.ServerPayload); err != nil {
				s.logger.Warn("failed to apply server payload", "error", err)
			}
			if err := s.recordSync(ctx, conflict.ServerRevision); err != nil {
				s.logger.Warn("failed to record outbox sync", "error", err)
			}
			return
		}

		resp, err := s.apiClient.PushProgress(ctx, s.cid, result.Payload, conflict.ServerRevision)
		if err != nil {
			// Parked payload stays; the cycle proper will rebuild and
			// supersede it.
			s.logger.Debug("outbox flush conflict not resolved", "error", err)
			return
		}

		s.clearOutbox(ctx)
		if err := s.applyPayload(ctx, result.Payload); err != nil {
			s.logger.Warn("failed to apply merged payload", "error", err)
		}
		if err := s.recordSync(ctx, resp.Revision); err != nil {
			s.logger.Warn("failed to record outbox sync", "error", err)
		}
		return
	}

	var rejected *httpClient.RejectedError
	if errors.As(err, &rejected) {
		// Retrying an invalid or oversized payload fails identically.
		s.logger.Warn("outbox payload rejected, dropping", "reason", rejected.Reason)
		s.clearOutbox(ctx)
		return
	}

	s.logger.Debug("outbox flush failed, keeping payload", "error", err)
}

// applyPayload folds a payload into the local store. It only ever adds:
// an existing local stamp is never overwritten or removed. Remotely
// learned stamps use the remote timestamp, or now if it is unusable.
func (s *service) applyPayload(ctx context.Context, p *models.ProgressPayload) error {
	for _, step := range p.Progress.StepsCompleted {
		_, err := s.stamps.Has(ctx, step)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrStampNotFound) {
			return fmt.Errorf("failed to check stamp %s: %w", step, err)
		}

		collected := time.Now().UTC()
		if raw, ok := p.Progress.Custom.StampTimestamps[step]; ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				collected = t
			}
		}

		if err := s.stamps.Put(ctx, &models.Stamp{LocationID: step, CollectedAt: collected}); err != nil {
			return fmt.Errorf("failed to store remote stamp %s: %w", step, err)
		}

		s.logger.Debug("learned stamp from server", "location_id", step)
	}

	return nil
}

// recordSync persists the new revision baseline and sync time.
func (s *service) recordSync(ctx context.Context, revision int64) error {
	if err := s.meta.SaveRevision(ctx, revision); err != nil {
		return fmt.Errorf("failed to save revision: %w", err)
	}
	if err := s.meta.SaveLastSyncTime(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save last sync time: %w", err)
	}

	s.logger.Info("sync completed", "revision", revision)
	return nil
}

// park stores a payload in the outbox after a transient failure.
func (s *service) park(ctx context.Context, p *models.ProgressPayload, cause error) {
	s.logger.Debug("network failure, parking payload in outbox", "error", cause)

	if err := s.meta.SaveOutbox(ctx, p); err != nil {
		s.logger.Warn("failed to park payload in outbox", "error", err)
	}
}

func (s *service) clearOutbox(ctx context.Context) {
	if err := s.meta.ClearOutbox(ctx); err != nil {
		s.logger.Warn("failed to clear outbox", "error", err)
	}
}

// NotifyStampCollected schedules a sync after the debounce window,
// resetting the window if another stamp lands first.
func (s *service) NotifyStampCollected() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.SyncProgress(context.Background()); err != nil {
			s.logger.Warn("debounced sync failed", "error", err)
		}
	})
}

// NotifyOnline runs a sync immediately to flush anything parked while
// offline.
func (s *service) NotifyOnline(ctx context.Context) {
	if err := s.SyncProgress(ctx); err != nil {
		s.logger.Warn("reconnect sync failed", "error", err)
	}
}

// Teardown fires the final best-effort beacon with the full current local
// payload at the last known revision. Not part of the main state machine:
// no response, no retry.
func (s *service) Teardown(ctx context.Context) {
	if s.apiClient == nil || s.cid == "" {
		return
	}

	local, err := s.builder.Build(ctx)
	if err != nil {
		s.logger.Debug("teardown build failed", "error", err)
		return
	}
	if len(local.Progress.StepsCompleted) == 0 {
		return
	}

	revision, err := s.meta.GetRevision(ctx)
	if err != nil {
		revision = 0
	}

	s.apiClient.SendBeacon(s.cid, local, revision)
}

// Stop cancels any pending debounced sync.
func (s *service) Stop() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
