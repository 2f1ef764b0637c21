// Package merge combines two progress payloads into a monotonic union.
// The functions here are pure: no I/O, no clock, no side effects, so the
// sync client can call them repeatedly during conflict retries.
package merge

import (
	"sort"
	"time"

	"github.com/csabourin/stamppassport/internal/models"
)

// Result is the outcome of merging a local payload against a remote one.
// Changed reports whether the merged step set differs from the remote's,
// i.e. whether a push back to the server is needed at all.
type Result struct {
	Payload *models.ProgressPayload
	Changed bool
}

// Merge unions the completed steps of both payloads. A step present on
// either side is present in the result; a stamp is never lost, no matter
// which side is "newer". Per-step timestamps resolve to the earliest
// evidence of collection. schemaVersion, contestVersion and updatedAt are
// carried from the local side, which initiated the merge.
//
// Merge is reentrant: merging an already-merged payload against the same
// remote yields the same step set.
func Merge(local, remote *models.ProgressPayload) Result {
	remoteSet := remote.StepSet()

	union := local.StepSet()
	for step := range remoteSet {
		union[step] = struct{}{}
	}

	steps := make([]string, 0, len(union))
	for step := range union {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	timestamps := make(map[string]string, len(steps))
	for _, step := range steps {
		localTS, haveLocal := local.Progress.Custom.StampTimestamps[step]
		remoteTS, haveRemote := remote.Progress.Custom.StampTimestamps[step]

		switch {
		case haveLocal && haveRemote:
			timestamps[step] = earliest(localTS, remoteTS)
		case haveLocal:
			timestamps[step] = localTS
		case haveRemote:
			timestamps[step] = remoteTS
		}
	}

	merged := &models.ProgressPayload{
		SchemaVersion:  local.SchemaVersion,
		ContestVersion: local.ContestVersion,
		UpdatedAt:      local.UpdatedAt,
		Progress: models.Progress{
			StepsCompleted: steps,
			Score:          len(steps),
			Custom:         models.CustomData{StampTimestamps: timestamps},
		},
	}

	return Result{Payload: merged, Changed: changed(union, remoteSet)}
}

// changed reports whether the merged set differs from the remote set.
func changed(union, remote map[string]struct{}) bool {
	if len(union) != len(remote) {
		return true
	}
	for step := range union {
		if _, ok := remote[step]; !ok {
			return true
		}
	}
	return false
}

// earliest picks the earlier of two RFC 3339 timestamps. If only one side
// parses, that side wins; if neither does, the first (local) value is
// carried so the step still keeps a timestamp.
func earliest(a, b string) string {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)

	switch {
	case errA != nil && errB != nil:
		return a
	case errA != nil:
		return b
	case errB != nil:
		return a
	case tb.Before(ta):
		return b
	default:
		return a
	}
}
