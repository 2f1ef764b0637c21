package models

import (
	"encoding/json"
	"sort"
	"time"
)

// SchemaVersion is the only payload schema this build understands.
// Any other value is hard-rejected; there is no migration path.
const SchemaVersion = 1

// Stamp is one recorded visit to a location. Stamps are write-once:
// collecting the same location again never touches the original timestamp.
type Stamp struct {
	CollectedAt time.Time `json:"collected_at"`
	LocationID  string    `json:"location_id"`
}

// CustomData carries per-step provenance inside a payload. The merge
// engine uses StampTimestamps for its earliest-time rule.
type CustomData struct {
	StampTimestamps map[string]string `json:"stampTimestamps"`
}

// Progress is the completed-steps summary inside a payload.
// Score equals len(StepsCompleted) by builder convention; the merge
// engine recomputes it but never enforces it on input.
type Progress struct {
	Custom         CustomData `json:"custom"`
	StepsCompleted []string   `json:"stepsCompleted"`
	Score          int        `json:"score"`
}

// ProgressPayload is the unit of sync: a versioned snapshot of everything
// a contest participant has collected.
type ProgressPayload struct {
	ContestVersion string   `json:"contestVersion"`
	UpdatedAt      string   `json:"updatedAt"`
	Progress       Progress `json:"progress"`
	SchemaVersion  int      `json:"schemaVersion"`
}

// ProgressRecord is the server-side row for one contest identifier.
type ProgressRecord struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ContestID   string
	PayloadJSON []byte
	PayloadHash string
	Revision    int64
}

// StepSet returns the completed steps as a set.
func (p *ProgressPayload) StepSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Progress.StepsCompleted))
	for _, step := range p.Progress.StepsCompleted {
		set[step] = struct{}{}
	}
	return set
}

// HasStep reports whether the payload contains the given step.
func (p *ProgressPayload) HasStep(locationID string) bool {
	for _, step := range p.Progress.StepsCompleted {
		if step == locationID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the payload.
func (p *ProgressPayload) Clone() *ProgressPayload {
	steps := make([]string, len(p.Progress.StepsCompleted))
	copy(steps, p.Progress.StepsCompleted)

	timestamps := make(map[string]string, len(p.Progress.Custom.StampTimestamps))
	for k, v := range p.Progress.Custom.StampTimestamps {
		timestamps[k] = v
	}

	return &ProgressPayload{
		SchemaVersion:  p.SchemaVersion,
		ContestVersion: p.ContestVersion,
		UpdatedAt:      p.UpdatedAt,
		Progress: Progress{
			StepsCompleted: steps,
			Score:          p.Progress.Score,
			Custom:         CustomData{StampTimestamps: timestamps},
		},
	}
}

// MarshalCanonical serializes the payload compactly with steps sorted.
// Identical collected state always produces identical bytes, which is
// what lets the server's content-hash no-op short circuit fire.
func (p *ProgressPayload) MarshalCanonical() ([]byte, error) {
	c := p.Clone()
	sort.Strings(c.Progress.StepsCompleted)
	return json.Marshal(c)
}
