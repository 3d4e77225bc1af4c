package state

import (
	"strings"
	"time"
)

// MediaRef is one media attachment discovered on a cached post.
type MediaRef struct {
	URL         string `json:"url"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
}

// Payload holds the cached source content for an item. It is written by the
// cache phase and treated as immutable by later phases except for media
// descriptions added during interpretation.
type Payload struct {
	Author    string     `json:"author,omitempty"`
	Text      string     `json:"text,omitempty"`
	Links     []string   `json:"links,omitempty"`
	Media     []MediaRef `json:"media,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// ItemState is the persisted processing record for one content item.
//
// Progress is the furthest completed phase; a phase counts as completed only
// when every prior phase completed first, so the dependency chain cannot be
// violated by construction.
type ItemState struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Payload      *Payload   `json:"payload,omitempty"`
	Progress     Phase      `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	FailedPhase  Phase      `json:"failed_phase,omitempty"`
	CategoryPath string     `json:"category_path,omitempty"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the given phase has finished for this item.
func (i *ItemState) Completed(phase Phase) bool {
	return i.Progress >= phase
}

// Processed reports whether every phase completed without a recorded error.
func (i *ItemState) Processed() bool {
	return i.Progress >= LastPhase && i.ErrorMessage == ""
}

// SetFailed records a phase failure on the item. Progress is left where it
// was; the failed phase stays incomplete.
func (i *ItemState) SetFailed(phase Phase, message string) {
	i.FailedPhase = phase
	i.ErrorMessage = strings.TrimSpace(message)
	if i.ErrorMessage == "" {
		i.ErrorMessage = phase.String() + " failed"
	}
}

// ClearFailure wipes the recorded error slot.
func (i *ItemState) ClearFailure() {
	i.ErrorMessage = ""
	i.FailedPhase = PhaseNone
}

// Clone returns a deep copy so callers can mutate freely without aliasing the
// store's authoritative record.
func (i *ItemState) Clone() *ItemState {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Payload != nil {
		payload := *i.Payload
		payload.Links = append([]string(nil), i.Payload.Links...)
		payload.Media = append([]MediaRef(nil), i.Payload.Media...)
		cp.Payload = &payload
	}
	if i.CompletedAt != nil {
		completed := *i.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}
