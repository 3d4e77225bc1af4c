package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"curator/internal/services"
)

// schemaVersion is bumped whenever the persisted document shape changes.
// Loading an unsupported version fails explicitly instead of silently
// truncating fields.
const schemaVersion = 1

type document struct {
	SchemaVersion int                   `json:"schema_version"`
	SavedAt       time.Time             `json:"saved_at"`
	Items         map[string]*ItemState `json:"items"`
}

// Store owns the authoritative map of item states and serializes every
// mutation behind one mutex. Each mutation persists the whole document
// atomically before returning, so a crash never loses acknowledged updates.
type Store struct {
	mu    sync.Mutex
	path  string
	items map[string]*ItemState
}

// Open loads the state document at path. A missing file yields an empty
// store; a malformed or version-incompatible file is a fatal error.
func Open(path string) (*Store, error) {
	store := &Store{path: path, items: make(map[string]*ItemState)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStateStore, "", "load", fmt.Sprintf("read %s", path), err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrStateStore, "", "load", fmt.Sprintf("parse %s", path), err)
	}
	if doc.SchemaVersion != schemaVersion {
		return nil, services.Wrap(services.ErrStateStore, "", "load",
			fmt.Sprintf("unsupported schema version %d (expected %d)", doc.SchemaVersion, schemaVersion), nil)
	}
	for id, item := range doc.Items {
		if item == nil {
			continue
		}
		item.ID = id
		store.items[id] = item
	}
	return store, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns a deep copy of the item, if known.
func (s *Store) Get(id string) (*ItemState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Upsert stores the item and persists the full document. The store keeps its
// own copy; the caller's reference stays detached.
func (s *Store) Upsert(item *ItemState) error {
	if item == nil || item.ID == "" {
		return services.Wrap(services.ErrValidation, "", "upsert", "item id required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := item.Clone()
	now := time.Now().UTC()
	if existing, ok := s.items[cp.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.items[cp.ID] = cp
	return s.saveLocked()
}

// AllIDs returns every known item ID in stable order.
func (s *Store) AllIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PendingIDs returns the IDs whose processing is not finished.
func (s *Store) PendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id, item := range s.items {
		if !item.Processed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns deep copies of every item keyed by ID.
func (s *Store) Snapshot() map[string]*ItemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*ItemState, len(s.items))
	for id, item := range s.items {
		out[id] = item.Clone()
	}
	return out
}

// Len returns the number of known items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MarkProcessed stamps the completion time on an item whose every phase
// finished cleanly. Calling it on an unfinished item is an error.
func (s *Store) MarkProcessed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "", "mark processed", fmt.Sprintf("item %s", id), nil)
	}
	if !item.Processed() {
		return services.Wrap(services.ErrValidation, "", "mark processed",
			fmt.Sprintf("item %s has not completed all phases", id), nil)
	}
	if item.CompletedAt == nil {
		now := time.Now().UTC()
		item.CompletedAt = &now
		item.UpdatedAt = now
		return s.saveLocked()
	}
	return nil
}

// NeedsPhase reports whether the item must run the given phase under the
// supplied force preference. Force never skips the dependency chain: a forced
// phase only becomes eligible once all prior phases are complete.
func (s *Store) NeedsPhase(item *ItemState, phase Phase, force bool) bool {
	if item == nil || phase == PhaseNone {
		return false
	}
	if item.Progress < phase.Prev() {
		return false
	}
	if item.Completed(phase) {
		return force
	}
	return true
}

// ApplyForceRewinds rewinds progress for every item so that each forced phase
// (and everything after it, whose outputs are now stale) becomes eligible
// again, clearing error slots the rewind covers. One save at the end.
func (s *Store) ApplyForceRewinds(forced []Phase) error {
	if len(forced) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	anyChanged := false
	now := time.Now().UTC()
	for _, item := range s.items {
		itemChanged := false
		for _, phase := range forced {
			if item.Progress >= phase {
				item.Progress = phase.Prev()
				itemChanged = true
			}
			if item.FailedPhase != PhaseNone && phase <= item.FailedPhase {
				item.ClearFailure()
				itemChanged = true
			}
		}
		if itemChanged {
			if item.CompletedAt != nil && !item.Processed() {
				item.CompletedAt = nil
			}
			item.UpdatedAt = now
			anyChanged = true
		}
	}
	if !anyChanged {
		return nil
	}
	return s.saveLocked()
}

// SetFailure records a phase failure and persists it.
func (s *Store) SetFailure(id string, phase Phase, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "", "set failure", fmt.Sprintf("item %s", id), nil)
	}
	item.SetFailed(phase, message)
	item.UpdatedAt = time.Now().UTC()
	return s.saveLocked()
}

// Save persists the current document. Exposed for callers that batch
// mutations through Snapshot-modify-Upsert cycles.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the whole document to a temp file in the same directory,
// fsyncs and renames it over the target. Partial writes are never observable.
func (s *Store) saveLocked() error {
	doc := document{
		SchemaVersion: schemaVersion,
		SavedAt:       time.Now().UTC(),
		Items:         s.items,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStateStore, "", "save", "encode state", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStateStore, "", "save", fmt.Sprintf("create %s", dir), err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return services.Wrap(services.ErrStateStore, "", "save", "create temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return services.Wrap(services.ErrStateStore, "", "save", "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return services.Wrap(services.ErrStateStore, "", "save", "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrStateStore, "", "save", "close temp file", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrStateStore, "", "save", "chmod temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrStateStore, "", "save", fmt.Sprintf("rename to %s", s.path), err)
	}
	return nil
}
