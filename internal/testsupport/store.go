package testsupport

import (
	"testing"

	"curator/internal/config"
	"curator/internal/state"
)

// MustOpenStore opens the state store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg.Paths.StateFile)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return store
}

// SeedItem creates and persists a minimal item for tests.
func SeedItem(t testing.TB, store *state.Store, id string, progress state.Phase) *state.ItemState {
	t.Helper()

	item := &state.ItemState{
		ID:        id,
		SourceURL: "https://example.com/status/" + id,
		Progress:  progress,
	}
	if err := store.Upsert(item); err != nil {
		t.Fatalf("store.Upsert(%s): %v", id, err)
	}
	return item
}
