package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/services"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func TestOpenMissingFileYieldsEmptyStore(t *testing.T) {
	store, err := Open(tempStorePath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d items", store.Len())
	}
}

func TestOpenMalformedFileFailsFast(t *testing.T) {
	path := tempStorePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected error for malformed file")
	}
	if !errors.Is(err, services.ErrStateStore) {
		t.Fatalf("expected state store error, got %v", err)
	}
}

func TestOpenRejectsUnknownSchemaVersion(t *testing.T) {
	path := tempStorePath(t)
	if err := os.WriteFile(path, []byte(`{"schema_version":99,"items":{}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "schema version") {
		t.Fatalf("expected schema version error, got %v", err)
	}
}

func TestUpsertPersistsAndReloads(t *testing.T) {
	path := tempStorePath(t)
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	item := &ItemState{
		ID:        "1001",
		SourceURL: "https://example.com/status/1001",
		Progress:  PhaseCache,
		Payload:   &Payload{Author: "someone", Text: "hello"},
	}
	if err := store.Upsert(item); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reloaded.Get("1001")
	if !ok {
		t.Fatal("item missing after reload")
	}
	if got.Progress != PhaseCache || got.Payload == nil || got.Payload.Author != "someone" {
		t.Fatalf("unexpected reloaded item %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps should be stamped on upsert")
	}
}

func TestUpsertRequiresID(t *testing.T) {
	store, _ := Open(tempStorePath(t))
	if err := store.Upsert(&ItemState{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetReturnsDetachedCopy(t *testing.T) {
	store, _ := Open(tempStorePath(t))
	orig := &ItemState{ID: "x", Payload: &Payload{Media: []MediaRef{{URL: "a"}}}}
	if err := store.Upsert(orig); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	copy1, _ := store.Get("x")
	copy1.Payload.Media[0].URL = "mutated"
	copy1.Progress = PhaseSync

	copy2, _ := store.Get("x")
	if copy2.Payload.Media[0].URL != "a" || copy2.Progress != PhaseNone {
		t.Fatal("store state leaked through returned reference")
	}
}

func TestPendingIDsExcludesProcessed(t *testing.T) {
	store, _ := Open(tempStorePath(t))
	done := &ItemState{ID: "done", Progress: LastPhase}
	pending := &ItemState{ID: "pending", Progress: PhaseCategorize}
	failed := &ItemState{ID: "failed", Progress: LastPhase}
	failed.SetFailed(PhaseSync, "push rejected")
	for _, item := range []*ItemState{done, pending, failed} {
		if err := store.Upsert(item); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	ids := store.PendingIDs()
	if len(ids) != 2 || ids[0] != "failed" || ids[1] != "pending" {
		t.Fatalf("unexpected pending set %v", ids)
	}
}

func TestMarkProcessed(t *testing.T) {
	store, _ := Open(tempStorePath(t))
	if err := store.Upsert(&ItemState{ID: "a", Progress: LastPhase}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.MarkProcessed("a"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	got, _ := store.Get("a")
	if got.CompletedAt == nil {
		t.Fatal("completion time not stamped")
	}

	if err := store.Upsert(&ItemState{ID: "b", Progress: PhaseCache}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.MarkProcessed("b"); err == nil {
		t.Fatal("unfinished item must not be markable")
	}
	if err := store.MarkProcessed("ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNeedsPhaseHonorsDependencyChain(t *testing.T) {
	store, _ := Open(tempStorePath(t))

	fresh := &ItemState{ID: "fresh"}
	if !store.NeedsPhase(fresh, PhaseCache, false) {
		t.Error("fresh item needs cache")
	}
	if store.NeedsPhase(fresh, PhaseCategorize, false) {
		t.Error("categorize must wait for prior phases")
	}
	// Force never skips the chain.
	if store.NeedsPhase(fresh, PhaseCategorize, true) {
		t.Error("force on a later phase must not bypass dependencies")
	}

	mid := &ItemState{ID: "mid", Progress: PhaseMedia}
	if !store.NeedsPhase(mid, PhaseCategorize, false) {
		t.Error("next phase in chain should be needed")
	}
	if store.NeedsPhase(mid, PhaseMedia, false) {
		t.Error("completed phase not needed without force")
	}
	if !store.NeedsPhase(mid, PhaseMedia, true) {
		t.Error("completed phase becomes eligible under force")
	}
	if store.NeedsPhase(mid, PhaseGenerate, false) {
		t.Error("generate must wait for categorize")
	}
}

func TestApplyForceRewindsCascades(t *testing.T) {
	path := tempStorePath(t)
	store, _ := Open(path)
	full := &ItemState{ID: "full", Progress: LastPhase}
	if err := store.Upsert(full); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.MarkProcessed("full"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	failed := &ItemState{ID: "failed", Progress: PhaseCache}
	failed.SetFailed(PhaseMedia, "model unavailable")
	if err := store.Upsert(failed); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := store.ApplyForceRewinds([]Phase{PhaseCategorize}); err != nil {
		t.Fatalf("ApplyForceRewinds: %v", err)
	}

	got, _ := store.Get("full")
	if got.Progress != PhaseMedia {
		t.Fatalf("progress should rewind to the phase before categorize, got %v", got.Progress)
	}
	if got.CompletedAt != nil {
		t.Fatal("completion stamp should clear on rewind")
	}

	// Forcing media clears an error recorded for media.
	if err := store.ApplyForceRewinds([]Phase{PhaseMedia}); err != nil {
		t.Fatalf("ApplyForceRewinds: %v", err)
	}
	gotFailed, _ := store.Get("failed")
	if gotFailed.ErrorMessage != "" || gotFailed.FailedPhase != PhaseNone {
		t.Fatalf("error slot should clear, got %+v", gotFailed)
	}
	// The second rewind also pulls "full" back, since its progress sat at
	// media after the first one.
	got, _ = store.Get("full")
	if got.Progress != PhaseCache {
		t.Fatalf("progress should rewind to the phase before media, got %v", got.Progress)
	}

	// Rewinds persist.
	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reloadedFull, _ := reloaded.Get("full")
	if reloadedFull.Progress != PhaseCache {
		t.Fatal("rewind did not persist")
	}
}

func TestSaveIsAtomicOnDisk(t *testing.T) {
	path := tempStorePath(t)
	store, _ := Open(path)
	if err := store.Upsert(&ItemState{ID: "a"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".state-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file missing: %v", err)
	}
}
