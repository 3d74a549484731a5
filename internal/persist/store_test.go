package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/langpad/schema"
)

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load("pg1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected missing snapshot")
	}
}

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := PlaygroundSnapshot{
		ID:       "pg1",
		State:    schema.StateSnapshot{Grammar: schema.DefaultGrammar, Content: schema.DefaultContent},
		Sessions: 4,
		SavedAt:  saved,
	}
	if err := store.Save(snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load("pg1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.State != snapshot.State || got.Sessions != 4 || !got.SavedAt.Equal(saved) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	info, err := os.Stat(filepath.Join(dir, "pg1.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestStoreSaveStampsTime(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(PlaygroundSnapshot{ID: "pg2"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, err := store.Load("pg2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SavedAt.IsZero() {
		t.Fatalf("expected saved_at to be set")
	}
}

func TestStoreListAndDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, id := range []schema.PlaygroundID{"b", "a"} {
		if err := store.Save(PlaygroundSnapshot{ID: id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	ids, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := store.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete("a"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if ids, _ := store.List(); len(ids) != 1 {
		t.Fatalf("expected one id after delete, got %v", ids)
	}
}

func TestSanitizeRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	path := store.pathFor("../escape")
	if filepath.Dir(path) != store.dir {
		t.Fatalf("expected path inside store dir, got %s", path)
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
