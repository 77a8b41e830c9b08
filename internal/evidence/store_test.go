package evidence

import (
	"os"
	"strings"
	"testing"
)

func TestStore_PutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ref, err := store.Put("g1", "t1", KindStdout, []byte("hello world\n"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ref.Kind != KindStdout {
		t.Errorf("unexpected kind %q", ref.Kind)
	}
	if ref.Size != 12 {
		t.Errorf("unexpected size %d", ref.Size)
	}
	if len(ref.Hash) != 64 {
		t.Errorf("expected full blake3 hex hash, got %q", ref.Hash)
	}
	if !strings.Contains(ref.Path, "g1") || !strings.Contains(ref.Path, "t1") {
		t.Errorf("path should be namespaced by graph and task id, got %q", ref.Path)
	}

	data, err := store.Get(ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "hello world\n" {
		t.Errorf("round trip mismatch: %q", data)
	}
}

func TestStore_ContentAddressing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ref1, err := store.Put("g1", "t1", KindArtifact, []byte("same bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	ref2, err := store.Put("g1", "t1", KindArtifact, []byte("same bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ref1.Path != ref2.Path {
		t.Errorf("identical content should resolve to the same path: %q vs %q", ref1.Path, ref2.Path)
	}
	if ref1.Hash != ref2.Hash {
		t.Errorf("identical content should share a hash")
	}
}

func TestStore_GetDetectsCorruption(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ref, err := store.Put("g1", "t1", KindStderr, []byte("original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := os.WriteFile(ref.Path, []byte("tampered"), 0600); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := store.Get(ref); err == nil {
		t.Fatal("Get should reject a blob whose hash no longer matches")
	}
}

func TestStore_List(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := store.Put("g1", "t1", KindStdout, []byte("out")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put("g1", "t1", KindStderr, []byte("err")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	refs, err := store.List("g1", "t1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}

	kinds := map[string]bool{}
	for _, ref := range refs {
		kinds[ref.Kind] = true
	}
	if !kinds[KindStdout] || !kinds[KindStderr] {
		t.Errorf("expected stdout and stderr kinds, got %v", kinds)
	}

	empty, err := store.List("g1", "missing")
	if err != nil {
		t.Fatalf("List missing: %v", err)
	}
	if empty != nil {
		t.Errorf("listing a missing namespace should return nil, got %v", empty)
	}
}

func TestStore_RequiresIDs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Put("", "t1", KindStdout, nil); err == nil {
		t.Error("Put without graph id should fail")
	}
	if _, err := store.Put("g1", "", KindStdout, nil); err == nil {
		t.Error("Put without task id should fail")
	}
}
