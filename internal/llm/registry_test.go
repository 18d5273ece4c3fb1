package llm

import "testing"

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry([]string{"a", "b"})

	snap := r.Snapshot()
	snap[0] = "mutated"

	if got := r.Snapshot()[0]; got != "a" {
		t.Fatalf("registry mutated through snapshot: %q", got)
	}
}

func TestRegistryReloadReplacesList(t *testing.T) {
	r := NewRegistry([]string{"a", "b"})
	r.Reload([]string{"c"})

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0] != "c" {
		t.Fatalf("Snapshot = %v, want [c]", snap)
	}
}

func TestRegistryDropsEmptyAndDuplicateEntries(t *testing.T) {
	r := NewRegistry([]string{"a", "", "a", "b"})

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0] != "a" || snap[1] != "b" {
		t.Fatalf("Snapshot = %v, want [a b]", snap)
	}
}
