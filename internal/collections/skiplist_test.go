package collections

import "testing"

func TestInsertOrdersByDescendingScore(t *testing.T) {
	sl := NewSkipList()
	sl.Insert("low", 10)
	sl.Insert("high", 100)
	sl.Insert("mid", 50)

	entries := sl.GetRange(1, 3)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"high", "mid", "low"}
	for i, key := range want {
		if entries[i].Key != key {
			t.Errorf("position %d: expected %q, got %q", i, key, entries[i].Key)
		}
	}
}

func TestInsertUpdatesExistingKeyScore(t *testing.T) {
	sl := NewSkipList()
	sl.Insert("p1", 10)
	sl.Insert("p1", 200)

	if sl.Length() != 1 {
		t.Fatalf("expected re-insertion of the same key to update in place, got length %d", sl.Length())
	}
	score, ok := sl.GetScore("p1")
	if !ok || score != 200 {
		t.Errorf("expected updated score 200, got %v (ok=%v)", score, ok)
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	sl := NewSkipList()
	sl.Insert("p1", 10)
	sl.Insert("p2", 20)

	if !sl.Remove("p1") {
		t.Fatal("expected Remove to report success for an existing key")
	}
	if _, ok := sl.GetScore("p1"); ok {
		t.Error("expected removed key to no longer resolve")
	}
	if sl.Length() != 1 {
		t.Errorf("expected length 1 after removal, got %d", sl.Length())
	}
}

func TestRemoveUnknownKeyReturnsFalse(t *testing.T) {
	sl := NewSkipList()
	if sl.Remove("nope") {
		t.Error("expected Remove of an unknown key to report false")
	}
}

func TestGetRankReflectsDescendingOrder(t *testing.T) {
	sl := NewSkipList()
	sl.Insert("low", 10)
	sl.Insert("high", 100)

	if rank := sl.GetRank("high"); rank != 1 {
		t.Errorf("expected the highest score to be rank 1, got %d", rank)
	}
	if rank := sl.GetRank("low"); rank != 2 {
		t.Errorf("expected the lowest score to be rank 2, got %d", rank)
	}
}

func TestGetRangeClampsToLength(t *testing.T) {
	sl := NewSkipList()
	sl.Insert("only", 1)

	entries := sl.GetRange(1, 10)
	if len(entries) != 1 {
		t.Errorf("expected range to clamp to the list's actual length, got %d entries", len(entries))
	}
}
