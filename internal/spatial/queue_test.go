package spatial

import "testing"

func TestSPSCQueuePushPopOrdering(t *testing.T) {
	q := NewSPSCQueue[int](4)
	for _, v := range []int{1, 2, 3} {
		if !q.TryPush(v) {
			t.Fatalf("expected push of %d to succeed", v)
		}
	}

	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Errorf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
}

func TestSPSCQueueRejectsPushWhenFull(t *testing.T) {
	q := NewSPSCQueue[int](2) // rounds up to 2
	if !q.TryPush(1) || !q.TryPush(2) {
		t.Fatal("expected both pushes within capacity to succeed")
	}
	if q.TryPush(3) {
		t.Error("expected push beyond capacity to fail")
	}
}

func TestSPSCQueueTryPopEmptyReturnsFalse(t *testing.T) {
	q := NewSPSCQueue[int](4)
	if _, ok := q.TryPop(); ok {
		t.Error("expected pop of an empty queue to report false")
	}
}

func TestSPSCQueueLenTracksOccupancy(t *testing.T) {
	q := NewSPSCQueue[int](8)
	q.TryPush(1)
	q.TryPush(2)
	if got := q.Len(); got != 2 {
		t.Errorf("expected len 2, got %d", got)
	}
	q.TryPop()
	if got := q.Len(); got != 1 {
		t.Errorf("expected len 1 after one pop, got %d", got)
	}
}

func TestLockFreeQueueDrainReturnsAllInOrder(t *testing.T) {
	q := NewLockFreeQueue[int](8)
	for _, v := range []int{1, 2, 3} {
		q.TryPush(v)
	}

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items drained, got %d", len(got))
	}
	for i, want := range []int{1, 2, 3} {
		if got[i] != want {
			t.Errorf("position %d: expected %d, got %d", i, want, got[i])
		}
	}
	if !q.IsEmpty() {
		t.Error("expected queue to be empty after Drain")
	}
}

func TestLockFreeQueuePushEvictsOldestWhenFull(t *testing.T) {
	q := NewLockFreeQueue[int](2)
	q.Push(1)
	q.Push(2)
	q.Push(3) // queue full at capacity 2: evicts 1

	got := q.Drain()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected oldest entry evicted, got %v", got)
	}
}

func TestNewSPSCQueueRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := NewSPSCQueue[int](5)
	if got := len(q.data); got != 8 {
		t.Errorf("expected capacity rounded up to 8, got %d", got)
	}
}
