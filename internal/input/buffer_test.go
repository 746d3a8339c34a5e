package input

import "testing"

func TestTakeReordersOutOfSequenceFrames(t *testing.T) {
	b := NewBuffer()
	// Arrival order 7, 9, 8 must drain in sequence order 7, 8, 9.
	b.Push(Frame{Sequence: 7})
	b.Push(Frame{Sequence: 9})
	b.Push(Frame{Sequence: 8})

	got := b.Take()
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	for i, want := range []uint32{7, 8, 9} {
		if got[i].Sequence != want {
			t.Errorf("position %d: expected sequence %d, got %d", i, want, got[i].Sequence)
		}
	}

	last, ok := b.LastAcknowledged()
	if !ok || last != 9 {
		t.Errorf("expected last acknowledged 9, got %d (ok=%v)", last, ok)
	}
}

func TestTakeDropsDuplicateSequence(t *testing.T) {
	b := NewBuffer()
	b.Push(Frame{Sequence: 5})
	b.Take()

	b.Push(Frame{Sequence: 5})
	got := b.Take()
	if len(got) != 0 {
		t.Errorf("expected duplicate sequence to be dropped, got %d frames", len(got))
	}
}

func TestTakeDropsSequenceTooFarAhead(t *testing.T) {
	b := NewBuffer()
	b.Push(Frame{Sequence: 1})
	b.Take()

	b.Push(Frame{Sequence: 1 + maxReorderWindow + 1})
	got := b.Take()
	if len(got) != 0 {
		t.Errorf("expected far-future sequence to be dropped, got %d frames", len(got))
	}
}

func TestTakeReturnsNilWhenEmpty(t *testing.T) {
	b := NewBuffer()
	if got := b.Take(); got != nil {
		t.Errorf("expected nil for an empty buffer, got %v", got)
	}
}

func TestLastAcknowledgedFalseBeforeAnyTake(t *testing.T) {
	b := NewBuffer()
	if _, ok := b.LastAcknowledged(); ok {
		t.Error("expected ok=false before any frame has been applied")
	}
}
