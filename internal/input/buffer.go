package input

import (
	"sort"

	"arenaserver/internal/spatial"
)

// Frame is one decoded player-input sample, carrying the client-assigned
// sequence number used for reordering and at-most-once application.
type Frame struct {
	Sequence    uint32
	MoveX       float64
	MoveY       float64
	AimX        float64
	AimY        float64
	IsAttacking bool
	IsSprinting bool
	AbilityType string
}

// bufferCapacity bounds how many not-yet-applied frames a player can have
// queued; it is small because stale movement input is worthless; the tick
// loop only ever wants the newest contiguous sequence it hasn't applied yet.
const bufferCapacity = 32

// maxReorderWindow bounds how far out of order a sequence number may arrive
// and still be accepted. Anything further is either a replay attack or a
// client clock that has drifted too far to reconcile.
const maxReorderWindow = 64

// Buffer reorders one player's input frames by sequence number across the
// network goroutine (single producer) / tick goroutine (single consumer)
// boundary, applying each sequence at most once.
type Buffer struct {
	queue         *spatial.SPSCQueue[Frame]
	lastApplied   uint32
	haveApplied   bool
	pending       []Frame // held for reorder, drained in Take
}

// NewBuffer creates an input buffer for one player.
func NewBuffer() *Buffer {
	return &Buffer{
		queue:   spatial.NewSPSCQueue[Frame](bufferCapacity),
		pending: make([]Frame, 0, bufferCapacity),
	}
}

// Push enqueues a frame received from the network. Called from the
// connection's receive goroutine. Returns false if the buffer is full,
// meaning the tick loop isn't draining fast enough or the client is
// flooding input faster than the tick rate allows.
func (b *Buffer) Push(f Frame) bool {
	return b.queue.TryPush(f)
}

// Take drains all newly arrived frames, discards duplicates and sequences
// too far outside the reorder window, sorts the remainder by sequence, and
// returns them in application order. Called once per tick from the world's
// single-writer goroutine.
func (b *Buffer) Take() []Frame {
	for {
		f, ok := b.queue.TryPop()
		if !ok {
			break
		}

		if b.haveApplied {
			delta := int64(f.Sequence) - int64(b.lastApplied)
			if delta <= 0 {
				continue // duplicate or already-applied sequence
			}
			if delta > maxReorderWindow {
				continue // too far ahead to reconcile; treat as unreliable
			}
		}

		b.pending = append(b.pending, f)
	}

	if len(b.pending) == 0 {
		return nil
	}

	sort.Slice(b.pending, func(i, j int) bool {
		return b.pending[i].Sequence < b.pending[j].Sequence
	})

	out := b.pending
	b.lastApplied = out[len(out)-1].Sequence
	b.haveApplied = true
	b.pending = make([]Frame, 0, bufferCapacity)

	return out
}

// LastAcknowledged returns the highest sequence number applied so far, sent
// back to the client so it can reconcile its predicted state.
func (b *Buffer) LastAcknowledged() (uint32, bool) {
	return b.lastApplied, b.haveApplied
}
