// Package snapshot builds the delta-compressed per-world state broadcast the
// transport fans out each tick, and holds it in a lock-free triple buffer so
// the tick goroutine never blocks on a slow consumer.
package snapshot

import (
	"math"
	"sync/atomic"
	"time"

	"arenaserver/internal/protocol"
	"arenaserver/internal/world"
)

// Delta thresholds: a field must move at least this much since the last
// broadcast to be included again. Position/velocity use linear units,
// direction uses radians, health is exact (never thresholded) since
// small HP changes still matter for UI and audio cues.
const (
	positionDeltaThreshold  = 0.01
	velocityDeltaThreshold  = 0.01
	directionDeltaThreshold = 0.5
)

// Snapshot is one tick's full broadcast payload for a single world, already
// split into the wire message shapes the transport sends.
type Snapshot struct {
	Sequence  uint64
	Timestamp time.Time

	Essential         protocol.WorldStateEssentialPayload
	PlayerStates      protocol.PlayerStatesBatchPayload
	MobUpdates        protocol.MobUpdatesChunkPayload
	CombatEvents      protocol.CombatEventsPayload
	LootEvents        protocol.LootUpdatesPayload
	AcknowledgedInput map[string]uint32
}

type lastSentPlayer struct {
	x, y           float64
	vx, vy         float64
	aimX, aimY     float64
	health         int
	haveSent       bool
}

// Builder accumulates the last-broadcast state per player so it can compute
// deltas; one Builder belongs to exactly one World, mirroring the world's
// single-tick-goroutine ownership.
type Builder struct {
	lastSent map[string]*lastSentPlayer
	sequence uint64
}

// NewBuilder creates a Builder for one world.
func NewBuilder() *Builder {
	return &Builder{lastSent: make(map[string]*lastSentPlayer)}
}

// Build reads w's current state (via its exported accessors) and produces
// the next Snapshot, draining w's accumulated combat/loot events and mob
// dirty flags in the process.
func (b *Builder) Build(w *world.World) Snapshot {
	b.sequence++

	snap := Snapshot{
		Sequence:          b.sequence,
		Timestamp:         time.Now(),
		AcknowledgedInput: make(map[string]uint32),
	}

	w.Mu.RLock()
	snap.Essential = protocol.WorldStateEssentialPayload{
		TickNum:        w.TickNum,
		PlayerCount:    len(w.Players),
		RoomsCompleted: countCompletedRooms(w),
		RoomsTotal:     len(w.Rooms),
		WorldCompleted: w.Completed,
		WinningTeamID:  w.WinningTeam,
	}

	for id, p := range w.Players {
		if delta, ok := b.playerDelta(id, p); ok {
			snap.PlayerStates.Players = append(snap.PlayerStates.Players, delta)
		}
		if p.InputBuf != nil {
			if seq, ok := p.InputBuf.LastAcknowledged(); ok {
				snap.AcknowledgedInput[id] = seq
			}
		}
	}

	for _, m := range w.Mobs {
		if !m.Dirty {
			continue
		}
		snap.MobUpdates.Mobs = append(snap.MobUpdates.Mobs, protocol.MobStateDelta{
			MobID: m.ID, X: m.Position.X, Y: m.Position.Y,
			Health: m.Health, State: int(m.State), IsBoss: m.IsBoss,
		})
	}
	w.Mu.RUnlock()

	clearMobDirtyFlags(w)

	combat, loot := w.DrainEvents()
	for _, c := range combat {
		snap.CombatEvents.Events = append(snap.CombatEvents.Events, protocol.CombatEventWire{
			Type: c.Type, AttackerID: c.AttackerID, VictimID: c.VictimID,
			Damage: c.Damage, Crit: c.Crit, Ability: c.Ability,
		})
	}
	for _, l := range loot {
		snap.LootEvents.Events = append(snap.LootEvents.Events, protocol.LootEventWire{
			Type: l.Type, LootID: l.LootID, PlayerID: l.PlayerID, RoomID: l.RoomID,
		})
	}

	return snap
}

func countCompletedRooms(w *world.World) int {
	n := 0
	for _, r := range w.Rooms {
		if r.Completed {
			n++
		}
	}
	return n
}

// clearMobDirtyFlags is a second short lock pass separate from the read pass
// above, since clearing is a write and readers elsewhere (admin HTTP) only
// ever take RLock.
func clearMobDirtyFlags(w *world.World) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	for _, m := range w.Mobs {
		m.Dirty = false
	}
}

func (b *Builder) playerDelta(id string, p *world.Player) (protocol.PlayerStateDelta, bool) {
	last, ok := b.lastSent[id]
	if !ok {
		last = &lastSentPlayer{}
		b.lastSent[id] = last
	}

	moved := !last.haveSent ||
		absf(p.Position.X-last.x) >= positionDeltaThreshold ||
		absf(p.Position.Y-last.y) >= positionDeltaThreshold ||
		absf(p.Velocity.X-last.vx) >= velocityDeltaThreshold ||
		absf(p.Velocity.Y-last.vy) >= velocityDeltaThreshold ||
		aimChanged(last.aimX, last.aimY, p.Aim.X, p.Aim.Y) ||
		p.Health != last.health

	last.x, last.y = p.Position.X, p.Position.Y
	last.vx, last.vy = p.Velocity.X, p.Velocity.Y
	last.aimX, last.aimY = p.Aim.X, p.Aim.Y
	last.health = p.Health
	last.haveSent = true

	if !moved {
		return protocol.PlayerStateDelta{}, false
	}

	delta := protocol.PlayerStateDelta{
		PlayerID: id, X: p.Position.X, Y: p.Position.Y,
		AimX: p.Aim.X, AimY: p.Aim.Y,
		Health: p.Health, Shield: p.Shield, Alive: p.Alive,
	}
	now := time.Now()
	for _, s := range p.Status {
		if s.Expired(now) {
			continue
		}
		delta.Status = append(delta.Status, protocol.StatusSnapshot{
			Type:        string(s.Type),
			ExpiresInMs: s.ExpiresAt.Sub(now).Milliseconds(),
		})
	}
	return delta, true
}

func aimChanged(ox, oy, nx, ny float64) bool {
	dot := ox*nx + oy*ny
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	// Treat a zero previous aim as always changed so the first broadcast
	// after spawn always includes facing.
	if ox == 0 && oy == 0 {
		return nx != 0 || ny != 0
	}
	return angleBetween(dot) >= directionDeltaThreshold
}

func angleBetween(cosTheta float64) float64 {
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	return math.Acos(cosTheta)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Pool holds the three most recent Snapshots for one world, atomically
// swapped so a single writer (the tick+build pipeline) and many readers
// (the transport fan-out) never contend for a lock. The shape mirrors a
// lock-free producer/consumer ring of size three: write, publish, read.
type Pool struct {
	slots    [3]Snapshot
	writeIdx uint32
	readIdx  uint32
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Publish stores snap in the next write slot and atomically makes it the
// current read slot.
func (p *Pool) Publish(snap Snapshot) {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	p.slots[idx] = snap
	atomic.StoreUint32(&p.readIdx, idx)
}

// Latest returns the most recently published Snapshot.
func (p *Pool) Latest() Snapshot {
	return p.slots[atomic.LoadUint32(&p.readIdx)%3]
}
