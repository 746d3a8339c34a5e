package snapshot

import (
	"testing"
	"time"

	"arenaserver/internal/config"
	"arenaserver/internal/input"
	"arenaserver/internal/world"
)

func testWorldConfig() world.Config {
	return world.Config{
		HalfExtent: 240,
		Movement:   config.MovementConfig{BaseSpeed: 5, SprintMultiplier: 1.5},
		Combat:     config.CombatConfig{AttackRange: 3.5, BaseHealth: 100, MaxInventorySize: 20},
		AI:         config.AIConfig{MaxMobsPerRoom: 6},
		Loot:       config.LootConfig{MaxPerRoom: 10},
		WorldGen:   config.WorldGenConfig{GridX: 2, GridY: 2, RoomSize: 50, RoomSpacing: 60, MobsPerRoom: 1, InitialLootCount: 2},
	}
}

func newTestWorldWithPlayer(id string) (*world.World, *world.Player) {
	w := world.New("w1", testWorldConfig(), nil)
	w.Generate(time.Now())

	p := &world.Player{ID: id, Name: id, TeamID: "team_red", Health: 100, MaxHealth: 100, Alive: true, InputBuf: input.NewBuffer()}
	w.Players[id] = p
	return w, p
}

func TestBuildIncludesPlayerOnFirstSnapshot(t *testing.T) {
	w, p := newTestWorldWithPlayer("p1")
	b := NewBuilder()

	snap := b.Build(w)

	if len(snap.PlayerStates.Players) != 1 {
		t.Fatalf("expected the first snapshot to include the player unconditionally, got %d", len(snap.PlayerStates.Players))
	}
	if snap.PlayerStates.Players[0].PlayerID != p.ID {
		t.Errorf("expected player id %q, got %q", p.ID, snap.PlayerStates.Players[0].PlayerID)
	}
}

func TestBuildOmitsUnchangedPlayerOnSubsequentSnapshot(t *testing.T) {
	w, _ := newTestWorldWithPlayer("p1")
	b := NewBuilder()
	b.Build(w)

	snap := b.Build(w)
	if len(snap.PlayerStates.Players) != 0 {
		t.Errorf("expected no player delta when nothing moved, got %d", len(snap.PlayerStates.Players))
	}
}

func TestBuildIncludesPlayerAfterPositionMovesPastThreshold(t *testing.T) {
	w, p := newTestWorldWithPlayer("p1")
	b := NewBuilder()
	b.Build(w)

	p.Position.X += positionDeltaThreshold * 10

	snap := b.Build(w)
	if len(snap.PlayerStates.Players) != 1 {
		t.Error("expected a position change past the threshold to produce a delta")
	}
}

func TestBuildIncludesPlayerOnHealthChangeEvenBelowThreshold(t *testing.T) {
	w, p := newTestWorldWithPlayer("p1")
	b := NewBuilder()
	b.Build(w)

	p.Health -= 1

	snap := b.Build(w)
	if len(snap.PlayerStates.Players) != 1 {
		t.Error("expected any health change to always be included, regardless of thresholds")
	}
}

func TestBuildIncludesOnlyDirtyMobs(t *testing.T) {
	w, _ := newTestWorldWithPlayer("p1")
	b := NewBuilder()

	var firstMobID string
	for id, m := range w.Mobs {
		firstMobID = id
		m.Dirty = true
		break
	}
	if firstMobID == "" {
		t.Skip("generated world has no mobs to assert against")
	}

	snap := b.Build(w)
	if len(snap.MobUpdates.Mobs) != 1 {
		t.Errorf("expected exactly one dirty mob in the snapshot, got %d", len(snap.MobUpdates.Mobs))
	}

	// Dirty flags are cleared after Build; a second build with no further
	// changes should carry no mob updates.
	snap2 := b.Build(w)
	if len(snap2.MobUpdates.Mobs) != 0 {
		t.Error("expected dirty flags to be cleared after Build")
	}
}

func TestBuildCarriesAcknowledgedInputSequence(t *testing.T) {
	w, p := newTestWorldWithPlayer("p1")
	p.InputBuf.Push(input.Frame{Sequence: 5})
	p.InputBuf.Take()

	b := NewBuilder()
	snap := b.Build(w)

	if snap.AcknowledgedInput[p.ID] != 5 {
		t.Errorf("expected acknowledged input 5, got %d", snap.AcknowledgedInput[p.ID])
	}
}

func TestPoolPublishAndLatest(t *testing.T) {
	pool := NewPool()
	pool.Publish(Snapshot{Sequence: 1})
	pool.Publish(Snapshot{Sequence: 2})

	if got := pool.Latest(); got.Sequence != 2 {
		t.Errorf("expected latest sequence 2, got %d", got.Sequence)
	}
}
