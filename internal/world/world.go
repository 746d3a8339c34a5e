package world

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	mrand "math/rand"
	"sync"
	"time"

	"arenaserver/internal/config"
	"arenaserver/internal/eventlog"
	"arenaserver/internal/spatial"
)

// Config bundles the sub-config trees a World needs out of the full server
// Config tree, so this package only depends on the sections it uses.
type Config struct {
	HalfExtent float64
	Movement   config.MovementConfig
	Combat     config.CombatConfig
	AI         config.AIConfig
	Loot       config.LootConfig
	WorldGen   config.WorldGenConfig
}

// World owns one authoritative simulation instance: players, mobs, loot,
// rooms, and extraction points. All mutation happens from the single
// goroutine running Advance for the current tick (SPEC_FULL §5); Mu guards
// the rarer concurrent read from the admin HTTP surface.
type World struct {
	Mu sync.RWMutex

	ID          string
	cfg         Config
	CreatedAt   time.Time
	Completed   bool
	WinningTeam string

	Rooms      map[string]*Room
	Extraction map[string]*ExtractionPoint
	Mobs       map[string]*Mob
	Loot       map[string]*LootItem
	Players    map[string]*Player

	grid       *spatial.Grid
	flowFields *spatial.FlowFieldManager
	sap        *spatial.SweepAndPrune

	// playerSlice/mobSlice are rebuilt each tick so Grid's uint32 entity IDs
	// (slice indices) can be mapped back to the owning Player/Mob.
	playerSlice []*Player
	mobSlice    []*Mob

	rng *mrand.Rand

	TickNum uint64

	CombatEvents []CombatEvent
	LootEvents   []LootEvent

	// CompletedExtractions accumulates players who finished channeling this
	// tick; WorldManager drains it to hand the player off out of the world.
	// The Players map entry itself isn't deleted until the start of the next
	// tick (pendingRemovals), so mid-tick removal is never observable within
	// the same tick it happens.
	CompletedExtractions []ExtractionResult
	pendingRemovals       []string

	actionMu sync.Mutex
	actions  []pendingAction

	log *eventlog.Log

	mobGroups map[string]*mobGroup

	nextDynamicSpawnAt time.Time
	nextLootRespawnAt  time.Time
}

// New creates an empty World ready for world-gen. id should be produced by
// the caller (WorldManager); this package doesn't mint world IDs itself.
func New(id string, cfg Config, log *eventlog.Log) *World {
	seed := time.Now().UnixNano()
	w := &World{
		ID:         id,
		cfg:        cfg,
		CreatedAt:  time.Now(),
		Rooms:      make(map[string]*Room),
		Extraction: make(map[string]*ExtractionPoint),
		Mobs:       make(map[string]*Mob),
		Loot:       make(map[string]*LootItem),
		Players:    make(map[string]*Player),
		mobGroups:  make(map[string]*mobGroup),
		grid:       spatial.NewGrid(cfg.HalfExtent, 32, 256),
		flowFields: spatial.NewFlowFieldManager(cfg.HalfExtent*2, cfg.HalfExtent*2, 4),
		sap:        spatial.NewSweepAndPrune(256),
		rng:        mrand.New(mrand.NewSource(seed)),
		log:        log,
	}
	now := time.Now()
	w.nextDynamicSpawnAt = now.Add(time.Duration(cfg.AI.DynamicSpawnInterval) * time.Second)
	w.nextLootRespawnAt = now.Add(time.Duration(cfg.Loot.RespawnIntervalS) * time.Second)
	return w
}

// NewID generates an opaque world identifier.
func NewID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "world_" + hex.EncodeToString(b)
}

// Advance runs exactly one simulation tick: drain-already-buffered player
// inputs, then Movement -> Collision -> AI -> Combat -> Status -> Loot ->
// Extraction -> Win check, in that fixed order (SPEC_FULL §5). Per-input and
// per-subsystem failures are recovered at this boundary so one world's bug
// never takes down the others (SPEC_FULL §4.13).
func (w *World) Advance(dt float64) (err error) {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🛡️ world %s: tick panic recovered: %v", w.ID, r)
			err = fmt.Errorf("world %s: tick panic: %v", w.ID, r)
		}
	}()

	w.flushRemovals()

	w.TickNum++
	now := time.Now()

	w.applyInputs(now)
	w.applyActions(now)

	w.runMovement(dt, now)
	w.runCollision()
	w.runMobAI(dt, now)
	w.runStatusEffects(dt, now)
	w.runLoot(dt, now)
	w.runExtraction(dt, now)
	w.checkWinConditions(now)

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeTick, w.ID, w.TickNum, "", eventlog.TickPayload{
			PlayerCount: len(w.Players),
			DeltaTimeNs: int64(dt * 1e9),
		})
	}

	return nil
}

// applyActions drains and applies queued loot/use-item/extraction requests.
func (w *World) applyActions(now time.Time) {
	for _, a := range w.drainActions() {
		player, ok := w.Players[a.playerID]
		if !ok || !player.Alive {
			continue
		}
		switch a.kind {
		case ActionLootGrab:
			_, err := w.grabLoot(player, a.targetID, now)
			if err != nil {
				log.Printf("📦 loot grab rejected for %s: %v", player.Name, err)
			}
		case ActionUseItem:
			if err := w.useItem(player, a.targetID, now); err != nil {
				log.Printf("📦 item use rejected for %s: %v", player.Name, err)
			}
		case ActionExtractionStart:
			if err := w.startExtraction(player, a.extractionID, now); err != nil {
				log.Printf("🚪 extraction start rejected for %s: %v", player.Name, err)
			}
		case ActionExtractionCancel:
			w.cancelExtraction(player, a.extractionID)
		}
	}
}

// RoomContaining returns the room whose bounds contain pos, or nil if none
// (rooms tile the plane with spacing, so gaps between rooms are possible).
func (w *World) RoomContaining(pos Vec2) *Room {
	for _, r := range w.Rooms {
		half := r.Size / 2
		if math.Abs(pos.X-r.Center.X) <= half && math.Abs(pos.Y-r.Center.Y) <= half {
			return r
		}
	}
	return nil
}

// LivePlayersInRoom returns alive players currently in roomID.
func (w *World) LivePlayersInRoom(roomID string) []*Player {
	var out []*Player
	for _, p := range w.Players {
		if p.Alive && p.CurrentRoomID == roomID {
			out = append(out, p)
		}
	}
	return out
}

// LiveMobsInRoom returns live mobs currently in roomID.
func (w *World) LiveMobsInRoom(roomID string) []*Mob {
	var out []*Mob
	for _, m := range w.Mobs {
		if m.State != MobDead && m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out
}

// IsEmpty reports whether the world has no remaining players, the signal
// the WorldManager uses to tear it down.
func (w *World) IsEmpty() bool {
	w.Mu.RLock()
	defer w.Mu.RUnlock()
	return len(w.Players) == 0
}

// DrainEvents returns and clears the combat/loot events accumulated since
// the last drain, for the Snapshot Builder to fold into the next broadcast.
func (w *World) DrainEvents() ([]CombatEvent, []LootEvent) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	c := w.CombatEvents
	l := w.LootEvents
	w.CombatEvents = nil
	w.LootEvents = nil
	return c, l
}

// DrainCompletedExtractions returns and clears players who finished
// extracting since the last drain, for WorldManager to hand off.
func (w *World) DrainCompletedExtractions() []ExtractionResult {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	r := w.CompletedExtractions
	w.CompletedExtractions = nil
	return r
}

// PlayerCount returns the current player count for admin/metrics use.
func (w *World) PlayerCount() int {
	w.Mu.RLock()
	defer w.Mu.RUnlock()
	return len(w.Players)
}
