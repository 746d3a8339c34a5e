// Package worldmgr owns the set of live worlds: creation from a ready lobby,
// player and world lookup, and a cross-world XP leaderboard (SPEC_FULL
// §4.11). Exactly one Manager exists per server process.
package worldmgr

import (
	"fmt"
	"sync"
	"time"

	"arenaserver/internal/collections"
	"arenaserver/internal/config"
	"arenaserver/internal/eventlog"
	"arenaserver/internal/input"
	"arenaserver/internal/lobby"
	"arenaserver/internal/world"
)

// Manager creates, stores, and destroys worlds. Its own collections
// (worlds, playerWorld) are concurrent-access structures per SPEC_FULL §5;
// each World's interior state remains owned by its own tick goroutine.
type Manager struct {
	mu sync.RWMutex

	worlds      map[string]*world.World
	playerWorld map[string]string // playerID -> worldID

	worldCfg world.Config
	genCfg   config.WorldGenConfig

	log *eventlog.Log

	leaderboard *collections.SkipList
}

// New creates an empty Manager.
func New(worldCfg world.Config, genCfg config.WorldGenConfig, log *eventlog.Log) *Manager {
	return &Manager{
		worlds:      make(map[string]*world.World),
		playerWorld: make(map[string]string),
		worldCfg:    worldCfg,
		genCfg:      genCfg,
		log:         log,
		leaderboard: collections.NewSkipList(),
	}
}

// CreateWorldFromLobby builds a new World from a just-readied Lobby: lays
// out rooms/mobs/loot, spawns one Player per lobby member at a team corner,
// and registers the world. Returns the new world and the spawned players
// keyed by player ID so the caller (Engine) can notify each connection.
func (m *Manager) CreateWorldFromLobby(l *lobby.Lobby) (*world.World, map[string]*world.Player, error) {
	w := world.New(world.NewID(), m.worldCfg, m.log)
	now := time.Now()
	w.Generate(now)

	teamIndex := make(map[string]int)
	nextTeamIndex := 0

	players := make(map[string]*world.Player, len(l.Players))
	for _, lp := range l.Players {
		idx, ok := teamIndex[lp.TeamID]
		if !ok {
			idx = nextTeamIndex
			teamIndex[lp.TeamID] = idx
			nextTeamIndex++
		}

		p := &world.Player{
			ID:        lp.ID,
			Name:      lp.Name,
			TeamID:    lp.TeamID,
			Class:     lp.Class,
			Position:  w.SpawnPositionForTeam(idx),
			Health:    baseHealthFor(lp.Class),
			MaxHealth: baseHealthFor(lp.Class),
			Mana:      baseManaFor(lp.Class),
			MaxMana:   baseManaFor(lp.Class),
			MaxShield: baseShieldFor(lp.Class),
			Strength:  baseStrengthFor(lp.Class),
			Armor:     baseArmorFor(lp.Class),
			Level:     1,
			Alive:     true,
			Cooldowns: make(map[world.AbilityType]time.Time),

			LastActivity: now,
			InputBuf:     input.NewBuffer(),
		}
		p.CurrentRoomID = roomIDFor(w, p.Position)
		w.AddPlayer(p)
		players[p.ID] = p
		m.leaderboard.Insert(p.ID, 0)
	}

	m.mu.Lock()
	m.worlds[w.ID] = w
	for id := range players {
		m.playerWorld[id] = w.ID
	}
	m.mu.Unlock()

	if m.log != nil {
		m.log.EmitSimple(eventlog.EventTypeWorldCreated, w.ID, 0, "", eventlog.WorldCreatedPayload{
			PlayerCount: len(players),
		})
	}

	return w, players, nil
}

func roomIDFor(w *world.World, pos world.Vec2) string {
	if r := w.RoomContaining(pos); r != nil {
		return r.ID
	}
	return ""
}

// baseHealthFor/baseManaFor/baseShieldFor give every class the same combat
// base budget (SPEC_FULL's base_health config option), split across the
// resource pools its kit actually spends: tank leans on shield capacity,
// support on mana for its utility kit, scout on neither.
func baseHealthFor(c world.Class) int { return 100 }

func baseManaFor(c world.Class) float64 {
	switch c {
	case world.ClassSupport:
		return 120
	case world.ClassScout:
		return 80
	default:
		return 60
	}
}

func baseShieldFor(c world.Class) float64 {
	if c == world.ClassTank {
		return 50
	}
	return 0
}

// baseStrengthFor gives tanks the heaviest raw hit, scouts the lightest
// (their edge is crit chance and speed, not strength).
func baseStrengthFor(c world.Class) float64 {
	switch c {
	case world.ClassTank:
		return 8
	case world.ClassScout:
		return 3
	default:
		return 5
	}
}

// baseArmorFor mirrors the strength split: tanks soak the most flat damage,
// scouts rely on speed/crit rather than mitigation.
func baseArmorFor(c world.Class) float64 {
	switch c {
	case world.ClassTank:
		return 4
	case world.ClassScout:
		return 0
	default:
		return 1
	}
}

// AddPlayerToLeaderboard re-registers a reconnecting player (or one already
// tracked) at its current XP so rank queries stay live.
func (m *Manager) UpdateLeaderboard(playerID string, xp int) {
	m.leaderboard.Insert(playerID, float64(xp))
}

// RemoveFromLeaderboard drops a player's entry, e.g. after extraction.
func (m *Manager) RemoveFromLeaderboard(playerID string) {
	m.leaderboard.Remove(playerID)
}

// LeaderboardTop returns the top n players by XP, highest first.
func (m *Manager) LeaderboardTop(n int) []collections.SkipListEntry {
	total := m.leaderboard.Length()
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil
	}
	return m.leaderboard.GetRange(1, n)
}

// FindPlayer looks up a player and its owning world by player ID.
func (m *Manager) FindPlayer(playerID string) (*world.Player, *world.World, bool) {
	m.mu.RLock()
	worldID, ok := m.playerWorld[playerID]
	if !ok {
		m.mu.RUnlock()
		return nil, nil, false
	}
	w, ok := m.worlds[worldID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}

	w.Mu.RLock()
	p, ok := w.Players[playerID]
	w.Mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	return p, w, true
}

// FindWorldByPlayer returns the world a player currently belongs to.
func (m *Manager) FindWorldByPlayer(playerID string) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	worldID, ok := m.playerWorld[playerID]
	if !ok {
		return nil, false
	}
	w, ok := m.worlds[worldID]
	return w, ok
}

// GetWorld returns a world by ID.
func (m *Manager) GetWorld(worldID string) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[worldID]
	return w, ok
}

// GetAllWorlds returns a snapshot slice of every live world.
func (m *Manager) GetAllWorlds() []*world.World {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*world.World, 0, len(m.worlds))
	for _, w := range m.worlds {
		out = append(out, w)
	}
	return out
}

// RegisterReconnectedPlayer re-attaches a rehydrated player to worldID,
// updating the player->world index (SPEC_FULL §4.12).
func (m *Manager) RegisterReconnectedPlayer(worldID, playerID string) {
	m.mu.Lock()
	m.playerWorld[playerID] = worldID
	m.mu.Unlock()
}

// ForgetPlayer removes a player from the index without touching its world's
// Players map (used after graceful disconnect or after freezing into a
// session, where the world-side removal happens separately).
func (m *Manager) ForgetPlayer(playerID string) {
	m.mu.Lock()
	delete(m.playerWorld, playerID)
	m.mu.Unlock()
	m.RemoveFromLeaderboard(playerID)
}

// SweepEmptyWorlds destroys worlds with no players left, returning their
// IDs for the caller to log/notify.
func (m *Manager) SweepEmptyWorlds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for id, w := range m.worlds {
		if w.IsEmpty() {
			delete(m.worlds, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Count returns the number of live worlds, for admin/metrics use.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.worlds)
}

// String renders a short human-readable summary, e.g. for log lines.
func (m *Manager) String() string {
	return fmt.Sprintf("worldmgr(worlds=%d players=%d)", m.Count(), len(m.playerWorld))
}
