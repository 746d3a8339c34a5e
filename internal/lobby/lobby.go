// Package lobby holds players waiting for a world to start, tracking team
// balance and the three readiness conditions that trigger handoff to world
// creation (SPEC_FULL §4.10).
package lobby

import (
	"fmt"
	"sync"
	"time"

	"arenaserver/internal/config"
	"arenaserver/internal/eventlog"
	"arenaserver/internal/world"
)

// Player is one lobby member awaiting world assignment.
type Player struct {
	ID     string
	Name   string
	TeamID string
	Class  world.Class
}

// Status is a Lobby's lifecycle state, surfaced to clients via
// protocol.LobbyUpdatePayload.Status.
type Status string

const (
	StatusOpen      Status = "open"
	StatusStarting  Status = "starting"
	StatusErrored   Status = "error"
	StatusAbandoned Status = "abandoned"
)

// abandonGraceSeconds is how long an empty lobby survives before the
// readiness sweep destroys it, giving the last player's disconnect a moment
// to resolve as a reconnect rather than an abandonment.
const abandonGraceSeconds = 10

// Lobby is one pending match: a growing player roster plus the timers that
// decide when it's ready to become a World.
type Lobby struct {
	ID      string
	Players map[string]*Player

	cfg config.LobbyConfig

	CreatedAt  time.Time
	LastJoinAt time.Time

	Status Status
	Error  string
}

// readyReason names which of the three OR'd conditions fired, for logging.
type readyReason string

const (
	reasonCapacityAndTeams readyReason = "capacity_and_teams_after_wait"
	reasonFull             readyReason = "full"
	reasonAbsoluteMaxWait  readyReason = "absolute_max_wait"
)

func newLobby(id string, cfg config.LobbyConfig) *Lobby {
	now := time.Now()
	return &Lobby{
		ID:         id,
		Players:    make(map[string]*Player),
		cfg:        cfg,
		CreatedAt:  now,
		LastJoinAt: now,
		Status:     StatusOpen,
	}
}

// teamCounts tallies players per team, used both for the readiness check and
// for LobbyUpdatePayload.
func (l *Lobby) teamCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range l.Players {
		counts[p.TeamID]++
	}
	return counts
}

// checkReady evaluates the three OR'd readiness conditions from SPEC_FULL
// §4.10: (a) at minimum capacity and team count, and the soft wait timer has
// elapsed; (b) the lobby reached its hard player cap; (c) the absolute max
// wait elapsed regardless of capacity, so a lobby with only one team never
// waits forever. Returns the fired reason, or "" if not ready.
func (l *Lobby) checkReady(now time.Time) readyReason {
	n := len(l.Players)
	if n == 0 {
		return ""
	}
	teams := len(l.teamCounts())
	sinceLastJoin := now.Sub(l.LastJoinAt).Seconds()
	sinceCreated := now.Sub(l.CreatedAt).Seconds()

	if n >= l.cfg.MaxPlayersPerWorld {
		return reasonFull
	}
	if n >= l.cfg.MinPlayersToStart && teams >= l.cfg.MinTeamsToStart && sinceLastJoin >= l.cfg.MaxWaitSeconds {
		return reasonCapacityAndTeams
	}
	if sinceCreated >= l.cfg.AbsoluteMaxWaitSecs {
		return reasonAbsoluteMaxWait
	}
	return ""
}

// ReadyCallback is invoked once, exactly when a Lobby transitions to
// StatusStarting, with the lobby that just readied.
type ReadyCallback func(l *Lobby)

// Manager owns every pending Lobby and runs the background readiness sweep
// that fires ReadyCallback and destroys abandoned lobbies.
type Manager struct {
	mu          sync.Mutex
	lobbies     map[string]*Lobby
	cfg         config.LobbyConfig
	maxTeamSize int
	onReady     ReadyCallback
	log         *eventlog.Log

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts its background sweep loop, which
// runs every 500ms — frequent enough that a lobby reaching MaxWaitSeconds
// doesn't sit idle for long, cheap enough to not matter at any reasonable
// lobby count. maxTeamSize bounds how many players FindOrCreateLobby will
// pack onto one team within a single lobby (SPEC_FULL §4.10).
func NewManager(cfg config.LobbyConfig, maxTeamSize int, log *eventlog.Log, onReady ReadyCallback) *Manager {
	m := &Manager{
		lobbies:     make(map[string]*Lobby),
		cfg:         cfg,
		maxTeamSize: maxTeamSize,
		onReady:     onReady,
		log:         log,
		stopChan:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var ready []*Lobby
	var abandoned []string
	for id, l := range m.lobbies {
		if l.Status != StatusOpen {
			continue
		}
		if len(l.Players) == 0 {
			if now.Sub(l.LastJoinAt).Seconds() >= abandonGraceSeconds {
				l.Status = StatusAbandoned
				abandoned = append(abandoned, id)
			}
			continue
		}
		if reason := l.checkReady(now); reason != "" {
			l.Status = StatusStarting
			ready = append(ready, l)
			_ = reason
		}
	}
	for _, id := range abandoned {
		delete(m.lobbies, id)
	}
	m.mu.Unlock()

	for _, l := range ready {
		if m.log != nil {
			m.log.EmitSimple(eventlog.EventTypeLobbyReady, "", 0, "", eventlog.LobbyReadyPayload{
				LobbyID: l.ID, PlayerCount: len(l.Players),
			})
		}
		if m.onReady != nil {
			m.onReady(l)
		}
		m.mu.Lock()
		delete(m.lobbies, l.ID)
		m.mu.Unlock()
	}
}

// FindOrCreateLobby returns an open lobby with room for one more player on
// teamID — one where the overall roster is under MaxPlayersPerWorld and
// teamID itself has fewer than maxTeamSize members — creating a fresh one if
// none qualifies (SPEC_FULL §4.10).
func (m *Manager) FindOrCreateLobby(teamID string) *Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.lobbies {
		if l.Status != StatusOpen || len(l.Players) >= l.cfg.MaxPlayersPerWorld {
			continue
		}
		if m.maxTeamSize > 0 && l.teamCounts()[teamID] >= m.maxTeamSize {
			continue
		}
		return l
	}

	id := fmt.Sprintf("lobby_%d", time.Now().UnixNano())
	l := newLobby(id, m.cfg)
	m.lobbies[id] = l
	return l
}

// Join adds a player to lobby l, auto-assigning the least-populated team
// when teamID is empty and auto-balance is enabled.
func (m *Manager) Join(l *Lobby, p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.TeamID == "" && m.cfg.AutoBalanceTeams {
		p.TeamID = leastPopulatedTeam(l.teamCounts())
	}
	l.Players[p.ID] = p
	l.LastJoinAt = time.Now()
}

// leastPopulatedTeam picks from a small fixed pool of team slots so solo
// joiners fan out across "red"/"blue" rather than all landing on one team.
func leastPopulatedTeam(counts map[string]int) string {
	candidates := []string{"team_red", "team_blue"}
	best := candidates[0]
	bestCount := counts[best]
	for _, c := range candidates[1:] {
		if counts[c] < bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// Leave removes a player from a lobby, returning true if the lobby still
// exists afterward (it's left for the sweep loop to reap once truly empty).
func (m *Manager) Leave(l *Lobby, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(l.Players, playerID)
	if len(l.Players) == 0 {
		l.LastJoinAt = time.Now()
	}
}

// MarkErrored transitions a lobby to the error state, e.g. when world
// creation fails after readiness fired.
func (m *Manager) MarkErrored(l *Lobby, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.Status = StatusErrored
	l.Error = reason
}

// Count returns the number of pending lobbies, for admin/metrics use.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lobbies)
}

// Stop halts the background sweep loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}
