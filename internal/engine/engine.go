// Package engine owns the top-level tick scheduler that drives every live
// World at a fixed rate, and the client message dispatch that turns decoded
// protocol envelopes into world mutations (SPEC_FULL §5, §6).
package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"arenaserver/internal/collections"
	"arenaserver/internal/config"
	"arenaserver/internal/eventlog"
	"arenaserver/internal/input"
	"arenaserver/internal/lobby"
	"arenaserver/internal/protocol"
	"arenaserver/internal/session"
	"arenaserver/internal/snapshot"
	"arenaserver/internal/world"
	"arenaserver/internal/worldmgr"
)

// Sender is the narrow outbound half of the transport collaborator
// (SPEC_FULL §1): the engine calls it to push a message to one player. The
// concrete implementation (UDP socket, WebSocket connection, ...) lives
// outside this package.
type Sender interface {
	Send(playerID string, env protocol.Envelope) error
}

// SpectatorSink receives the full (non-delta) snapshot for a world every
// tick, independent of the per-player authoritative Sender path. Wired to
// the admin surface's read-only spectator broadcast.
type SpectatorSink interface {
	Broadcast(worldID string, snap snapshot.Snapshot)
}

// maxStalenessMultiple bounds how many missed heartbeats a connection
// tolerates before the engine treats it as a silent disconnect and starts
// the reconnection grace period on its behalf.
const maxStalenessMultiple = 3

// connState tracks one logical player across the lobby and in-world phases,
// independent of which physical connection (UDP address, WebSocket) it
// currently rides on.
type connState struct {
	playerID string
	name     string
	worldID  string // "" while still in a lobby
	lobby    *lobby.Lobby
	lastSeen time.Time
}

// Engine ties together the lobby, world, session, and event-log subsystems
// behind a single fixed-rate tick loop and a client-message dispatcher.
type Engine struct {
	cfg config.Config

	worlds   *worldmgr.Manager
	lobbies  *lobby.Manager
	sessions *session.Manager
	log      *eventlog.Log
	chat     *input.ChatLimiter

	sender    Sender
	spectator SpectatorSink

	mu    sync.RWMutex
	conns map[string]*connState // playerID -> conn
	names map[string]bool       // live player names, held while connected or in-world

	snapMu   sync.Mutex
	builders map[string]*snapshot.Builder
	pools    map[string]*snapshot.Pool

	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	running  bool

	tickCount uint64
	workers   int
}

// New constructs an Engine. The lobby Manager's ready callback is wired here
// so a lobby reaching readiness hands off directly into world creation.
func New(cfg config.Config, log *eventlog.Log) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      log,
		chat:     input.NewChatLimiter(input.DefaultChatLimitConfig),
		conns:    make(map[string]*connState),
		names:    make(map[string]bool),
		builders: make(map[string]*snapshot.Builder),
		pools:    make(map[string]*snapshot.Pool),
		stopChan: make(chan struct{}),
		workers:  max(1, runtime.NumCPU()-1),
	}

	worldCfg := world.Config{
		HalfExtent: cfg.Engine.WorldHalfExtent,
		Movement:   cfg.Movement,
		Combat:     cfg.Combat,
		AI:         cfg.AI,
		Loot:       cfg.Loot,
		WorldGen:   cfg.WorldGen,
	}
	e.worlds = worldmgr.New(worldCfg, cfg.WorldGen, log)
	e.lobbies = lobby.NewManager(cfg.Lobby, cfg.Combat.MaxTeamSize, log, e.onLobbyReady)
	e.sessions = session.NewManager(cfg.Session.HMACSecret, time.Duration(cfg.Session.TokenTTLSeconds)*time.Second,
		func(snap *session.Snapshot) { e.releaseName(snap.Name) })

	return e
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetSender wires the outbound transport collaborator. Must be called
// before Start.
func (e *Engine) SetSender(s Sender) { e.sender = s }

// SetSpectatorSink wires the read-only spectator broadcast collaborator.
// Optional: if unset, snapshots are built and published but never fanned
// out to spectators.
func (e *Engine) SetSpectatorSink(s SpectatorSink) { e.spectator = s }

// Start begins the fixed-rate tick loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	rate := time.Second / time.Duration(e.cfg.Engine.TargetFPS)
	e.ticker = time.NewTicker(rate)

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("engine: started at %d ticks/sec across %d workers", e.cfg.Engine.TargetFPS, e.workers)
}

// Stop halts the tick loop and every owned background subsystem.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stopChan) })
	if e.ticker != nil {
		e.ticker.Stop()
	}
	e.lobbies.Stop()
	e.sessions.Stop()
	e.chat.Stop()
}

// tick advances every live world once, dispatched across a bounded worker
// pool so a large world count doesn't serialize behind a single goroutine,
// then builds and publishes each world's snapshot and flushes it to every
// connected player in that world.
func (e *Engine) tick() {
	e.tickCount++
	dt := 1.0 / float64(e.cfg.Engine.TargetFPS)

	worlds := e.worlds.GetAllWorlds()

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, w := range worlds {
		wg.Add(1)
		sem <- struct{}{}
		go func(w *world.World) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.Advance(dt); err != nil {
				log.Printf("engine: %v", err)
			}
		}(w)
	}
	wg.Wait()

	for _, w := range worlds {
		e.publishSnapshot(w)
	}

	if removed := e.worlds.SweepEmptyWorlds(); len(removed) > 0 {
		e.mu.Lock()
		for id, c := range e.conns {
			for _, rid := range removed {
				if c.worldID == rid {
					delete(e.conns, id)
				}
			}
		}
		e.mu.Unlock()
	}

	if e.cfg.Engine.MaintenanceEvery > 0 && int(e.tickCount)%(e.cfg.Engine.MaintenanceEvery*e.cfg.Engine.TargetFPS) == 0 {
		e.runMaintenance()
	}
}

func (e *Engine) runMaintenance() {
	log.Printf("engine: maintenance pass — worlds=%d conns=%d", e.worlds.Count(), e.connCount())
}

func (e *Engine) connCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.conns)
}

func (e *Engine) builderFor(worldID string) (*snapshot.Builder, *snapshot.Pool) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	b, ok := e.builders[worldID]
	if !ok {
		b = snapshot.NewBuilder()
		e.builders[worldID] = b
	}
	p, ok := e.pools[worldID]
	if !ok {
		p = snapshot.NewPool()
		e.pools[worldID] = p
	}
	return b, p
}

func (e *Engine) publishSnapshot(w *world.World) {
	builder, pool := e.builderFor(w.ID)
	snap := builder.Build(w)
	pool.Publish(snap)

	if e.spectator != nil {
		e.spectator.Broadcast(w.ID, snap)
	}

	if e.sender == nil {
		return
	}

	recipients := e.recipientsFor(w.ID)
	for _, playerID := range recipients {
		essential := snap.Essential
		essential.AcknowledgedSeq = snap.AcknowledgedInput[playerID]
		e.sendJSON(playerID, protocol.TypeWorldStateEssential, essential)
		if len(snap.PlayerStates.Players) > 0 {
			e.sendJSON(playerID, protocol.TypePlayerStatesBatch, snap.PlayerStates)
		}
		if len(snap.MobUpdates.Mobs) > 0 {
			e.sendJSON(playerID, protocol.TypeMobUpdatesChunk, snap.MobUpdates)
		}
		if len(snap.CombatEvents.Events) > 0 {
			e.sendJSON(playerID, protocol.TypeCombatEvents, snap.CombatEvents)
		}
		if len(snap.LootEvents.Events) > 0 {
			e.sendJSON(playerID, protocol.TypeLootUpdates, snap.LootEvents)
		}
	}
}

func (e *Engine) recipientsFor(worldID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for id, c := range e.conns {
		if c.worldID == worldID {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) sendJSON(playerID string, t protocol.MessageType, payload interface{}) {
	data := eventlog.EncodePayload(payload)
	if data == nil {
		return
	}
	if err := e.sender.Send(playerID, protocol.Envelope{Type: t, PlayerID: playerID, Data: data, Timestamp: time.Now()}); err != nil {
		log.Printf("engine: send to %s failed: %v", playerID, err)
	}
}

func newPlayerID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "p_" + hex.EncodeToString(b)
}

// onLobbyReady is the lobby Manager's readiness callback: it creates the
// world, registers every lobby member's connection against it, and
// announces game_started to each.
func (e *Engine) onLobbyReady(l *lobby.Lobby) {
	w, players, err := e.worlds.CreateWorldFromLobby(l)
	if err != nil {
		e.lobbies.MarkErrored(l, err.Error())
		return
	}

	e.mu.Lock()
	for id := range players {
		if c, ok := e.conns[id]; ok {
			c.worldID = w.ID
			c.lobby = nil
		}
	}
	e.mu.Unlock()

	if e.sender == nil {
		return
	}
	for id, p := range players {
		e.sendJSON(id, protocol.TypeGameStarted, protocol.GameStartedPayload{
			WorldID: w.ID, SpawnX: p.Position.X, SpawnY: p.Position.Y,
		})
	}
}

// --- client message handlers, one per protocol.MessageType ---

// HandleConnect processes a TypeConnect envelope: validates the requested
// name/class, places the new player in an open lobby, and returns the
// TypeConnected reply.
func (e *Engine) HandleConnect(payload protocol.ConnectPayload) (protocol.ConnectedPayload, *protocol.GameError) {
	if len(payload.PlayerName) < 3 || len(payload.PlayerName) > 20 {
		return protocol.ConnectedPayload{}, protocol.NewGameError(protocol.ErrInvalidName, "name must be 3-20 characters")
	}
	class := world.Class(payload.PlayerClass)
	switch class {
	case world.ClassScout, world.ClassTank, world.ClassSupport:
	default:
		return protocol.ConnectedPayload{}, protocol.NewGameError(protocol.ErrInvalidClass, "unknown class")
	}
	if !strings.HasPrefix(payload.TeamID, "team") {
		return protocol.ConnectedPayload{}, protocol.NewGameError(protocol.ErrInvalidTeam, "team_id must start with \"team\"")
	}

	e.mu.Lock()
	if e.names[payload.PlayerName] {
		e.mu.Unlock()
		return protocol.ConnectedPayload{}, protocol.NewGameError(protocol.ErrNameInUse, "name already in use")
	}
	e.names[payload.PlayerName] = true
	e.mu.Unlock()

	playerID := newPlayerID()
	l := e.lobbies.FindOrCreateLobby(payload.TeamID)
	e.lobbies.Join(l, &lobby.Player{ID: playerID, Name: payload.PlayerName, TeamID: payload.TeamID, Class: class})

	e.mu.Lock()
	e.conns[playerID] = &connState{playerID: playerID, name: payload.PlayerName, lobby: l, lastSeen: time.Now()}
	e.mu.Unlock()

	if e.log != nil {
		e.log.EmitSimple(eventlog.EventTypePlayerJoin, "", 0, playerID, eventlog.PlayerJoinPayload{
			PlayerID: playerID, PlayerName: payload.PlayerName, TeamID: payload.TeamID,
		})
	}

	return protocol.ConnectedPayload{PlayerID: playerID, LobbyID: l.ID}, nil
}

// HandleReconnect resolves a session token back to a live world player and
// reattaches this connection's playerID to it.
func (e *Engine) HandleReconnect(payload protocol.ReconnectPayload) protocol.ReconnectResponsePayload {
	snap, err := e.sessions.Validate(payload.SessionToken)
	if err != nil {
		return protocol.ReconnectResponsePayload{Success: false, Error: string(protocol.ErrSessionExpired)}
	}
	if snap.Name != payload.PlayerName {
		return protocol.ReconnectResponsePayload{Success: false, Error: string(protocol.ErrNameMismatch)}
	}

	w, ok := e.worlds.GetWorld(snap.WorldID)
	if !ok {
		return protocol.ReconnectResponsePayload{Success: false, Error: string(protocol.ErrWorldGone)}
	}

	buf := input.NewBuffer()
	p, hydrateErr := world.Hydrate(snap.State, buf)
	if hydrateErr != nil {
		return protocol.ReconnectResponsePayload{Success: false, Error: string(protocol.ErrInternal)}
	}
	w.AddPlayer(p)
	e.worlds.RegisterReconnectedPlayer(w.ID, p.ID)

	e.mu.Lock()
	e.conns[p.ID] = &connState{playerID: p.ID, name: p.Name, worldID: w.ID, lastSeen: time.Now()}
	e.mu.Unlock()

	if e.log != nil {
		e.log.EmitSimple(eventlog.EventTypePlayerJoin, w.ID, w.TickNum, p.ID, eventlog.PlayerJoinPayload{
			PlayerID: p.ID, PlayerName: p.Name, TeamID: p.TeamID,
		})
	}

	return protocol.ReconnectResponsePayload{Success: true, PlayerID: p.ID, WorldID: w.ID}
}

// HandleHeartbeat refreshes a connection's liveness timestamp.
func (e *Engine) HandleHeartbeat(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[playerID]; ok {
		c.lastSeen = time.Now()
	}
}

// HandlePing answers a client liveness probe; it never touches world state.
func (e *Engine) HandlePing(payload protocol.PingPayload) protocol.PongPayload {
	return protocol.PongPayload{ClientData: payload.ClientData, ServerTime: time.Now().UnixMilli()}
}

// HandlePlayerInput pushes a decoded input frame into the owning player's
// reorder buffer for the next tick to apply.
func (e *Engine) HandlePlayerInput(playerID string, payload protocol.PlayerInputPayload) *protocol.GameError {
	p, _, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "player not in a world")
	}
	p.InputBuf.Push(input.Frame{
		Sequence: payload.Sequence, MoveX: payload.MoveX, MoveY: payload.MoveY,
		AimX: payload.AimX, AimY: payload.AimY,
		IsAttacking: payload.IsAttacking, IsSprinting: payload.IsSprinting,
		AbilityType: payload.AbilityType,
	})
	return nil
}

// HandleLootGrab queues a loot-pickup request for the next tick.
func (e *Engine) HandleLootGrab(playerID string, payload protocol.LootGrabPayload) *protocol.GameError {
	_, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "player not in a world")
	}
	w.EnqueueLootGrab(playerID, payload.LootID)
	return nil
}

// HandleUseItem queues an item-use request for the next tick.
func (e *Engine) HandleUseItem(playerID string, payload protocol.UseItemPayload) *protocol.GameError {
	_, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "player not in a world")
	}
	w.EnqueueUseItem(playerID, payload.ItemID)
	return nil
}

// HandleExtraction queues an extraction start/cancel request for the next
// tick.
func (e *Engine) HandleExtraction(playerID string, payload protocol.ExtractionPayload) *protocol.GameError {
	_, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "player not in a world")
	}
	w.EnqueueExtraction(playerID, payload.ExtractionID, payload.Action == protocol.ExtractionCancel)
	return nil
}

// HandleChat rate-limits and fans a chat message out to its audience.
func (e *Engine) HandleChat(playerID string, payload protocol.ChatPayload) *protocol.GameError {
	if !e.chat.Allow(playerID) {
		return protocol.NewGameError(protocol.ErrRateLimited, "chat rate limit exceeded")
	}
	p, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "player not in a world")
	}

	msg := protocol.ChatReceivedPayload{FromPlayerID: playerID, Message: payload.Message, ChatType: payload.ChatType}
	if e.sender == nil {
		return nil
	}
	for id, recipient := range e.worldPlayers(w) {
		if payload.ChatType == protocol.ChatTeam && recipient.TeamID != p.TeamID {
			continue
		}
		e.sendJSON(id, protocol.TypeChatReceived, msg)
	}
	return nil
}

func (e *Engine) worldPlayers(w *world.World) map[string]*world.Player {
	w.Mu.RLock()
	defer w.Mu.RUnlock()
	out := make(map[string]*world.Player, len(w.Players))
	for id, p := range w.Players {
		out[id] = p
	}
	return out
}

// HandleMessageAck is a no-op acknowledgement receipt; logged for now since
// nothing downstream currently depends on client-side delivery confirmation.
func (e *Engine) HandleMessageAck(playerID string, payload protocol.MessageAckPayload) {}

// HandleDisconnect handles an abrupt disconnect (staleness sweep, transport
// error toward a peer): an in-world player is frozen into a reconnection
// session so they can resume within the TTL; their name stays reserved until
// the session is consumed or expires. A still-in-lobby player has no saved
// state to freeze, so they're just dropped from the lobby roster and their
// name is released immediately (SPEC_FULL §4.12 Open Question decision 6).
func (e *Engine) HandleDisconnect(playerID string) {
	e.mu.Lock()
	c, ok := e.conns[playerID]
	if ok {
		delete(e.conns, playerID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	if c.lobby != nil {
		e.lobbies.Leave(c.lobby, playerID)
		e.releaseName(c.name)
		return
	}

	p, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		e.releaseName(c.name)
		return
	}

	data, err := world.Freeze(p)
	if err == nil {
		e.sessions.Issue(session.Snapshot{
			PlayerID: p.ID, WorldID: w.ID, Name: p.Name, TeamID: p.TeamID,
			State: data,
		})
	} else {
		e.releaseName(c.name)
	}

	w.RemovePlayer(playerID)
	e.worlds.ForgetPlayer(playerID)

	if e.log != nil {
		e.log.EmitSimple(eventlog.EventTypePlayerLeave, w.ID, w.TickNum, playerID, nil)
	}
}

// HandleGracefulDisconnect handles an explicit "disconnect" message: the
// player cannot reconnect, so no session is issued and their name is
// released immediately (SPEC_FULL §7 user-visible failure behaviour).
func (e *Engine) HandleGracefulDisconnect(playerID string) {
	e.mu.Lock()
	c, ok := e.conns[playerID]
	if ok {
		delete(e.conns, playerID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	e.releaseName(c.name)

	if c.lobby != nil {
		e.lobbies.Leave(c.lobby, playerID)
		return
	}

	_, w, ok := e.worlds.FindPlayer(playerID)
	if !ok {
		return
	}
	w.RemovePlayer(playerID)
	e.worlds.ForgetPlayer(playerID)

	if e.log != nil {
		e.log.EmitSimple(eventlog.EventTypePlayerLeave, w.ID, w.TickNum, playerID, nil)
	}
}

// releaseName frees a player name for reuse once nothing (lobby, world, or
// pending session) still holds it live.
func (e *Engine) releaseName(name string) {
	e.mu.Lock()
	delete(e.names, name)
	e.mu.Unlock()
}

// StalenessSweep disconnects connections that haven't heartbeat-ed within
// SessionConfig.ClientTimeoutSecs * maxStalenessMultiple; a transport should
// call this on its own timer since only it knows whether the underlying
// socket is actually gone.
func (e *Engine) StalenessSweep() {
	cutoff := time.Duration(e.cfg.Session.ClientTimeoutSecs*maxStalenessMultiple) * time.Second
	now := time.Now()

	e.mu.RLock()
	var stale []string
	for id, c := range e.conns {
		if now.Sub(c.lastSeen) > cutoff {
			stale = append(stale, id)
		}
	}
	e.mu.RUnlock()

	for _, id := range stale {
		e.HandleDisconnect(id)
	}
}

// Stats returns a snapshot of top-level server counters for the admin
// surface (SPEC_FULL §8).
func (e *Engine) Stats() map[string]interface{} {
	return map[string]interface{}{
		"tick":    e.tickCount,
		"worlds":  e.worlds.Count(),
		"players": e.connCount(),
		"lobbies": e.lobbies.Count(),
	}
}

// LeaderboardTop delegates to the world manager's cross-world XP
// leaderboard.
func (e *Engine) LeaderboardTop(n int) []collections.SkipListEntry {
	return e.worlds.LeaderboardTop(n)
}

// String renders a short human-readable summary for log lines.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(tick=%d worlds=%d conns=%d lobbies=%d)", e.tickCount, e.worlds.Count(), e.connCount(), e.lobbies.Count())
}
