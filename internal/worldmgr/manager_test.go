package worldmgr

import (
	"testing"

	"arenaserver/internal/config"
	"arenaserver/internal/lobby"
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

func testGenConfig() config.WorldGenConfig {
	return testWorldConfig().WorldGen
}

func TestCreateWorldFromLobbySpawnsDistinctTeamPositions(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	l := &lobby.Lobby{Players: map[string]*lobby.Player{
		"p1": {ID: "p1", Name: "p1", TeamID: "team_red", Class: world.ClassScout},
		"p2": {ID: "p2", Name: "p2", TeamID: "team_blue", Class: world.ClassTank},
	}}

	w, players, err := m.CreateWorldFromLobby(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("expected 2 spawned players, got %d", len(players))
	}
	if players["p1"].Position == players["p2"].Position {
		t.Error("expected players on different teams to spawn at distinct positions")
	}
	if w.ID == "" {
		t.Error("expected a non-empty world ID")
	}
}

func TestFindPlayerAfterWorldCreation(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	l := &lobby.Lobby{Players: map[string]*lobby.Player{
		"p1": {ID: "p1", Name: "p1", TeamID: "team_red", Class: world.ClassScout},
	}}
	w, _, _ := m.CreateWorldFromLobby(l)

	p, foundWorld, ok := m.FindPlayer("p1")
	if !ok {
		t.Fatal("expected to find the freshly spawned player")
	}
	if p.ID != "p1" || foundWorld.ID != w.ID {
		t.Errorf("expected matching player/world, got p=%v world=%v", p.ID, foundWorld.ID)
	}
}

func TestForgetPlayerRemovesFromIndexAndLeaderboard(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	l := &lobby.Lobby{Players: map[string]*lobby.Player{
		"p1": {ID: "p1", Name: "p1", TeamID: "team_red", Class: world.ClassScout},
	}}
	m.CreateWorldFromLobby(l)

	m.ForgetPlayer("p1")

	if _, _, ok := m.FindPlayer("p1"); ok {
		t.Error("expected player to no longer be findable after ForgetPlayer")
	}
	top := m.LeaderboardTop(10)
	for _, e := range top {
		if e.Key == "p1" {
			t.Error("expected player removed from the leaderboard")
		}
	}
}

func TestSweepEmptyWorldsRemovesOnlyEmptyOnes(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	l := &lobby.Lobby{Players: map[string]*lobby.Player{
		"p1": {ID: "p1", Name: "p1", TeamID: "team_red", Class: world.ClassScout},
	}}
	w, _, _ := m.CreateWorldFromLobby(l)
	w.RemovePlayer("p1")

	removed := m.SweepEmptyWorlds()
	if len(removed) != 1 || removed[0] != w.ID {
		t.Errorf("expected the now-empty world to be swept, got %v", removed)
	}
	if _, ok := m.GetWorld(w.ID); ok {
		t.Error("expected the swept world to no longer be retrievable")
	}
}

func TestLeaderboardTopOrdersByXPDescending(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	m.UpdateLeaderboard("low", 10)
	m.UpdateLeaderboard("high", 100)

	top := m.LeaderboardTop(2)
	if len(top) != 2 || top[0].Key != "high" {
		t.Errorf("expected highest XP first, got %+v", top)
	}
}

func TestRegisterReconnectedPlayerReattachesIndex(t *testing.T) {
	m := New(testWorldConfig(), testGenConfig(), nil)
	l := &lobby.Lobby{Players: map[string]*lobby.Player{
		"p1": {ID: "p1", Name: "p1", TeamID: "team_red", Class: world.ClassScout},
	}}
	w, _, _ := m.CreateWorldFromLobby(l)
	m.ForgetPlayer("p1")

	m.RegisterReconnectedPlayer(w.ID, "p1")

	got, ok := m.FindWorldByPlayer("p1")
	if !ok || got.ID != w.ID {
		t.Error("expected player reattached to its original world")
	}
}
