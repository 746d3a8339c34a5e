package lobby

import (
	"testing"
	"time"

	"arenaserver/internal/config"
	"arenaserver/internal/world"
)

func testLobbyConfig() config.LobbyConfig {
	return config.LobbyConfig{
		MaxPlayersPerWorld:  8,
		MinPlayersToStart:   4,
		MinTeamsToStart:     2,
		MaxWaitSeconds:      10,
		AbsoluteMaxWaitSecs: 30,
		AutoBalanceTeams:    true,
	}
}

func TestCheckReadyFullCondition(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	for i := 0; i < cfg.MaxPlayersPerWorld; i++ {
		l.Players[string(rune('a'+i))] = &Player{ID: string(rune('a' + i)), TeamID: "team_red"}
	}

	if reason := l.checkReady(time.Now()); reason != reasonFull {
		t.Errorf("expected reasonFull, got %q", reason)
	}
}

func TestCheckReadyCapacityAndTeamsAfterWait(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	// CreatedAt stays recent; only LastJoinAt is backdated, since condition
	// (a) debounces off the last join, not the lobby's age.
	l.LastJoinAt = time.Now().Add(-time.Duration(cfg.MaxWaitSeconds+1) * time.Second)
	l.Players["a"] = &Player{ID: "a", TeamID: "team_red"}
	l.Players["b"] = &Player{ID: "b", TeamID: "team_red"}
	l.Players["c"] = &Player{ID: "c", TeamID: "team_blue"}
	l.Players["d"] = &Player{ID: "d", TeamID: "team_blue"}

	if reason := l.checkReady(time.Now()); reason != reasonCapacityAndTeams {
		t.Errorf("expected reasonCapacityAndTeams, got %q", reason)
	}
}

func TestCheckReadyRecentJoinResetsWaitTimer(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	// The lobby itself is old enough to pass the soft wait if CreatedAt were
	// (wrongly) used, but a join just landed, so condition (a) must not fire.
	l.CreatedAt = time.Now().Add(-time.Duration(cfg.MaxWaitSeconds+5) * time.Second)
	l.LastJoinAt = time.Now()
	l.Players["a"] = &Player{ID: "a", TeamID: "team_red"}
	l.Players["b"] = &Player{ID: "b", TeamID: "team_red"}
	l.Players["c"] = &Player{ID: "c", TeamID: "team_blue"}
	l.Players["d"] = &Player{ID: "d", TeamID: "team_blue"}

	if reason := l.checkReady(time.Now()); reason != "" {
		t.Errorf("expected not ready right after a fresh join, got %q", reason)
	}
}

func TestCheckReadyNotYetAtMinimumCapacity(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	l.LastJoinAt = time.Now().Add(-time.Duration(cfg.MaxWaitSeconds+1) * time.Second)
	l.Players["a"] = &Player{ID: "a", TeamID: "team_red"}

	if reason := l.checkReady(time.Now()); reason != "" {
		t.Errorf("expected not ready with one player, got %q", reason)
	}
}

func TestCheckReadyAbsoluteMaxWaitOverridesCapacity(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	l.CreatedAt = time.Now().Add(-time.Duration(cfg.AbsoluteMaxWaitSecs+1) * time.Second)
	l.Players["a"] = &Player{ID: "a", TeamID: "team_red"}

	if reason := l.checkReady(time.Now()); reason != reasonAbsoluteMaxWait {
		t.Errorf("expected reasonAbsoluteMaxWait, got %q", reason)
	}
}

func TestCheckReadyEmptyLobbyNeverReady(t *testing.T) {
	cfg := testLobbyConfig()
	l := newLobby("l1", cfg)
	l.CreatedAt = time.Now().Add(-time.Hour)

	if reason := l.checkReady(time.Now()); reason != "" {
		t.Errorf("expected an empty lobby to never be ready, got %q", reason)
	}
}

func TestFindOrCreateLobbyRespectsMaxTeamSize(t *testing.T) {
	m := NewManager(testLobbyConfig(), 1, nil, nil)
	defer m.Stop()

	l1 := m.FindOrCreateLobby("team_red")
	m.Join(l1, &Player{ID: "p1", TeamID: "team_red", Class: world.ClassScout})

	l2 := m.FindOrCreateLobby("team_red")
	if l2.ID == l1.ID {
		t.Error("expected a new lobby once team_red reached maxTeamSize in the first one")
	}
}

func TestFindOrCreateLobbyReusesOpenLobbyForOtherTeam(t *testing.T) {
	m := NewManager(testLobbyConfig(), 4, nil, nil)
	defer m.Stop()

	l1 := m.FindOrCreateLobby("team_red")
	m.Join(l1, &Player{ID: "p1", TeamID: "team_red", Class: world.ClassScout})

	l2 := m.FindOrCreateLobby("team_blue")
	if l2.ID != l1.ID {
		t.Error("expected team_blue to join the same open lobby")
	}
}

func TestJoinAutoAssignsLeastPopulatedTeam(t *testing.T) {
	m := NewManager(testLobbyConfig(), 0, nil, nil)
	defer m.Stop()

	l := m.FindOrCreateLobby("")
	m.Join(l, &Player{ID: "p1"})
	m.Join(l, &Player{ID: "p2"})

	if l.Players["p1"].TeamID == l.Players["p2"].TeamID {
		t.Error("expected auto-balance to spread the first two joiners across teams")
	}
}

func TestLeaveRemovesPlayer(t *testing.T) {
	m := NewManager(testLobbyConfig(), 0, nil, nil)
	defer m.Stop()

	l := m.FindOrCreateLobby("team_red")
	m.Join(l, &Player{ID: "p1", TeamID: "team_red"})
	m.Leave(l, "p1")

	if _, ok := l.Players["p1"]; ok {
		t.Error("expected player to be removed from the lobby")
	}
}

func TestMarkErroredSetsStatusAndReason(t *testing.T) {
	m := NewManager(testLobbyConfig(), 0, nil, nil)
	defer m.Stop()

	l := m.FindOrCreateLobby("team_red")
	m.MarkErrored(l, "world creation failed")

	if l.Status != StatusErrored || l.Error != "world creation failed" {
		t.Errorf("expected errored status with reason, got status=%v error=%q", l.Status, l.Error)
	}
}
