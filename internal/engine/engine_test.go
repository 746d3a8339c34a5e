package engine

import (
	"testing"

	"arenaserver/internal/config"
	"arenaserver/internal/protocol"
)

func testEngineConfig() config.Config {
	return config.Config{
		Engine:   config.EngineConfig{TargetFPS: 60, WorldHalfExtent: 240, MaintenanceEvery: 60},
		Lobby:    config.LobbyConfig{MaxPlayersPerWorld: 8, MinPlayersToStart: 2, MinTeamsToStart: 2, MaxWaitSeconds: 20, AbsoluteMaxWaitSecs: 90, AutoBalanceTeams: true},
		WorldGen: config.WorldGenConfig{GridX: 2, GridY: 2, RoomSize: 50, RoomSpacing: 60, MobsPerRoom: 1, InitialLootCount: 2},
		Movement: config.MovementConfig{BaseSpeed: 5, SprintMultiplier: 1.5},
		Combat:   config.CombatConfig{MaxTeamSize: 8, AttackRange: 3.5, BaseHealth: 100, MaxInventorySize: 20},
		AI:       config.AIConfig{MaxMobsPerRoom: 6},
		Loot:     config.LootConfig{MaxPerRoom: 10},
		Session:  config.SessionConfig{TokenTTLSeconds: 300, ClientTimeoutSecs: 30},
	}
}

func newTestEngine() *Engine {
	return New(testEngineConfig(), nil)
}

func TestHandleConnectRejectsShortName(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	_, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "ab", PlayerClass: "scout", TeamID: "team_red"})
	if gerr == nil || gerr.Code != protocol.ErrInvalidName {
		t.Errorf("expected ErrInvalidName, got %+v", gerr)
	}
}

func TestHandleConnectRejectsLongName(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	_, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "012345678901234567890", PlayerClass: "scout", TeamID: "team_red"})
	if gerr == nil || gerr.Code != protocol.ErrInvalidName {
		t.Errorf("expected ErrInvalidName for a 21-char name, got %+v", gerr)
	}
}

func TestHandleConnectAcceptsBoundaryNames(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	if _, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "abc", PlayerClass: "scout", TeamID: "team_red"}); gerr != nil {
		t.Errorf("expected a 3-char name to be accepted, got %+v", gerr)
	}
	if _, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "01234567890123456789", PlayerClass: "scout", TeamID: "team_blue"}); gerr != nil {
		t.Errorf("expected a 20-char name to be accepted, got %+v", gerr)
	}
}

func TestHandleConnectRejectsUnknownClass(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	_, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "wizard", TeamID: "team_red"})
	if gerr == nil || gerr.Code != protocol.ErrInvalidClass {
		t.Errorf("expected ErrInvalidClass, got %+v", gerr)
	}
}

func TestHandleConnectRejectsBadTeamPrefix(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	_, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "scout", TeamID: "red"})
	if gerr == nil || gerr.Code != protocol.ErrInvalidTeam {
		t.Errorf("expected ErrInvalidTeam, got %+v", gerr)
	}
}

func TestHandleConnectRejectsDuplicateName(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	if _, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "scout", TeamID: "team_red"}); gerr != nil {
		t.Fatalf("unexpected error on first connect: %+v", gerr)
	}
	_, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "tank", TeamID: "team_blue"})
	if gerr == nil || gerr.Code != protocol.ErrNameInUse {
		t.Errorf("expected ErrNameInUse, got %+v", gerr)
	}
}

func TestHandleGracefulDisconnectReleasesNameForReuse(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	connected, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "scout", TeamID: "team_red"})
	if gerr != nil {
		t.Fatalf("unexpected error: %+v", gerr)
	}

	e.HandleGracefulDisconnect(connected.PlayerID)

	if _, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "tank", TeamID: "team_blue"}); gerr != nil {
		t.Errorf("expected name to be reusable after a graceful disconnect, got %+v", gerr)
	}
}

func TestHandleDisconnectFromLobbyReleasesNameImmediately(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	connected, _ := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "scout", TeamID: "team_red"})
	e.HandleDisconnect(connected.PlayerID)

	if _, gerr := e.HandleConnect(protocol.ConnectPayload{PlayerName: "hero", PlayerClass: "tank", TeamID: "team_blue"}); gerr != nil {
		t.Errorf("expected name to be reusable once a lobby-only disconnect is handled, got %+v", gerr)
	}
}

func TestHandlePingEchoesClientData(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	pong := e.HandlePing(protocol.PingPayload{ClientData: "abc123"})
	if pong.ClientData != "abc123" {
		t.Errorf("expected echoed client data, got %q", pong.ClientData)
	}
}
