package world

import (
	"testing"
	"time"
)

func TestMovementIntegratesPositionAndRoom(t *testing.T) {
	w := newTestWorld()
	p := newTestPlayer("p1", "team1", ClassScout)
	p.Position = Vec2{X: 0, Y: 0}
	p.DesiredMove = Vec2{X: 1, Y: 0}
	w.Players[p.ID] = p

	now := time.Now()
	w.runMovement(1.0/60, now)

	if p.Position.X <= 0 {
		t.Errorf("expected player to move in +X, got %+v", p.Position)
	}
	if p.CurrentRoomID == "" {
		t.Error("expected CurrentRoomID to be set after movement")
	}
}

func TestMovementClampsToPlaneBounds(t *testing.T) {
	w := newTestWorld()
	p := newTestPlayer("p1", "team1", ClassScout)
	p.Position = Vec2{X: w.cfg.HalfExtent - 0.001, Y: 0}
	p.DesiredMove = Vec2{X: 1, Y: 0}
	w.Players[p.ID] = p

	// Run several ticks so integrated movement would overshoot the bound
	// without clamping.
	now := time.Now()
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second / 60)
		w.runMovement(1.0/60, now)
	}

	if p.Position.X > w.cfg.HalfExtent {
		t.Errorf("expected position clamped to half-extent %v, got %v", w.cfg.HalfExtent, p.Position.X)
	}
}

func TestSprintDrainsManaAndIncreasesSpeed(t *testing.T) {
	w := newTestWorld()
	p := newTestPlayer("p1", "team1", ClassScout)
	p.Mana = 10
	p.Sprinting = true

	dt := 1.0
	speed := w.effectiveSpeed(p, dt, time.Now())

	baseline := w.cfg.Movement.BaseSpeed * p.Class.SpeedModifier()
	if speed <= baseline {
		t.Errorf("expected sprint speed %v to exceed baseline %v", speed, baseline)
	}
	if p.Mana >= 10 {
		t.Errorf("expected mana to be drained by sprinting, got %v", p.Mana)
	}
}

func TestSprintStopsWhenManaExhausted(t *testing.T) {
	w := newTestWorld()
	p := newTestPlayer("p1", "team1", ClassScout)
	p.Mana = 0.0001
	p.Sprinting = true

	w.effectiveSpeed(p, 1.0, time.Now())

	if p.Sprinting {
		t.Error("expected sprinting to stop once mana is exhausted")
	}
}

func TestAntiCheatFlagsTeleport(t *testing.T) {
	var h antiCheatHistory
	now := time.Now()

	reject, reason := h.checkMovement(now, Vec2{X: 0, Y: 0}, 10, 15, false)
	if reject {
		t.Fatal("first sample should never be rejected (no history yet)")
	}

	// Jump far beyond teleport tolerance a second later.
	reject, reason = h.checkMovement(now.Add(time.Second), Vec2{X: 50, Y: 0}, 10, 15, false)
	if !reject || reason != "teleport" {
		t.Errorf("expected teleport rejection, got reject=%v reason=%q", reject, reason)
	}
	if h.Suspicion != 1 {
		t.Errorf("expected suspicion counter to increment, got %d", h.Suspicion)
	}
}

func TestAntiCheatFlagsExcessSpeed(t *testing.T) {
	var h antiCheatHistory
	now := time.Now()

	h.checkMovement(now, Vec2{X: 0, Y: 0}, 5, 15, false)
	// 12 units in 1s against an expected max of 5 (scenario 3 in SPEC_FULL §8).
	reject, reason := h.checkMovement(now.Add(time.Second), Vec2{X: 12, Y: 0}, 5, 15, false)

	if !reject || reason != "speed" {
		t.Errorf("expected speed rejection, got reject=%v reason=%q", reject, reason)
	}
}

func TestAntiCheatMonitorsAfterFiveFlags(t *testing.T) {
	var h antiCheatHistory
	now := time.Now()
	h.checkMovement(now, Vec2{X: 0, Y: 0}, 5, 1, false)

	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		h.checkMovement(now, Vec2{X: float64(i+1) * 100, Y: 0}, 5, 1, false)
	}

	if !h.Monitored {
		t.Error("expected player to be monitored after the 5th anti-cheat flag")
	}
}

func TestAntiCheatAllowsAuthorizedTeleport(t *testing.T) {
	var h antiCheatHistory
	now := time.Now()
	h.checkMovement(now, Vec2{X: 0, Y: 0}, 5, 15, false)

	reject, _ := h.checkMovement(now.Add(time.Second), Vec2{X: 50, Y: 0}, 5, 15, true)
	if reject {
		t.Error("an authorised teleport should bypass the teleport-distance check")
	}
}

func TestStatusSpeedAndSlowMultipliers(t *testing.T) {
	p := newTestPlayer("p1", "team1", ClassTank)
	now := time.Now()

	p.ApplyStatus(StatusEffect{Type: StatusSlow, Magnitude: 0.5, AppliedAt: now, ExpiresAt: now.Add(time.Minute)})
	if mul := p.effectiveSpeedMultiplier(now); mul != 0.5 {
		t.Errorf("expected slow multiplier 0.5, got %v", mul)
	}

	p.ApplyStatus(StatusEffect{Type: StatusSpeed, Magnitude: 1, AppliedAt: now, ExpiresAt: now.Add(time.Minute)})
	// Speed overwrites nothing of Slow (different type); both multiply.
	if mul := p.effectiveSpeedMultiplier(now); mul <= 0.5 {
		t.Errorf("expected combined multiplier above 0.5, got %v", mul)
	}
}

func TestApplyStatusOverwritesSameType(t *testing.T) {
	p := newTestPlayer("p1", "team1", ClassTank)
	now := time.Now()

	p.ApplyStatus(StatusEffect{Type: StatusPoison, Magnitude: 5, ExpiresAt: now.Add(time.Second)})
	p.ApplyStatus(StatusEffect{Type: StatusPoison, Magnitude: 9, ExpiresAt: now.Add(time.Minute)})

	if len(p.Status) != 1 {
		t.Fatalf("expected re-application to overwrite, got %d status entries", len(p.Status))
	}
	if p.Status[0].Magnitude != 9 {
		t.Errorf("expected overwritten magnitude 9, got %v", p.Status[0].Magnitude)
	}
}
