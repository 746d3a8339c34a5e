package world

import (
	"testing"
	"time"
)

func extractionFixture(w *World) (*Player, *ExtractionPoint) {
	var ep *ExtractionPoint
	for _, e := range w.Extraction {
		ep = e
		break
	}
	p := newTestPlayer("p1", "team1", ClassScout)
	p.CurrentRoomID = ep.RoomID
	p.Position = ep.Position
	w.Players[p.ID] = p
	return p, ep
}

func TestStartExtractionRejectsOutOfRoom(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)
	p.CurrentRoomID = "some_other_room"

	if err := w.startExtraction(p, ep.ID, time.Now()); err == nil {
		t.Error("expected RoomMismatch error when player is outside the extraction point's room")
	}
}

func TestStartExtractionRejectsOutOfRange(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)
	p.Position = Vec2{X: ep.Position.X + 100, Y: ep.Position.Y}

	if err := w.startExtraction(p, ep.ID, time.Now()); err == nil {
		t.Error("expected OutOfRange error when player is too far from the extraction point")
	}
}

func TestStartExtractionAcceptsWithinActivationRangeButOutsideStayRange(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)
	// 4 units: beyond the 3-unit stay range but within the 5-unit activation
	// range. Starting extraction must succeed here (SPEC_FULL §4.7).
	p.Position = Vec2{X: ep.Position.X + 4, Y: ep.Position.Y}

	if err := w.startExtraction(p, ep.ID, time.Now()); err != nil {
		t.Fatalf("expected start to succeed at activation range, got: %v", err)
	}
}

func TestExtractionCancelsWhenDriftingBeyondStayRangeButWithinActivationRange(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)

	if err := w.startExtraction(p, ep.ID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Drift to 4 units: still inside activation range, but beyond stay range.
	p.Position = Vec2{X: ep.Position.X + 4, Y: ep.Position.Y}

	w.runExtraction(1.0/60, time.Now())

	if p.Extracting {
		t.Error("expected channel to cancel once drift exceeded the stay range")
	}
}

func TestExtractionCompletesExactlyAtDuration(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)
	ep.DurationS = 30

	start := time.Now()
	if err := w.startExtraction(p, ep.ID, start); err != nil {
		t.Fatalf("unexpected error starting extraction: %v", err)
	}

	// Just before duration elapses: not yet complete.
	w.runExtraction(1.0/60, start.Add(29*time.Second))
	if len(w.CompletedExtractions) != 0 {
		t.Error("extraction completed before its duration elapsed")
	}

	// Exactly at duration: completes.
	w.runExtraction(1.0/60, start.Add(30*time.Second))
	if len(w.CompletedExtractions) != 1 {
		t.Fatalf("expected extraction to complete exactly at duration, got %d completions", len(w.CompletedExtractions))
	}
}

func TestExtractionCancelsOnDeath(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)

	if err := w.startExtraction(p, ep.ID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Alive = false

	w.runExtraction(1.0/60, time.Now())

	if p.Extracting {
		t.Error("expected extraction to cancel once the player died")
	}
	if len(ep.Extracting) != 0 {
		t.Error("expected the extraction point to drop the dead player's channel")
	}
}

func TestExtractionCancelsOnMovingOutOfRange(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)

	if err := w.startExtraction(p, ep.ID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Position = Vec2{X: ep.Position.X + 10, Y: ep.Position.Y}

	w.runExtraction(1.0/60, time.Now())

	if p.Extracting {
		t.Error("expected extraction to cancel once the player moved out of range")
	}
}

func TestBonusXPReflectsInventoryRarity(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)
	p.Inventory = []InventoryItem{
		{LootItem: LootItem{Rarity: 2}},
		{LootItem: LootItem{Rarity: 5}},
	}

	w.completeExtraction(p, ep, time.Now())

	want := (2 + 5) * 100
	if len(w.CompletedExtractions) != 1 || w.CompletedExtractions[0].BonusXP != want {
		t.Errorf("expected bonus XP %d, got %+v", want, w.CompletedExtractions)
	}
}

func TestMidTickRemovalDeferredToNextTick(t *testing.T) {
	w := newTestWorld()
	p, ep := extractionFixture(w)

	w.completeExtraction(p, ep, time.Now())

	if _, ok := w.Players[p.ID]; !ok {
		t.Error("player should still be present in the Players map within the same tick (deferred removal)")
	}

	w.flushRemovals()

	if _, ok := w.Players[p.ID]; ok {
		t.Error("player should be removed once flushRemovals runs at the start of the next tick")
	}
}
