package world

import (
	"time"

	"arenaserver/internal/eventlog"
	"arenaserver/internal/protocol"
)

// extractionActivationRange is how close a player must stand to an active
// extraction point to begin channeling it (SPEC_FULL §4.7: "within
// activation range (≤5)").
const extractionActivationRange = 5.0

// extractionStayRange is how far an already-channeling player may drift from
// the point before the channel cancels (SPEC_FULL §4.7: "moves further than
// stay range (>3)"). It's intentionally tighter than the activation range:
// starting requires getting close, but a channel tolerates less drift once
// under way.
const extractionStayRange = 3.0

// ExtractionResult is the final record of a player who successfully
// extracted, handed to WorldManager for removal from the world.
type ExtractionResult struct {
	PlayerID     string
	TeamID       string
	ExtractionID string
	BonusXP      int
	At           time.Time
}

// startExtraction begins channeling extractionID for p if they're in range,
// alive, and not already extracting elsewhere.
func (w *World) startExtraction(p *Player, extractionID string, now time.Time) error {
	ep, ok := w.Extraction[extractionID]
	if !ok {
		return protocol.NewGameError(protocol.ErrNotFound, "extraction point not found")
	}
	if !ep.Active {
		return protocol.NewGameError(protocol.ErrLockedTarget, "extraction point inactive")
	}
	if !p.Alive {
		return protocol.NewGameError(protocol.ErrNotAlive, "dead players cannot extract")
	}
	if ep.RoomID != p.CurrentRoomID {
		return protocol.NewGameError(protocol.ErrRoomMismatch, "extraction point is in a different room")
	}
	if p.Position.DistanceTo(ep.Position) > extractionActivationRange {
		return protocol.NewGameError(protocol.ErrOutOfRange, "too far from extraction point")
	}

	if p.Extracting && p.ExtractionID != extractionID {
		w.cancelExtraction(p, p.ExtractionID)
	}

	p.Extracting = true
	p.ExtractionID = extractionID
	p.ExtractStart = now

	if ep.Extracting == nil {
		ep.Extracting = make(map[string]time.Time)
	}
	ep.Extracting[p.ID] = now
	return nil
}

// cancelExtraction stops p's channel on extractionID, if any.
func (w *World) cancelExtraction(p *Player, extractionID string) {
	if ep, ok := w.Extraction[extractionID]; ok {
		delete(ep.Extracting, p.ID)
	}
	if p.ExtractionID == extractionID {
		p.Extracting = false
		p.ExtractionID = ""
	}
}

// runExtraction advances every active channel: players who moved out of
// range or died have their channel cancelled, and channels that reach their
// duration complete, queuing the player for removal.
func (w *World) runExtraction(dt float64, now time.Time) {
	for _, ep := range w.Extraction {
		if !ep.Active || len(ep.Extracting) == 0 {
			continue
		}

		for playerID, start := range ep.Extracting {
			p, ok := w.Players[playerID]
			if !ok || !p.Alive || p.CurrentRoomID != ep.RoomID || p.Position.DistanceTo(ep.Position) > extractionStayRange {
				delete(ep.Extracting, playerID)
				if ok {
					p.Extracting = false
					p.ExtractionID = ""
				}
				continue
			}

			if now.Sub(start).Seconds() < ep.DurationS {
				continue
			}

			w.completeExtraction(p, ep, now)
			delete(ep.Extracting, playerID)
		}
	}
}

func (w *World) completeExtraction(p *Player, ep *ExtractionPoint, now time.Time) {
	p.Extracting = false

	bonusXP := 0
	for _, item := range p.Inventory {
		bonusXP += item.Rarity * 100
	}
	p.XP += bonusXP

	w.CompletedExtractions = append(w.CompletedExtractions, ExtractionResult{
		PlayerID: p.ID, TeamID: p.TeamID, ExtractionID: ep.ID, BonusXP: bonusXP, At: now,
	})
	w.pendingRemovals = append(w.pendingRemovals, p.ID)

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeExtractionComplete, w.ID, w.TickNum, p.ID, eventlog.ExtractionCompletePayload{
			PlayerID: p.ID, ExtractionID: ep.ID, TeamID: p.TeamID,
		})
	}
}

// flushRemovals deletes players who completed extraction last tick. Run at
// the start of Advance so the removal is never observable within the tick
// it's decided.
func (w *World) flushRemovals() {
	if len(w.pendingRemovals) == 0 {
		return
	}
	for _, id := range w.pendingRemovals {
		delete(w.Players, id)
	}
	w.pendingRemovals = w.pendingRemovals[:0]
}
