package world

import (
	"time"

	"arenaserver/internal/eventlog"
)

// runMovement integrates every alive player's position from their desired
// move vector, applies the anti-cheat plausibility check, and keeps
// CurrentRoomID in sync with the resulting position.
func (w *World) runMovement(dt float64, now time.Time) {
	half := w.cfg.HalfExtent

	for _, p := range w.Players {
		if !p.Alive {
			continue
		}

		speed := w.effectiveSpeed(p, dt, now)

		displacement := p.DesiredMove.Scale(speed * dt)
		next := p.Position.Add(displacement)

		if next.X > half {
			next.X = half
		} else if next.X < -half {
			next.X = -half
		}
		if next.Y > half {
			next.Y = half
		} else if next.Y < -half {
			next.Y = -half
		}

		maxSpeed := w.cfg.Movement.BaseSpeed * p.Class.SpeedModifier() * w.cfg.Movement.SprintMultiplier
		if s := p.effectiveSpeedMultiplier(now); s > 1 {
			maxSpeed *= s
		}

		reject, reason := p.anticheat.checkMovement(now, next, maxSpeed, w.cfg.Movement.TeleportMaxDistance, p.TeleportAuthorized)
		p.TeleportAuthorized = false

		if reject {
			if w.log != nil {
				w.log.EmitSimple(eventlog.EventTypeAntiCheatFlag, w.ID, w.TickNum, p.ID, eventlog.AntiCheatFlagPayload{
					PlayerID: p.ID,
					Reason:   reason,
				})
			}
			continue
		}

		p.Position = next
		p.Velocity = Vec2{X: displacement.X / dt, Y: displacement.Y / dt}

		if room := w.RoomContaining(p.Position); room != nil && room.ID != p.CurrentRoomID {
			from := p.CurrentRoomID
			p.CurrentRoomID = room.ID
			if w.log != nil {
				w.log.EmitSimple(eventlog.EventTypeRoomChange, w.ID, w.TickNum, p.ID, eventlog.RoomChangePayload{
					PlayerID:   p.ID,
					FromRoomID: from,
					ToRoomID:   room.ID,
				})
			}
		}
	}

	w.checkPvPEncounters()
}

// checkPvPEncounters emits one event per room currently holding live players
// from two or more distinct teams.
func (w *World) checkPvPEncounters() {
	if w.log == nil {
		return
	}

	roomTeams := make(map[string]map[string]bool)
	for _, p := range w.Players {
		if !p.Alive {
			continue
		}
		teams := roomTeams[p.CurrentRoomID]
		if teams == nil {
			teams = make(map[string]bool)
			roomTeams[p.CurrentRoomID] = teams
		}
		teams[p.TeamID] = true
	}

	for roomID, teams := range roomTeams {
		if len(teams) < 2 {
			continue
		}
		ids := make([]string, 0, len(teams))
		for team := range teams {
			ids = append(ids, team)
		}
		w.log.EmitSimple(eventlog.EventTypePvPEncounter, w.ID, w.TickNum, "", eventlog.PvPEncounterPayload{
			RoomID:  roomID,
			TeamIDs: ids,
		})
	}
}

// effectiveSpeed returns a player's current movement speed in units/second,
// folding in class modifier, sprint (with its mana cost), and slow/speed
// status effects.
func (w *World) effectiveSpeed(p *Player, dt float64, now time.Time) float64 {
	speed := w.cfg.Movement.BaseSpeed * p.Class.SpeedModifier()

	if p.Sprinting && p.Mana > 0 {
		cost := w.cfg.Movement.ManaCostPerSprintSecond * dt
		if p.Mana >= cost {
			p.Mana -= cost
			speed *= w.cfg.Movement.SprintMultiplier
		} else {
			p.Sprinting = false
		}
	}

	speed *= p.effectiveSpeedMultiplier(now)

	return speed
}

// effectiveSpeedMultiplier folds active slow/speed status effects into one
// multiplier; the most recent application of each type already overwrote any
// earlier one (see Player.ApplyStatus), so there's at most one of each.
func (p *Player) effectiveSpeedMultiplier(now time.Time) float64 {
	mul := 1.0
	for _, s := range p.Status {
		if s.Expired(now) {
			continue
		}
		switch s.Type {
		case StatusSlow:
			mul *= 1 - s.Magnitude
		case StatusSpeed:
			mul *= 1 + s.Magnitude
		}
	}
	if mul < 0 {
		mul = 0
	}
	return mul
}
