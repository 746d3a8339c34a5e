package world

import (
	"math"
	"time"

	"arenaserver/internal/eventlog"
)

// applyInputs drains each connected player's buffered input frames and
// updates their desired movement/aim/ability state. Movement integration
// itself happens in the Movement phase so every player moves against the
// same dt regardless of how many frames they sent this tick.
func (w *World) applyInputs(now time.Time) {
	maxMag := w.cfg.Movement.MaxInputMagnitude

	for _, p := range w.Players {
		if p.InputBuf == nil || !p.Alive {
			continue
		}

		frames := p.InputBuf.Take()
		for _, f := range frames {
			move := Vec2{X: f.MoveX, Y: f.MoveY}
			if mag := move.Length(); mag > maxMag {
				if w.log != nil {
					w.log.EmitSimple(eventlog.EventTypeAntiCheatFlag, w.ID, w.TickNum, p.ID, eventlog.AntiCheatFlagPayload{
						PlayerID: p.ID, Reason: "input_magnitude", Detail: "dropped frame over max input magnitude",
					})
				}
				continue
			}

			p.DesiredMove = move
			p.Sprinting = f.IsSprinting
			p.LastInputSeq = f.Sequence
			p.LastActivity = now

			if f.AimX != 0 || f.AimY != 0 {
				aimLen := math.Hypot(f.AimX, f.AimY)
				if aimLen > 0 {
					p.Aim = Vec2{X: f.AimX / aimLen, Y: f.AimY / aimLen}
				}
			}

			if f.IsAttacking {
				w.tryAttack(p, now)
			}

			if f.AbilityType != "" {
				w.tryActivateAbility(p, AbilityType(f.AbilityType), now)
			}
		}
	}
}
