package world

import "time"

// abilityCooldowns gives each ability its own reuse delay; no single
// constant fits all six since their power varies a lot (a heal recharges
// faster than a mobility reset).
var abilityCooldowns = map[AbilityType]time.Duration{
	AbilityDash:    5 * time.Second,
	AbilityStealth: 12 * time.Second,
	AbilityCharge:  8 * time.Second,
	AbilityShield:  12 * time.Second,
	AbilityHeal:    6 * time.Second,
	AbilityBuff:    10 * time.Second,
}

const (
	dashDistance        = 6.0
	chargeDistance      = 8.0
	chargeRadius        = 3.0
	chargeDamage        = 30
	shieldAmount        = 50.0
	healAmount          = 30
	healRadius          = 6.0
	buffRadius          = 6.0
	buffSpeedMagnitude  = 0.3
	buffDuration        = 8 * time.Second
	stealthDuration     = 4 * time.Second
	chargeStunDuration  = 2 * time.Second
)

// tryActivateAbility activates ability for p if it's in their class's kit and
// off cooldown.
func (w *World) tryActivateAbility(p *Player, ability AbilityType, now time.Time) {
	if !classHasAbility(p.Class, ability) {
		return
	}
	if next, ok := p.Cooldowns[ability]; ok && now.Before(next) {
		return
	}
	if p.Cooldowns == nil {
		p.Cooldowns = make(map[AbilityType]time.Time)
	}

	switch ability {
	case AbilityDash:
		w.activateDash(p, now)
	case AbilityStealth:
		w.activateStealth(p, now)
	case AbilityCharge:
		w.activateCharge(p, now)
	case AbilityShield:
		w.activateShield(p, now)
	case AbilityHeal:
		w.activateHeal(p, now)
	case AbilityBuff:
		w.activateBuff(p, now)
	default:
		return
	}

	p.Cooldowns[ability] = now.Add(abilityCooldowns[ability])
	w.CombatEvents = append(w.CombatEvents, CombatEvent{
		Type: "ability", AttackerID: p.ID, Ability: string(ability), At: now,
	})
}

func classHasAbility(c Class, a AbilityType) bool {
	for _, have := range AbilitiesForClass(c) {
		if have == a {
			return true
		}
	}
	return false
}

func (w *World) activateDash(p *Player, now time.Time) {
	dir := p.Aim
	if dir.Length() == 0 {
		dir = Vec2{X: 1, Y: 0}
	} else {
		dir = dir.Scale(1 / dir.Length())
	}
	p.Position = clampToWorld(p.Position.Add(dir.Scale(dashDistance)), w.cfg.HalfExtent)
	p.TeleportAuthorized = true
}

func (w *World) activateStealth(p *Player, now time.Time) {
	p.ApplyStatus(StatusEffect{
		Type: StatusStealth, Magnitude: 1, AppliedAt: now,
		ExpiresAt: now.Add(stealthDuration), SourceID: p.ID,
	})
}

// activateCharge dashes the tank forward and deals AoE damage to enemies in
// the arrival radius. Per the resolved ruling on team-wide abilities, it
// never hits the caster's own team.
func (w *World) activateCharge(p *Player, now time.Time) {
	dir := p.Aim
	if dir.Length() == 0 {
		dir = Vec2{X: 1, Y: 0}
	} else {
		dir = dir.Scale(1 / dir.Length())
	}
	p.Position = clampToWorld(p.Position.Add(dir.Scale(chargeDistance)), w.cfg.HalfExtent)
	p.TeleportAuthorized = true

	for _, other := range w.Players {
		if other.ID == p.ID || other.TeamID == p.TeamID || !other.Alive {
			continue
		}
		if p.Position.DistanceTo(other.Position) <= chargeRadius {
			w.damagePlayer(p.ID, other, now, string(AbilityCharge))
		}
	}
	for _, m := range w.Mobs {
		if m.State == MobDead {
			continue
		}
		if p.Position.DistanceTo(m.Position) <= chargeRadius {
			w.damageMob(p, m, now)
			if m.State != MobDead {
				m.State = MobStunned
				m.StunnedUntil = now.Add(chargeStunDuration)
			}
		}
	}
}

func (w *World) activateShield(p *Player, now time.Time) {
	p.Shield += shieldAmount
	if p.Shield > p.MaxShield {
		p.Shield = p.MaxShield
	}
	p.ApplyStatus(StatusEffect{
		Type: StatusShield, Magnitude: shieldAmount, AppliedAt: now,
		ExpiresAt: now.Add(15 * time.Second), SourceID: p.ID,
	})
}

func (w *World) activateHeal(p *Player, now time.Time) {
	for _, other := range w.Players {
		if other.TeamID != p.TeamID || !other.Alive {
			continue
		}
		if p.Position.DistanceTo(other.Position) > healRadius {
			continue
		}
		other.Health += healAmount
		if other.Health > other.MaxHealth {
			other.Health = other.MaxHealth
		}
	}
}

func (w *World) activateBuff(p *Player, now time.Time) {
	for _, other := range w.Players {
		if other.TeamID != p.TeamID || !other.Alive {
			continue
		}
		if p.Position.DistanceTo(other.Position) > buffRadius {
			continue
		}
		other.ApplyStatus(StatusEffect{
			Type: StatusSpeed, Magnitude: buffSpeedMagnitude, AppliedAt: now,
			ExpiresAt: now.Add(buffDuration), SourceID: p.ID,
		})
	}
}

func clampToWorld(pos Vec2, half float64) Vec2 {
	if pos.X > half {
		pos.X = half
	} else if pos.X < -half {
		pos.X = -half
	}
	if pos.Y > half {
		pos.Y = half
	} else if pos.Y < -half {
		pos.Y = -half
	}
	return pos
}
