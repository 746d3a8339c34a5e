package world

import (
	"fmt"
	"time"
)

// priorityTickBudget controls how often each priority bucket's mobs run
// their full decision logic: Critical and High run every tick, Medium every
// other tick, Low every fourth tick. Mobs outside budget this tick still
// move along their last decision (attack/flee/pursue), just don't re-decide.
var priorityTickBudget = map[MobPriority]uint64{
	PriorityCritical: 1,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      4,
}

func (w *World) runMobAI(dt float64, now time.Time) {
	w.assignMobPriorities()
	w.runMobGroups(dt, now)

	for _, m := range w.Mobs {
		if m.State == MobDead {
			continue
		}
		if m.State == MobSpawning {
			if now.Sub(m.SpawnedAt) >= time.Second {
				m.State = MobIdle
			}
			continue
		}

		budget := priorityTickBudget[m.Priority]
		if budget == 0 {
			budget = 1
		}
		if w.TickNum%budget != 0 {
			w.advanceMobState(m, dt, now)
			continue
		}

		w.decideMob(m, now)
		w.advanceMobState(m, dt, now)
	}

	w.runBossLogic(now)
	w.runDynamicSpawning(now)
}

// assignMobPriorities buckets each live mob by its distance to the nearest
// live player, so the decision loop can spend more of its per-tick budget on
// mobs actually threatening someone.
func (w *World) assignMobPriorities() {
	for _, m := range w.Mobs {
		if m.State == MobDead {
			continue
		}
		nearest := w.nearestLivePlayerDistance(m.Position, m.RoomID)
		switch {
		case nearest <= m.Stats.AttackRange*2:
			m.Priority = PriorityCritical
		case nearest <= m.Stats.DetectRange:
			m.Priority = PriorityHigh
		case nearest <= m.Stats.DetectRange*2:
			m.Priority = PriorityMedium
		default:
			m.Priority = PriorityLow
		}
	}
}

func (w *World) nearestLivePlayerDistance(pos Vec2, roomID string) float64 {
	best := -1.0
	for _, p := range w.Players {
		if !p.Alive || p.CurrentRoomID != roomID || p.HasStatus(StatusStealth, time.Now()) {
			continue
		}
		d := pos.DistanceTo(p.Position)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 1e9
	}
	return best
}

func (w *World) nearestLivePlayer(pos Vec2, roomID string) *Player {
	var best *Player
	bestDist := 0.0
	for _, p := range w.Players {
		if !p.Alive || p.CurrentRoomID != roomID || p.HasStatus(StatusStealth, time.Now()) {
			continue
		}
		d := pos.DistanceTo(p.Position)
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// rangedCastThreshold is the AttackRange above which an attacking mob winds
// up in Casting before its hit lands, instead of attacking immediately
// (SPEC_FULL §4.5's "Cast" action, used by ranged/caster mobs like archers).
const rangedCastThreshold = 5.0

const castWindup = 600 * time.Millisecond

// decideMob runs the state machine's transition logic for one mob.
func (w *World) decideMob(m *Mob, now time.Time) {
	switch m.State {
	case MobIdle, MobPatrol, MobGuarding:
		if target := w.nearestLivePlayer(m.Position, m.RoomID); target != nil && m.Position.DistanceTo(target.Position) <= m.Stats.DetectRange {
			m.State = MobAlert
			m.TargetID = target.ID
		} else if w.shouldGuard(m) {
			m.State = MobGuarding
		} else {
			m.State = MobPatrol
		}

	case MobAlert:
		m.State = MobPursuing

	case MobPursuing:
		target, ok := w.Players[m.TargetID]
		if !ok || !target.Alive || target.CurrentRoomID != m.RoomID {
			m.State = MobIdle
			m.TargetID = ""
			return
		}
		dist := m.Position.DistanceTo(target.Position)
		if dist <= m.Stats.AttackRange {
			m.State = MobAttacking
		} else if dist > m.Stats.DetectRange*2 {
			m.State = MobIdle
			m.TargetID = ""
		}

	case MobAttacking:
		target, ok := w.Players[m.TargetID]
		if !ok || !target.Alive {
			m.State = MobIdle
			m.TargetID = ""
			return
		}
		dist := m.Position.DistanceTo(target.Position)
		if dist > m.Stats.AttackRange {
			m.State = MobPursuing
			return
		}
		if m.Stats.AttackRange > rangedCastThreshold {
			m.State = MobCasting
			m.CastUntil = now.Add(castWindup)
			return
		}
		w.mobAttack(m, target, now)
		if shouldFlee(m) {
			m.State = MobFleeing
		}

	case MobCasting:
		target, ok := w.Players[m.TargetID]
		if !ok || !target.Alive || target.CurrentRoomID != m.RoomID {
			m.State = MobIdle
			m.TargetID = ""
			return
		}
		if now.Before(m.CastUntil) {
			return
		}
		dist := m.Position.DistanceTo(target.Position)
		if dist > m.Stats.AttackRange {
			m.State = MobPursuing
			return
		}
		w.mobAttack(m, target, now)
		m.State = MobAttacking
		if shouldFlee(m) {
			m.State = MobFleeing
		}

	case MobFleeing:
		target, ok := w.Players[m.TargetID]
		if !ok || m.Position.DistanceTo(target.Position) > m.Stats.DetectRange*1.5 {
			m.State = MobIdle
			m.TargetID = ""
		}

	case MobStunned:
		if now.Before(m.StunnedUntil) {
			return
		}
		if m.TargetID != "" {
			m.State = MobPursuing
		} else {
			m.State = MobIdle
		}
	}
}

// shouldGuard reports whether an idle mob with no target should hold
// position guarding its room's extraction point rather than wander on
// patrol (SPEC_FULL §4.5's "Guard" action).
func (w *World) shouldGuard(m *Mob) bool {
	for _, ep := range w.Extraction {
		if ep.RoomID == m.RoomID {
			return true
		}
	}
	return false
}

// shouldFlee reports whether a low-health, low-aggression mob should break
// off and retreat instead of continuing to trade hits.
func shouldFlee(m *Mob) bool {
	if m.IsBoss {
		return false
	}
	hpRatio := float64(m.Health) / float64(m.MaxHealth)
	return hpRatio < 0.2 && m.Stats.Aggression < 0.5
}

// advanceMobState moves a mob according to its current state, using the
// shared flow field toward its target when pursuing/fleeing, or a local
// patrol wander otherwise.
func (w *World) advanceMobState(m *Mob, dt float64, now time.Time) {
	switch m.State {
	case MobPatrol:
		w.patrolStep(m, dt)
	case MobPursuing:
		w.pursueStep(m, dt, false)
	case MobFleeing:
		w.pursueStep(m, dt, true)
	}
}

// pursueStep moves m one dt step along the flow field toward (or, if flee is
// true, away from) its target.
func (w *World) pursueStep(m *Mob, dt float64, flee bool) {
	target, ok := w.Players[m.TargetID]
	if !ok {
		return
	}

	key := fmt.Sprintf("player:%s", target.ID)
	half := w.cfg.HalfExtent
	field := w.flowFields.GetOrCreate(key, target.Position.X+half, target.Position.Y+half)
	vx, vy := field.Lookup(m.Position.X+half, m.Position.Y+half)

	dir := Vec2{X: float64(vx), Y: float64(vy)}
	if flee {
		dir = dir.Scale(-1)
	}
	if dir.Length() == 0 {
		dir = Vec2{X: target.Position.X - m.Position.X, Y: target.Position.Y - m.Position.Y}
		if l := dir.Length(); l > 0 {
			dir = dir.Scale(1 / l)
		}
		if flee {
			dir = dir.Scale(-1)
		}
	}

	m.Position = clampToWorld(m.Position.Add(dir.Scale(m.Stats.MoveSpeed*dt)), half)
}

func (w *World) patrolStep(m *Mob, dt float64) {
	if m.patrolGoal == (Vec2{}) || m.Position.DistanceTo(m.patrolGoal) < 1 {
		room := w.Rooms[m.RoomID]
		if room == nil {
			return
		}
		half := room.Size / 2
		m.patrolGoal = Vec2{
			X: room.Center.X + (w.rng.Float64()*2-1)*half,
			Y: room.Center.Y + (w.rng.Float64()*2-1)*half,
		}
	}
	dir := Vec2{X: m.patrolGoal.X - m.Position.X, Y: m.patrolGoal.Y - m.Position.Y}
	if l := dir.Length(); l > 0 {
		dir = dir.Scale(1 / l)
		m.Position = m.Position.Add(dir.Scale(m.Stats.MoveSpeed * 0.5 * dt))
	}
}

// mobAttack applies a mob's attack to its target, respecting its per-mob
// cooldown.
func (w *World) mobAttack(m *Mob, target *Player, now time.Time) {
	if m.AbilityCooldowns == nil {
		m.AbilityCooldowns = make(map[string]time.Time)
	}
	if next, ok := m.AbilityCooldowns["attack"]; ok && now.Before(next) {
		return
	}
	m.AbilityCooldowns["attack"] = now.Add(m.Stats.AttackCooldown)

	damage := float64(m.Stats.Damage)
	if m.State == MobEnraged {
		damage *= enrageDamageMultiplier
	}

	if target.Shield > 0 {
		absorbed := target.Shield
		if absorbed > damage {
			absorbed = damage
		}
		target.Shield -= absorbed
		damage -= absorbed
	}
	if target.Armor > 0 {
		damage -= target.Armor
	}
	if damage < 1 {
		damage = 1
	}

	dealt := int(damage)
	target.Health -= dealt
	target.LastDamagedBy = m.ID
	target.LastDamagedAt = now

	w.CombatEvents = append(w.CombatEvents, CombatEvent{
		Type: "attack", AttackerID: m.ID, VictimID: target.ID, Damage: dealt, At: now,
	})

	if target.Health <= 0 {
		w.killPlayer(m.ID, target, now)
	}
}
