package world

import (
	"math"
	"time"
)

// mobGroup coordinates a pack of mobs sharing one leader, so they pursue in
// formation and retreat toward each other rather than independently.
type mobGroup struct {
	ID        string
	LeaderID  string
	MemberIDs []string
}

const roarCooldown = 20 * time.Second

// runMobGroups updates group formation movement: non-leader members orbit
// the leader's target while pursuing, or converge on the leader's position
// while fleeing. Roar is triggered once per engagement by the leader.
func (w *World) runMobGroups(dt float64, now time.Time) {
	if !w.cfg.AI.EnableGroupBehavior {
		return
	}

	for _, g := range w.mobGroups {
		leader := w.Mobs[g.LeaderID]
		if leader == nil || leader.State == MobDead {
			w.promoteGroupLeader(g)
			leader = w.Mobs[g.LeaderID]
		}
		if leader == nil {
			continue
		}

		if leader.State == MobPursuing || leader.State == MobAttacking {
			w.groupRoar(leader, g, now)
		}

		for i, memberID := range g.MemberIDs {
			if memberID == g.LeaderID {
				continue
			}
			m := w.Mobs[memberID]
			if m == nil || m.State == MobDead {
				continue
			}

			switch leader.State {
			case MobPursuing, MobAttacking:
				w.orbitFormationStep(m, leader, i, dt)
			case MobFleeing:
				w.convergeStep(m, leader, dt)
			}
		}
	}
}

func (w *World) promoteGroupLeader(g *mobGroup) {
	for _, id := range g.MemberIDs {
		if m := w.Mobs[id]; m != nil && m.State != MobDead {
			if old := w.Mobs[g.LeaderID]; old != nil {
				old.IsLeader = false
			}
			g.LeaderID = id
			m.IsLeader = true
			return
		}
	}
}

// orbitFormationStep places member i at an angular offset around the
// leader's current target so the group surrounds rather than stacks on it.
func (w *World) orbitFormationStep(m, leader *Mob, index int, dt float64) {
	target, ok := w.Players[leader.TargetID]
	if !ok {
		w.pursueStep(m, dt, false)
		return
	}

	angle := float64(index) * (2 * math.Pi / 5)
	radius := 2.5
	goal := Vec2{
		X: target.Position.X + radius*math.Cos(angle),
		Y: target.Position.Y + radius*math.Sin(angle),
	}

	dir := Vec2{X: goal.X - m.Position.X, Y: goal.Y - m.Position.Y}
	if l := dir.Length(); l > 0.1 {
		dir = dir.Scale(1 / l)
		m.Position = clampToWorld(m.Position.Add(dir.Scale(m.Stats.MoveSpeed*dt)), w.cfg.HalfExtent)
	}
	m.TargetID = leader.TargetID
	m.State = MobPursuing
	if m.Position.DistanceTo(target.Position) <= m.Stats.AttackRange {
		m.State = MobAttacking
	}
}

func (w *World) convergeStep(m, leader *Mob, dt float64) {
	dir := Vec2{X: leader.Position.X - m.Position.X, Y: leader.Position.Y - m.Position.Y}
	if l := dir.Length(); l > 0.5 {
		dir = dir.Scale(1 / l)
		m.Position = clampToWorld(m.Position.Add(dir.Scale(m.Stats.MoveSpeed*dt)), w.cfg.HalfExtent)
	}
	m.State = MobFleeing
}

// groupRoar is the leader's call-for-help: on a shared cooldown, every live
// mob within AI.HelpCallRadius that's currently Patrol (group member or not)
// is pulled into Alert and shares the leader's target (SPEC_FULL §4.5).
func (w *World) groupRoar(leader *Mob, g *mobGroup, now time.Time) {
	if leader.AbilityCooldowns == nil {
		leader.AbilityCooldowns = make(map[string]time.Time)
	}
	if next, ok := leader.AbilityCooldowns["roar"]; ok && now.Before(next) {
		return
	}
	leader.AbilityCooldowns["roar"] = now.Add(roarCooldown)

	for _, m := range w.Mobs {
		if m.ID == leader.ID || m.State != MobPatrol {
			continue
		}
		if m.Position.DistanceTo(leader.Position) <= w.cfg.AI.HelpCallRadius {
			m.State = MobAlert
			m.TargetID = leader.TargetID
		}
	}
}
