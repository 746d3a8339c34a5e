package world

import (
	"fmt"
	"math"
	"sort"
	"time"

	"arenaserver/internal/eventlog"
)

// playerBaseDamage is the unmodified hit damage before crit/shield/armor
// adjustments. Classes differentiate through crit chance and ability kit,
// not raw hit damage.
const playerBaseDamage = 20

// attackConeHalfAngle is half the attack cone's total angle (60 degrees).
const attackConeHalfAngle = math.Pi / 6

// killAttributionWindow is how long after taking damage a death still
// attributes the kill to the last attacker, even if something else (e.g.
// poison) delivers the final blow.
const killAttributionWindow = 5 * time.Second

// tryAttack resolves one attack attempt from p, subject to its cooldown. All
// mobs and enemy players within range and the forward cone take damage.
func (w *World) tryAttack(p *Player, now time.Time) {
	if now.Before(p.AttackCooldownUntil) {
		return
	}
	cooldown := time.Duration(w.cfg.Combat.AttackCooldownMs) * time.Millisecond
	p.AttackCooldownUntil = now.Add(cooldown)

	aim := p.Aim
	if aim.Length() == 0 {
		aim = Vec2{X: 1, Y: 0}
	}

	for _, m := range w.Mobs {
		if m.State == MobDead || m.RoomID != p.CurrentRoomID {
			continue
		}
		if !w.inAttackCone(p.Position, aim, m.Position, w.cfg.Combat.AttackRange) {
			continue
		}
		w.damageMob(p, m, now)
	}

	for _, other := range w.Players {
		if other.ID == p.ID || !other.Alive || other.TeamID == p.TeamID {
			continue
		}
		if other.CurrentRoomID != p.CurrentRoomID {
			continue
		}
		if !w.inAttackCone(p.Position, aim, other.Position, w.cfg.Combat.AttackRange) {
			continue
		}
		w.damagePlayer(p.ID, other, now, "")
	}
}

func (w *World) inAttackCone(origin, facing, target Vec2, maxRange float64) bool {
	toTarget := Vec2{X: target.X - origin.X, Y: target.Y - origin.Y}
	dist := toTarget.Length()
	if dist > maxRange || dist == 0 {
		return false
	}
	cos := (facing.X*toTarget.X + facing.Y*toTarget.Y) / (facing.Length() * dist)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	angle := math.Acos(cos)
	return angle <= attackConeHalfAngle
}

func (w *World) rollCrit(p *Player) bool {
	return w.rng.Float64() < p.Class.BaseCritChance()
}

// rollDamage computes one hit's raw damage: (base_damage + strength*2) ×
// (1 ± 0.2 random variance) × class_multiplier, then ×1.5 on crit. A nil
// attacker (source-less damage) falls back to base damage with no class or
// strength term.
func (w *World) rollDamage(attacker *Player, crit bool) float64 {
	strength := 0.0
	classMul := 1.0
	if attacker != nil {
		strength = attacker.Strength
		classMul = attacker.Class.DamageModifier()
	}

	damage := (float64(playerBaseDamage) + strength*2) * classMul
	damage *= 1 + (w.rng.Float64()*0.4 - 0.2)
	if crit {
		damage *= 1.5
	}
	return damage
}

// applyShieldReduction halves incoming damage while victim's Shield status is
// active, on top of the flat shield pool absorbed separately.
func applyShieldReduction(victim *Player, damage float64, now time.Time) float64 {
	if victim.HasStatus(StatusShield, now) {
		return damage * 0.5
	}
	return damage
}

// damagePlayer applies combat damage to a victim, absorbing shield first,
// and records the attacker as the attribution source for a short window.
func (w *World) damagePlayer(attackerID string, victim *Player, now time.Time, ability string) {
	if !victim.Alive {
		return
	}

	attacker := w.Players[attackerID]
	crit := attacker != nil && w.rollCrit(attacker)
	damage := w.rollDamage(attacker, crit)
	damage = applyShieldReduction(victim, damage, now)

	if victim.Shield > 0 {
		absorbed := math.Min(victim.Shield, damage)
		victim.Shield -= absorbed
		damage -= absorbed
	}
	if victim.Armor > 0 {
		damage -= victim.Armor
	}
	if damage < 1 {
		damage = 1
	}

	dealt := int(math.Round(damage))
	victim.Health -= dealt
	victim.LastDamagedBy = attackerID
	victim.LastDamagedAt = now

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeDamage, w.ID, w.TickNum, attackerID, eventlog.DamagePayload{
			AttackerID: attackerID,
			VictimID:   victim.ID,
			Damage:     dealt,
			VictimHP:   victim.Health,
			AbilityID:  ability,
		})
	}

	w.CombatEvents = append(w.CombatEvents, CombatEvent{
		Type: "attack", AttackerID: attackerID, VictimID: victim.ID,
		Damage: dealt, Crit: crit, Ability: ability, At: now,
	})

	if victim.Health <= 0 {
		w.killPlayer(attackerID, victim, now)
	}
}

func (w *World) killPlayer(attackerID string, victim *Player, now time.Time) {
	victim.Health = 0
	victim.Alive = false
	victim.Deaths++

	killer := attackerID
	if killer == "" && victim.LastDamagedBy != "" && now.Sub(victim.LastDamagedAt) <= killAttributionWindow {
		killer = victim.LastDamagedBy
	}

	if k, ok := w.Players[killer]; ok && killer != "" {
		k.Kills++
	}

	w.CombatEvents = append(w.CombatEvents, CombatEvent{
		Type: "death", AttackerID: killer, VictimID: victim.ID, At: now,
	})

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeKill, w.ID, w.TickNum, killer, eventlog.KillPayload{
			KillerID:     killer,
			VictimID:     victim.ID,
			KillerKills:  w.killerKillCount(killer),
			VictimDeaths: victim.Deaths,
		})
	}

	w.dropPlayerLoot(victim, now)
}

// dropPlayerLoot scatters the victim's top-3 highest-rarity inventory items
// around the death position and clears them from the inventory (SPEC_FULL
// §4.4). Remaining items stay with the player in case of reconnection.
func (w *World) dropPlayerLoot(victim *Player, now time.Time) {
	if len(victim.Inventory) == 0 {
		return
	}

	sort.Slice(victim.Inventory, func(i, j int) bool {
		return victim.Inventory[i].Rarity > victim.Inventory[j].Rarity
	})

	n := 3
	if n > len(victim.Inventory) {
		n = len(victim.Inventory)
	}

	for i := 0; i < n; i++ {
		item := victim.Inventory[i].LootItem
		item.ID = fmt.Sprintf("loot_%d_%s_%d", w.TickNum, victim.ID, i)
		item.Position = victim.Position
		item.RoomID = victim.CurrentRoomID
		item.SpawnedAt = now
		w.Loot[item.ID] = &item
		w.LootEvents = append(w.LootEvents, LootEvent{Type: "spawn", LootID: item.ID, RoomID: item.RoomID, At: now})
	}

	victim.Inventory = victim.Inventory[n:]
}

func (w *World) killerKillCount(killerID string) int {
	if k, ok := w.Players[killerID]; ok {
		return k.Kills
	}
	return 0
}

// damageMob applies combat damage to a mob and handles its death.
func (w *World) damageMob(attacker *Player, m *Mob, now time.Time) {
	if m.State == MobDead {
		return
	}

	crit := w.rollCrit(attacker)
	rolled := w.rollDamage(attacker, crit)
	if m.Stats.Armor > 0 {
		rolled -= m.Stats.Armor
	}
	if rolled < 1 {
		rolled = 1
	}
	damage := int(math.Round(rolled))

	m.Health -= damage
	m.Dirty = true
	m.TargetID = attacker.ID
	if m.State == MobIdle || m.State == MobPatrol {
		m.State = MobAlert
	}

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeDamage, w.ID, w.TickNum, attacker.ID, eventlog.DamagePayload{
			AttackerID: attacker.ID,
			VictimID:   m.ID,
			Damage:     damage,
			VictimHP:   m.Health,
		})
	}

	w.CombatEvents = append(w.CombatEvents, CombatEvent{
		Type: "attack", AttackerID: attacker.ID, VictimID: m.ID, Damage: damage, Crit: crit, At: now,
	})

	if m.Health <= 0 {
		m.Health = 0
		m.State = MobDead
		m.DeadAt = now
		m.Dirty = true

		attacker.XP += w.mobXPReward(m)
		w.maybeLevelUp(attacker)

		w.CombatEvents = append(w.CombatEvents, CombatEvent{
			Type: "death", AttackerID: attacker.ID, VictimID: m.ID, At: now,
		})

		w.dropMobLoot(m, now)
	}
}

func (w *World) mobXPReward(m *Mob) int {
	base := 10
	if m.IsBoss {
		base = 100
	}
	return base
}

func (w *World) maybeLevelUp(p *Player) {
	threshold := 100 * p.Level
	for p.XP >= threshold && threshold > 0 {
		p.XP -= threshold
		p.Level++
		threshold = 100 * p.Level
	}
}
