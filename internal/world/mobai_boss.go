package world

import (
	"fmt"
	"math"
	"time"

	"arenaserver/internal/eventlog"
)

// enrageDamageMultiplier scales a boss's attack damage once it has crossed
// its final HP-threshold phase transition.
const enrageDamageMultiplier = 1.5

// enrageAggressionMultiplier and enrageCooldownMultiplier scale a boss's
// Stats.Aggression and Stats.AttackCooldown, respectively, the instant it
// enters MobEnraged (SPEC_FULL §4.5).
const enrageAggressionMultiplier = 1.5
const enrageCooldownMultiplier = 0.7

// bossPhaseThresholds are the HP ratios at which a boss transitions phase,
// in crossing order. Each crossing summons minions and, on the final
// threshold, enrages.
var bossPhaseThresholds = []float64{0.5, 0.3}

const bossMinionsPerPhase = 2

// bossHealCooldown and bossHealFraction gate a low-health boss's self-heal
// (SPEC_FULL §4.5: "heal if available and hp < 30%") — "available" meaning
// off cooldown.
const bossHealCooldown = 20 * time.Second
const bossHealFraction = 0.15

// runBossLogic checks every live boss against its phase thresholds and
// applies the phase transition (minion summon, and enrage on the last
// threshold) exactly once per threshold crossed.
func (w *World) runBossLogic(now time.Time) {
	for _, m := range w.Mobs {
		if !m.IsBoss || m.State == MobDead || m.MaxHealth == 0 {
			continue
		}

		hpRatio := float64(m.Health) / float64(m.MaxHealth)

		for m.BossPhase < len(bossPhaseThresholds) && hpRatio <= bossPhaseThresholds[m.BossPhase] {
			w.triggerBossPhase(m, now)
			hpRatio = float64(m.Health) / float64(m.MaxHealth)
		}

		if hpRatio < 0.3 {
			w.maybeBossHeal(m, now)
		}
	}
}

// maybeBossHeal heals a low-health boss for a fraction of its max health,
// gated by its own cooldown so it's not a free full heal every tick.
func (w *World) maybeBossHeal(m *Mob, now time.Time) {
	if m.AbilityCooldowns == nil {
		m.AbilityCooldowns = make(map[string]time.Time)
	}
	if next, ok := m.AbilityCooldowns["heal"]; ok && now.Before(next) {
		return
	}
	m.AbilityCooldowns["heal"] = now.Add(bossHealCooldown)

	heal := int(float64(m.MaxHealth) * bossHealFraction)
	m.Health += heal
	if m.Health > m.MaxHealth {
		m.Health = m.MaxHealth
	}
	m.Dirty = true
}

func (w *World) triggerBossPhase(m *Mob, now time.Time) {
	m.BossPhase++
	w.summonMinions(m, bossMinionsPerPhase, now)

	if m.BossPhase >= len(bossPhaseThresholds) {
		m.State = MobEnraged
		m.Stats.Aggression *= enrageAggressionMultiplier
		if m.Stats.Aggression > 1 {
			m.Stats.Aggression = 1
		}
		m.Stats.AttackCooldown = time.Duration(float64(m.Stats.AttackCooldown) * enrageCooldownMultiplier)
	}

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeBossPhase, w.ID, w.TickNum, "", eventlog.BossPhasePayload{
			MobID:   m.ID,
			Phase:   m.BossPhase,
			HPRatio: float64(m.Health) / float64(m.MaxHealth),
		})
	}
}

func (w *World) summonMinions(boss *Mob, count int, now time.Time) {
	for i := 0; i < count; i++ {
		angle := float64(i) * (2 * math.Pi / float64(count))
		pos := Vec2{
			X: boss.Position.X + 3*math.Cos(angle),
			Y: boss.Position.Y + 3*math.Sin(angle),
		}
		id := fmt.Sprintf("minion_%s_%d_%d", boss.ID, w.TickNum, i)
		w.Mobs[id] = &Mob{
			ID: id, Type: "minion", Position: pos, RoomID: boss.RoomID,
			State: MobSpawning, SpawnedAt: now,
			Health: 30, MaxHealth: 30,
			Stats: MobStats{
				Damage: 5, AttackRange: 2, AttackCooldown: time.Second,
				MoveSpeed: 3, DetectRange: 15, Aggression: 0.8, Armor: 1,
			},
		}
	}
}
