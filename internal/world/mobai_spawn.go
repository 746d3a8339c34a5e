package world

import (
	"fmt"
	"time"
)

type mobTemplate struct {
	typeName string
	weight   int
	stats    MobStats
	health   int
}

// mobTemplates is the weighted pool dynamic spawning draws from. A real
// content pipeline would load these from data; the simulation only needs
// plausible variety.
var mobTemplates = []mobTemplate{
	{typeName: "grunt", weight: 5, health: 40, stats: MobStats{Damage: 8, AttackRange: 2, AttackCooldown: 1200 * time.Millisecond, MoveSpeed: 3.2, DetectRange: 14, Aggression: 0.6, Armor: 2}},
	{typeName: "archer", weight: 3, health: 25, stats: MobStats{Damage: 12, AttackRange: 8, AttackCooldown: 1800 * time.Millisecond, MoveSpeed: 2.6, DetectRange: 18, Aggression: 0.5, Armor: 0}},
	{typeName: "brute", weight: 2, health: 90, stats: MobStats{Damage: 18, AttackRange: 2.5, AttackCooldown: 1600 * time.Millisecond, MoveSpeed: 2.2, DetectRange: 12, Aggression: 0.8, Armor: 6}},
}

const (
	bossHealthMultiplier = 8.0
	bossDamageMultiplier = 3.0
	bossDetectMultiplier = 1.5
)

// runDynamicSpawning periodically adds mobs to under-populated rooms, up to
// the dynamic mob cap, with a small chance per spawn of rescaling the roll
// into a boss.
func (w *World) runDynamicSpawning(now time.Time) {
	if !w.cfg.AI.EnableDynamicSpawning {
		return
	}
	if now.Before(w.nextDynamicSpawnAt) {
		return
	}
	w.nextDynamicSpawnAt = now.Add(time.Duration(w.cfg.AI.DynamicSpawnInterval) * time.Second)

	if w.countDynamicMobs() >= w.cfg.AI.MaxDynamicMobs {
		return
	}

	room := w.pickUnderpopulatedRoom()
	if room == nil {
		return
	}

	w.spawnDynamicMob(room, now)
}

func (w *World) countDynamicMobs() int {
	n := 0
	for _, m := range w.Mobs {
		if m.State != MobDead {
			n++
		}
	}
	return n
}

func (w *World) pickUnderpopulatedRoom() *Room {
	for _, r := range w.Rooms {
		if r.Completed {
			continue
		}
		if len(w.LiveMobsInRoom(r.ID)) < w.cfg.AI.MaxMobsPerRoom {
			return r
		}
	}
	return nil
}

// applyGlobalAggression scales a freshly rolled mob's base aggression by the
// operator-tunable AI.GlobalAggressionMul knob (SPEC_FULL §6), independent
// of the difficulty formula.
func (w *World) applyGlobalAggression(stats MobStats) MobStats {
	stats.Aggression *= w.cfg.AI.GlobalAggressionMul
	if stats.Aggression > 1 {
		stats.Aggression = 1
	}
	return stats
}

func (w *World) spawnDynamicMob(room *Room, now time.Time) {
	tmpl := w.pickWeightedTemplate()
	stats := w.applyGlobalAggression(tmpl.stats)
	health := tmpl.health
	isBoss := false

	scale := w.difficultyScale(now)
	stats.Damage = int(float64(stats.Damage) * scale)
	health = int(float64(health) * scale)

	if w.rng.Float64() < w.cfg.AI.BossSpawnChance {
		isBoss = true
		health = int(float64(health) * bossHealthMultiplier)
		stats.Damage = int(float64(stats.Damage) * bossDamageMultiplier)
		stats.DetectRange *= bossDetectMultiplier
	}

	id := fmt.Sprintf("mob_%s_%d", tmpl.typeName, w.TickNum)
	pos := Vec2{
		X: room.Center.X + (w.rng.Float64()*2-1)*room.Size*0.3,
		Y: room.Center.Y + (w.rng.Float64()*2-1)*room.Size*0.3,
	}

	w.Mobs[id] = &Mob{
		ID: id, Type: tmpl.typeName, IsBoss: isBoss,
		Position: pos, RoomID: room.ID,
		State: MobSpawning, SpawnedAt: now,
		Health: health, MaxHealth: health,
		Stats: stats,
	}
}

func (w *World) pickWeightedTemplate() mobTemplate {
	total := 0
	for _, t := range mobTemplates {
		total += t.weight
	}
	roll := w.rng.Intn(total)
	for _, t := range mobTemplates {
		if roll < t.weight {
			return t
		}
		roll -= t.weight
	}
	return mobTemplates[0]
}

// maxDifficultyScale caps the compounded difficulty formula so late-game
// mobs stay fightable rather than unbounded.
const maxDifficultyScale = 5.0

// difficultyScale implements SPEC_FULL §4.5's difficulty formula:
// (1 + age_hours*0.1) * (1 + (avg_player_level-1)*0.15) * difficulty_setting.
func (w *World) difficultyScale(now time.Time) float64 {
	if !w.cfg.AI.DifficultyScaling {
		return 1.0
	}
	ageHours := now.Sub(w.CreatedAt).Hours()
	avgLevel := w.averagePlayerLevel()
	scale := (1 + ageHours*0.1) * (1 + (avgLevel-1)*0.15) * w.cfg.AI.DifficultySetting
	if scale > maxDifficultyScale {
		scale = maxDifficultyScale
	}
	if scale < 1 {
		scale = 1
	}
	return scale
}

// averagePlayerLevel returns the live player average level, or 1 if the
// world currently has no players (so difficulty never scales below baseline
// on an empty world).
func (w *World) averagePlayerLevel() float64 {
	if len(w.Players) == 0 {
		return 1
	}
	total := 0
	for _, p := range w.Players {
		total += p.Level
	}
	return float64(total) / float64(len(w.Players))
}
