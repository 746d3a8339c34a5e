// Package world implements the authoritative per-world simulation: movement,
// collision, mob AI, combat, loot, extraction, and win-condition checks. Each
// World's mutable state is owned exclusively by the goroutine running its
// current tick.
package world

import (
	"math"
	"time"

	"arenaserver/internal/input"
)

// Class is a player's chosen archetype; it fixes base stats, speed
// modifier, crit chance, and available abilities.
type Class string

const (
	ClassScout   Class = "scout"
	ClassTank    Class = "tank"
	ClassSupport Class = "support"
)

// SpeedModifier returns the class's unitless movement speed multiplier.
func (c Class) SpeedModifier() float64 {
	switch c {
	case ClassScout:
		return 1.1
	case ClassTank:
		return 0.9
	default:
		return 1.0
	}
}

// BaseCritChance returns the class's baseline critical-hit chance.
func (c Class) BaseCritChance() float64 {
	if c == ClassScout {
		return 0.15
	}
	return 0.05
}

// DamageModifier returns the class's unitless damage multiplier, applied
// after the strength/variance/crit terms of the damage formula.
func (c Class) DamageModifier() float64 {
	switch c {
	case ClassTank:
		return 1.15
	case ClassScout:
		return 0.9
	default:
		return 1.0
	}
}

// Vec2 is a 2-D point or direction on the world plane.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) DistanceTo(o Vec2) float64 {
	return math.Hypot(o.X-v.X, o.Y-v.Y)
}

// StatusEffectType enumerates the closed set of status effects.
type StatusEffectType string

const (
	StatusShield StatusEffectType = "shield"
	StatusSlow   StatusEffectType = "slow"
	StatusSpeed  StatusEffectType = "speed"
	StatusPoison StatusEffectType = "poison"
	StatusRegen  StatusEffectType = "regen"
	StatusStealth StatusEffectType = "stealth"
)

// StatusEffect is a timed modifier applied to a player. Re-applying the same
// type overwrites magnitude and expiry rather than stacking.
type StatusEffect struct {
	Type      StatusEffectType
	Magnitude float64
	AppliedAt time.Time
	ExpiresAt time.Time
	SourceID  string

	// carry accumulates the fractional per-tick damage/heal for poison and
	// regen so integer application doesn't lose magnitude to rounding.
	carry float64
}

func (s StatusEffect) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// AbilityType is the closed set of class abilities.
type AbilityType string

const (
	AbilityDash   AbilityType = "dash"
	AbilityStealth AbilityType = "stealth"
	AbilityCharge AbilityType = "charge"
	AbilityShield AbilityType = "shield"
	AbilityHeal   AbilityType = "heal"
	AbilityBuff   AbilityType = "buff"
)

// AbilitiesForClass returns the abilities a class may invoke.
func AbilitiesForClass(c Class) []AbilityType {
	switch c {
	case ClassScout:
		return []AbilityType{AbilityDash, AbilityStealth}
	case ClassTank:
		return []AbilityType{AbilityCharge, AbilityShield}
	case ClassSupport:
		return []AbilityType{AbilityHeal, AbilityBuff}
	default:
		return nil
	}
}

// InventoryItem is a loot item that has been picked up by a player.
type InventoryItem struct {
	LootItem
	Equipped bool
}

// Player is the authoritative state of one connected, in-world combatant.
// Mutated only by its owning World's tick goroutine.
type Player struct {
	ID       string
	Name     string
	TeamID   string
	Class    Class

	Position Vec2
	Velocity Vec2
	Aim      Vec2

	Health    int
	MaxHealth int
	Mana      float64
	MaxMana   float64
	Shield    float64
	MaxShield float64

	Level int
	XP    int
	Kills int
	Deaths int

	// Strength adds a flat +2 damage per point to the attack formula
	// (SPEC_FULL §4.4).
	Strength float64

	// Armor is a flat damage reduction applied after Shield in the combat
	// pipeline, mirroring Mob.Stats.Armor (SPEC_FULL §4.4).
	Armor float64

	Inventory []InventoryItem
	Status    []StatusEffect
	Cooldowns map[AbilityType]time.Time // next time the ability is usable
	AttackCooldownUntil time.Time

	CurrentRoomID string
	Alive         bool

	LastActivity time.Time
	LastDamagedBy string
	LastDamagedAt time.Time

	Extracting   bool
	ExtractionID string
	ExtractStart time.Time

	InputBuf *input.Buffer

	// DesiredMove/Sprinting/LastInputSeq are set by applyInputs from the most
	// recent drained input frame and consumed by the Movement phase.
	DesiredMove  Vec2
	Sprinting    bool
	LastInputSeq uint32

	// TeleportAuthorized is set for the tick a teleport-class ability (Dash,
	// Charge) relocates the player, so the anti-cheat movement check doesn't
	// flag its own effect. Cleared at the start of the next Movement phase.
	TeleportAuthorized bool

	anticheat antiCheatHistory
}

// HasStatus reports whether a status of the given type is currently active.
func (p *Player) HasStatus(t StatusEffectType, now time.Time) bool {
	for _, s := range p.Status {
		if s.Type == t && !s.Expired(now) {
			return true
		}
	}
	return false
}

// ApplyStatus adds or overwrites a status effect of the same type.
func (p *Player) ApplyStatus(s StatusEffect) {
	for i := range p.Status {
		if p.Status[i].Type == s.Type {
			p.Status[i] = s
			return
		}
	}
	p.Status = append(p.Status, s)
}

// PruneExpiredStatus removes status effects that have expired as of now.
func (p *Player) PruneExpiredStatus(now time.Time) {
	kept := p.Status[:0]
	for _, s := range p.Status {
		if !s.Expired(now) {
			kept = append(kept, s)
		}
	}
	p.Status = kept
}

// MobState is a node in the mob AI state machine (SPEC_FULL §4.5).
type MobState int

const (
	MobSpawning MobState = iota
	MobIdle
	MobPatrol
	MobAlert
	MobPursuing
	MobAttacking
	MobFleeing
	MobGuarding
	MobCasting
	MobEnraged
	MobStunned
	MobDead
)

// MobPriority is the per-tick AI scheduling bucket, based on distance to the
// nearest live player.
type MobPriority int

const (
	PriorityLow MobPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Mob is an authoritative NPC.
type Mob struct {
	ID       string
	Type     string
	IsBoss   bool
	Position Vec2
	RoomID   string

	State    MobState
	Priority MobPriority

	Health    int
	MaxHealth int
	Stats     MobStats

	AbilityCooldowns map[string]time.Time

	GroupID string
	IsLeader bool

	SpawnedAt time.Time
	DeadAt    time.Time

	TargetID string
	Dirty    bool

	// BossPhase tracks how many HP-threshold phase transitions a boss has
	// already crossed (0 = not yet enraged). Non-boss mobs leave it at 0.
	BossPhase int

	// CastUntil and StunnedUntil gate the Casting and Stunned states: the
	// mob holds that state until now reaches the deadline, then the state
	// machine resumes (SPEC_FULL §4.5).
	CastUntil    time.Time
	StunnedUntil time.Time

	patrolGoal Vec2
}

// MobStats holds a mob's combat stats, independently scalable for
// difficulty and boss rescaling.
type MobStats struct {
	Damage         int
	AttackRange    float64
	AttackCooldown time.Duration
	MoveSpeed      float64
	DetectRange    float64
	Aggression     float64
	Armor          float64
}

// Room is one cell of world generation.
type Room struct {
	ID             string
	Center         Vec2
	Size           float64
	Connections    []string
	Completed      bool
	CompletingTeam string
}

// ExtractionPoint is a world-exit a player can channel at to leave with
// their progress.
type ExtractionPoint struct {
	ID         string
	Position   Vec2
	RoomID     string
	Active     bool
	DurationS  float64

	Extracting map[string]time.Time // playerID -> start time
}

// LootItem is a pickable or usable item.
type LootItem struct {
	ID         string
	Name       string
	Type       string // "consumable", "equipment", "key"
	Rarity     int    // 1..5
	Position   Vec2
	RoomID     string
	SpawnedAt  time.Time
	Properties map[string]string
	Stats      map[string]float64
}
