package world

import (
	"time"

	"arenaserver/internal/config"
	"arenaserver/internal/input"
)

// testConfig returns a Config with the documented defaults (SPEC_FULL §6),
// small enough for deterministic single-tick assertions.
func testConfig() Config {
	return Config{
		HalfExtent: 240,
		Movement: config.MovementConfig{
			BaseSpeed:               5,
			SprintMultiplier:        1.5,
			PlayerCollisionRadius:   0.8,
			MobCollisionRadius:      1.0,
			MaxInputMagnitude:       1.1,
			TeleportMaxDistance:     15,
			ManaCostPerSprintSecond: 1,
		},
		Combat: config.CombatConfig{
			MaxTeamSize:           8,
			AttackRange:           3.5,
			AttackCooldownMs:      500,
			BaseHealth:            100,
			MaxInventorySize:      20,
			ExtractionTimeSeconds: 30,
		},
		AI: config.AIConfig{
			GlobalAggressionMul:   1.0,
			MaxMobsPerRoom:        6,
			DynamicSpawnInterval:  60,
			MaxDynamicMobs:        40,
			OptimizationDistance:  50,
			BossSpawnChance:       0.05,
			EnableGroupBehavior:   true,
			EnableDynamicSpawning: true,
			DifficultySetting:     1.0,
			HelpCallRadius:        20,
		},
		Loot: config.LootConfig{
			MaxPerRoom:           10,
			ExpirationMinutes:    10,
			RespawnIntervalS:     45,
			GrabRange:            3,
			GlobalDropMultiplier: 1.0,
			EnableDynamicRarity:  true,
			LuckMultiplier:       1.0,
			MaxDropsPerMob:       3,
		},
		WorldGen: config.WorldGenConfig{
			GridX:            4,
			GridY:            4,
			RoomSize:         50,
			RoomSpacing:      60,
			MobsPerRoom:      3,
			InitialLootCount: 20,
		},
	}
}

func newTestWorld() *World {
	w := New("test_world", testConfig(), nil)
	w.Generate(time.Now())
	return w
}

func newTestPlayer(id, teamID string, class Class) *Player {
	return &Player{
		ID: id, Name: id, TeamID: teamID, Class: class,
		Health: 100, MaxHealth: 100,
		MaxMana: 100,
		Level:   1,
		Alive:   true,
		Cooldowns: make(map[AbilityType]time.Time),
		InputBuf:  input.NewBuffer(),
	}
}
