package world

import (
	"encoding/json"
	"time"

	"arenaserver/internal/input"
)

// FrozenPlayer is the JSON-serializable projection of Player used to survive
// a disconnect inside a session.Snapshot. It omits InputBuf (a live queue,
// not data) and the anti-cheat history (reset fresh on reconnect: a new
// connection gets a clean baseline rather than carrying stale suspicion).
type FrozenPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
	Class  Class  `json:"class"`

	Position Vec2 `json:"position"`
	Aim      Vec2 `json:"aim"`

	Health    int     `json:"health"`
	MaxHealth int     `json:"max_health"`
	Mana      float64 `json:"mana"`
	MaxMana   float64 `json:"max_mana"`
	Shield    float64 `json:"shield"`
	MaxShield float64 `json:"max_shield"`

	Level  int `json:"level"`
	XP     int `json:"xp"`
	Kills  int `json:"kills"`
	Deaths int `json:"deaths"`

	Strength float64 `json:"strength"`
	Armor    float64 `json:"armor"`

	Inventory []InventoryItem `json:"inventory"`
	Status    []StatusEffect  `json:"status"`

	CurrentRoomID string `json:"current_room_id"`
	Alive         bool   `json:"alive"`
}

// Freeze encodes p's durable state for a reconnection token.
func Freeze(p *Player) ([]byte, error) {
	fp := FrozenPlayer{
		ID: p.ID, Name: p.Name, TeamID: p.TeamID, Class: p.Class,
		Position: p.Position, Aim: p.Aim,
		Health: p.Health, MaxHealth: p.MaxHealth,
		Mana: p.Mana, MaxMana: p.MaxMana,
		Shield: p.Shield, MaxShield: p.MaxShield,
		Level: p.Level, XP: p.XP, Kills: p.Kills, Deaths: p.Deaths,
		Strength: p.Strength, Armor: p.Armor,
		Inventory: p.Inventory, Status: p.Status,
		CurrentRoomID: p.CurrentRoomID, Alive: p.Alive,
	}
	return json.Marshal(fp)
}

// Hydrate decodes a FrozenPlayer back into a live Player wired to a fresh
// input buffer for the reconnecting connection.
func Hydrate(data []byte, buf *input.Buffer) (*Player, error) {
	var fp FrozenPlayer
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &Player{
		ID: fp.ID, Name: fp.Name, TeamID: fp.TeamID, Class: fp.Class,
		Position: fp.Position, Aim: fp.Aim,
		Health: fp.Health, MaxHealth: fp.MaxHealth,
		Mana: fp.Mana, MaxMana: fp.MaxMana,
		Shield: fp.Shield, MaxShield: fp.MaxShield,
		Level: fp.Level, XP: fp.XP, Kills: fp.Kills, Deaths: fp.Deaths,
		Strength: fp.Strength, Armor: fp.Armor,
		Inventory: fp.Inventory, Status: fp.Status,
		CurrentRoomID: fp.CurrentRoomID, Alive: fp.Alive,
		Cooldowns:    make(map[AbilityType]time.Time),
		LastActivity: now,
		InputBuf:     buf,
	}
	return p, nil
}

// AddPlayer registers a player with the world, replacing any existing entry
// with the same ID (the reconnection path re-adds the hydrated player under
// its original ID).
func (w *World) AddPlayer(p *Player) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	w.Players[p.ID] = p
}

// RemovePlayer removes a player immediately (used for disconnect-without-
// reconnect-grace paths, as opposed to the deferred extraction removal).
func (w *World) RemovePlayer(id string) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	delete(w.Players, id)
}
