package world

import (
	"fmt"
	"time"

	"arenaserver/internal/protocol"
)

// lootTypeNames and lootRarityBase drive procedural naming/drop rolls; a
// real content pipeline would load these from data files, but the
// simulation only needs plausible variety, not authored items.
var lootTypeNames = []string{"consumable", "equipment", "key"}

// masterKeyName is the one key that never consumes on use (SPEC_FULL §4.6).
const masterKeyName = "master key"

// grabLoot picks up lootID for p if it exists, is in range, and the
// inventory has room.
func (w *World) grabLoot(p *Player, lootID string, now time.Time) (*LootItem, error) {
	item, ok := w.Loot[lootID]
	if !ok {
		return nil, protocol.NewGameError(protocol.ErrNotFound, "loot not found")
	}
	if item.RoomID != p.CurrentRoomID {
		return nil, protocol.NewGameError(protocol.ErrRoomMismatch, "loot is in a different room")
	}
	if p.Position.DistanceTo(item.Position) > w.cfg.Loot.GrabRange {
		return nil, protocol.NewGameError(protocol.ErrOutOfRange, "loot out of grab range")
	}
	if len(p.Inventory) >= w.cfg.Combat.MaxInventorySize {
		return nil, protocol.NewGameError(protocol.ErrInventoryFull, "inventory is full")
	}

	delete(w.Loot, lootID)
	p.Inventory = append(p.Inventory, InventoryItem{LootItem: *item})

	w.LootEvents = append(w.LootEvents, LootEvent{Type: "pickup", LootID: lootID, PlayerID: p.ID, RoomID: item.RoomID, At: now})
	return item, nil
}

// useItem consumes or toggles an inventory item. Consumables apply their
// effect and are removed; equipment toggles Equipped.
func (w *World) useItem(p *Player, itemID string, now time.Time) error {
	idx := -1
	for i, inv := range p.Inventory {
		if inv.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return protocol.NewGameError(protocol.ErrNotFound, "item not in inventory")
	}

	item := p.Inventory[idx]

	switch item.Type {
	case "consumable":
		if !w.applyConsumable(p, item, now) {
			return protocol.NewGameError(protocol.ErrNoEffect, "item would have no effect")
		}
		p.Inventory = append(p.Inventory[:idx], p.Inventory[idx+1:]...)
	case "equipment":
		p.Inventory[idx].Equipped = !p.Inventory[idx].Equipped
	case "key":
		if item.Name != masterKeyName {
			p.Inventory = append(p.Inventory[:idx], p.Inventory[idx+1:]...)
		}
	}

	return nil
}

// applyConsumable applies item's effect to p and reports whether it did
// anything. A consumable rejected at its effect's cap (e.g. healing at full
// health) is left in the inventory and returns false rather than being
// silently wasted (SPEC_FULL §4.6).
func (w *World) applyConsumable(p *Player, item InventoryItem, now time.Time) bool {
	applied := false

	if heal, ok := item.Stats["heal"]; ok && p.Health < p.MaxHealth {
		p.Health += int(heal)
		if p.Health > p.MaxHealth {
			p.Health = p.MaxHealth
		}
		applied = true
	}
	if mana, ok := item.Stats["mana"]; ok && p.Mana < p.MaxMana {
		p.Mana += mana
		if p.Mana > p.MaxMana {
			p.Mana = p.MaxMana
		}
		applied = true
	}
	if dur, ok := item.Stats["speed_duration"]; ok {
		p.ApplyStatus(StatusEffect{
			Type: StatusSpeed, Magnitude: 0.25, AppliedAt: now,
			ExpiresAt: now.Add(time.Duration(dur) * time.Second), SourceID: p.ID,
		})
		applied = true
	}

	return applied
}

// dropMobLoot rolls drops for a mob's death, up to MaxDropsPerMob, each with
// dynamic rarity when enabled.
func (w *World) dropMobLoot(m *Mob, now time.Time) {
	drops := w.cfg.Loot.MaxDropsPerMob
	if drops <= 0 {
		return
	}
	roomLoot := 0
	for _, l := range w.Loot {
		if l.RoomID == m.RoomID {
			roomLoot++
		}
	}

	for i := 0; i < drops; i++ {
		if roomLoot >= w.cfg.Loot.MaxPerRoom {
			break
		}
		dropChance := 0.5 * w.cfg.Loot.GlobalDropMultiplier
		if m.IsBoss {
			dropChance = 1.0
		}
		if w.rng.Float64() > dropChance {
			continue
		}

		item := w.rollLoot(m.Position, m.RoomID, now)
		w.Loot[item.ID] = item
		roomLoot++
		w.LootEvents = append(w.LootEvents, LootEvent{Type: "spawn", LootID: item.ID, RoomID: item.RoomID, At: now})
	}
}

func (w *World) rollLoot(pos Vec2, roomID string, now time.Time) *LootItem {
	rarity := 1
	if w.cfg.Loot.EnableDynamicRarity {
		roll := w.rng.Float64() * w.cfg.Loot.LuckMultiplier
		switch {
		case roll > 0.97:
			rarity = 5
		case roll > 0.90:
			rarity = 4
		case roll > 0.75:
			rarity = 3
		case roll > 0.5:
			rarity = 2
		}
	}

	typ := lootTypeNames[w.rng.Intn(len(lootTypeNames))]
	id := fmt.Sprintf("loot_%d_%d", w.TickNum, w.rng.Int63())

	item := &LootItem{
		ID: id, Name: fmt.Sprintf("%s T%d", typ, rarity), Type: typ, Rarity: rarity,
		Position: pos, RoomID: roomID, SpawnedAt: now,
		Properties: map[string]string{}, Stats: map[string]float64{},
	}
	if typ == "consumable" {
		item.Stats["heal"] = float64(10 * rarity)
	}
	return item
}

// runLoot expires stale loot, culls beyond the per-room density cap, and
// spawns fresh loot on the configured respawn cadence.
func (w *World) runLoot(dt float64, now time.Time) {
	expireAfter := time.Duration(w.cfg.Loot.ExpirationMinutes * float64(time.Minute))
	for id, item := range w.Loot {
		if now.Sub(item.SpawnedAt) > expireAfter {
			delete(w.Loot, id)
			w.LootEvents = append(w.LootEvents, LootEvent{Type: "expire", LootID: id, RoomID: item.RoomID, At: now})
		}
	}

	if now.Before(w.nextLootRespawnAt) {
		return
	}
	w.nextLootRespawnAt = now.Add(time.Duration(w.cfg.Loot.RespawnIntervalS) * time.Second)

	roomCounts := make(map[string]int)
	for _, item := range w.Loot {
		roomCounts[item.RoomID]++
	}

	for _, room := range w.Rooms {
		if room.Completed {
			continue
		}
		if roomCounts[room.ID] >= w.cfg.Loot.MaxPerRoom {
			continue
		}
		pos := Vec2{X: room.Center.X + (w.rng.Float64()-0.5)*room.Size*0.5, Y: room.Center.Y + (w.rng.Float64()-0.5)*room.Size*0.5}
		item := w.rollLoot(pos, room.ID, now)
		w.Loot[item.ID] = item
		w.LootEvents = append(w.LootEvents, LootEvent{Type: "spawn", LootID: item.ID, RoomID: room.ID, At: now})
	}
}
