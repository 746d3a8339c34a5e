package world

import (
	"fmt"
	"time"
)

// Generate lays out the room grid, extraction points, and initial
// mob/loot population for a freshly created world. Call once before any
// player joins.
func (w *World) Generate(now time.Time) {
	gx, gy := w.cfg.WorldGen.GridX, w.cfg.WorldGen.GridY
	if gx < 1 {
		gx = 1
	}
	if gy < 1 {
		gy = 1
	}

	spacing := w.cfg.WorldGen.RoomSpacing
	originX := -float64(gx-1) * spacing / 2
	originY := -float64(gy-1) * spacing / 2

	grid := make([][]string, gx)
	for x := 0; x < gx; x++ {
		grid[x] = make([]string, gy)
		for y := 0; y < gy; y++ {
			id := fmt.Sprintf("room_%d_%d", x, y)
			grid[x][y] = id
			w.Rooms[id] = &Room{
				ID:     id,
				Center: Vec2{X: originX + float64(x)*spacing, Y: originY + float64(y)*spacing},
				Size:   w.cfg.WorldGen.RoomSize,
			}
		}
	}

	for x := 0; x < gx; x++ {
		for y := 0; y < gy; y++ {
			room := w.Rooms[grid[x][y]]
			if x+1 < gx {
				room.Connections = append(room.Connections, grid[x+1][y])
				w.Rooms[grid[x+1][y]].Connections = append(w.Rooms[grid[x+1][y]].Connections, room.ID)
			}
			if y+1 < gy {
				room.Connections = append(room.Connections, grid[x][y+1])
				w.Rooms[grid[x][y+1]].Connections = append(w.Rooms[grid[x][y+1]].Connections, room.ID)
			}
		}
	}

	w.placeExtractionPoints(grid, gx, gy, now)
	w.populateInitialMobs(now)
	w.populateInitialLoot(now)
}

// placeExtractionPoints puts one extraction point in each of the grid's four
// corner rooms (collapsing duplicates when the grid is smaller than 2x2).
func (w *World) placeExtractionPoints(grid [][]string, gx, gy int, now time.Time) {
	corners := map[string][2]int{
		"ne": {gx - 1, gy - 1},
		"nw": {0, gy - 1},
		"se": {gx - 1, 0},
		"sw": {0, 0},
	}

	seen := make(map[string]bool)
	for name, c := range corners {
		roomID := grid[c[0]][c[1]]
		if seen[roomID] {
			continue
		}
		seen[roomID] = true

		room := w.Rooms[roomID]
		id := "extract_" + name
		w.Extraction[id] = &ExtractionPoint{
			ID:         id,
			Position:   room.Center,
			RoomID:     roomID,
			Active:     true,
			DurationS:  w.cfg.Combat.ExtractionTimeSeconds,
			Extracting: make(map[string]time.Time),
		}
	}
}

func (w *World) populateInitialMobs(now time.Time) {
	for _, room := range w.Rooms {
		for i := 0; i < w.cfg.WorldGen.MobsPerRoom; i++ {
			tmpl := w.pickWeightedTemplate()
			id := fmt.Sprintf("mob_%s_init_%d", room.ID, i)
			pos := Vec2{
				X: room.Center.X + (w.rng.Float64()*2-1)*room.Size*0.3,
				Y: room.Center.Y + (w.rng.Float64()*2-1)*room.Size*0.3,
			}
			w.Mobs[id] = &Mob{
				ID: id, Type: tmpl.typeName, Position: pos, RoomID: room.ID,
				State: MobSpawning, SpawnedAt: now,
				Health: tmpl.health, MaxHealth: tmpl.health,
				Stats: w.applyGlobalAggression(tmpl.stats),
			}
		}
	}
}

func (w *World) populateInitialLoot(now time.Time) {
	rooms := make([]*Room, 0, len(w.Rooms))
	for _, r := range w.Rooms {
		rooms = append(rooms, r)
	}
	if len(rooms) == 0 {
		return
	}

	for i := 0; i < w.cfg.WorldGen.InitialLootCount; i++ {
		room := rooms[w.rng.Intn(len(rooms))]
		pos := Vec2{
			X: room.Center.X + (w.rng.Float64()*2-1)*room.Size*0.4,
			Y: room.Center.Y + (w.rng.Float64()*2-1)*room.Size*0.4,
		}
		item := w.rollLoot(pos, room.ID, now)
		w.Loot[item.ID] = item
	}
}

// cornerSpawnOffsets places up to four teams at distinct corners of the
// world plane, well clear of the wall clamp.
var cornerSpawnOffsets = []Vec2{
	{X: 0.85, Y: 0.85},
	{X: -0.85, Y: -0.85},
	{X: 0.85, Y: -0.85},
	{X: -0.85, Y: 0.85},
}

// SpawnPositionForTeam returns a deterministic corner spawn point for
// teamIndex (0-3). Teams beyond 4 wrap around, which only matters for
// configurations exceeding the four-corner layout.
func (w *World) SpawnPositionForTeam(teamIndex int) Vec2 {
	offset := cornerSpawnOffsets[teamIndex%len(cornerSpawnOffsets)]
	return Vec2{X: offset.X * w.cfg.HalfExtent, Y: offset.Y * w.cfg.HalfExtent}
}
