package world

// rebuildSpatialIndex rebuilds the Grid and the player/mob index slices it
// references by position. Called once per tick, after Movement and before
// Collision/AI, both of which query it.
func (w *World) rebuildSpatialIndex() {
	w.grid.Clear()

	w.playerSlice = w.playerSlice[:0]
	for _, p := range w.Players {
		if !p.Alive {
			continue
		}
		idx := uint32(len(w.playerSlice))
		w.playerSlice = append(w.playerSlice, p)
		w.grid.Insert(idx, p.Position.X, p.Position.Y)
	}

	w.mobSlice = w.mobSlice[:0]
	for _, m := range w.Mobs {
		if m.State == MobDead {
			continue
		}
		w.mobSlice = append(w.mobSlice, m)
	}
}

// runCollision resolves player-player overlap via sweep-and-prune broad
// phase plus narrow-phase circle checks, then pushes players out of any mob
// they've walked into. Mobs are treated as fixed obstacles in this impulse
// step; mob-mob separation is left to their own AI movement.
func (w *World) runCollision() {
	w.rebuildSpatialIndex()

	w.resolvePlayerPlayerCollisions()
	w.resolvePlayerMobCollisions()
}

func (w *World) resolvePlayerPlayerCollisions() {
	n := len(w.playerSlice)
	if n < 2 {
		return
	}

	radius := float32(w.cfg.Movement.PlayerCollisionRadius)
	positions := make([][2]float32, n)
	for i, p := range w.playerSlice {
		positions[i] = [2]float32{float32(p.Position.X), float32(p.Position.Y)}
	}

	pairs := w.sap.UpdateFromSlice(positions, radius)
	minDist := w.cfg.Movement.PlayerCollisionRadius * 2

	for _, pair := range pairs {
		a := w.playerSlice[pair.A]
		b := w.playerSlice[pair.B]

		dist := a.Position.DistanceTo(b.Position)
		if dist >= minDist || dist == 0 {
			continue
		}

		overlap := minDist - dist
		dir := Vec2{X: b.Position.X - a.Position.X, Y: b.Position.Y - a.Position.Y}
		length := dir.Length()
		if length == 0 {
			dir = Vec2{X: 1, Y: 0}
			length = 1
		}
		push := dir.Scale(overlap / length / 2)

		a.Position = a.Position.Add(Vec2{X: -push.X, Y: -push.Y})
		b.Position = b.Position.Add(push)
	}
}

func (w *World) resolvePlayerMobCollisions() {
	if len(w.mobSlice) == 0 {
		return
	}

	minDist := w.cfg.Movement.PlayerCollisionRadius + w.cfg.Movement.MobCollisionRadius

	for _, p := range w.playerSlice {
		for _, m := range w.mobSlice {
			if m.RoomID != p.CurrentRoomID {
				continue
			}
			dist := p.Position.DistanceTo(m.Position)
			if dist >= minDist || dist == 0 {
				continue
			}
			overlap := minDist - dist
			dir := Vec2{X: p.Position.X - m.Position.X, Y: p.Position.Y - m.Position.Y}
			length := dir.Length()
			if length == 0 {
				dir = Vec2{X: 1, Y: 0}
				length = 1
			}
			p.Position = p.Position.Add(dir.Scale(overlap / length))
		}
	}
}
