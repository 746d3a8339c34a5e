package world

import "time"

// runStatusEffects applies poison/regen ticks, then prunes anything that has
// expired. Magnitude is per-second; carry holds the fractional remainder so
// slow ticks (poison 3/s at 60 Hz) still average out correctly over time.
func (w *World) runStatusEffects(dt float64, now time.Time) {
	for _, p := range w.Players {
		if !p.Alive {
			continue
		}
		for i := range p.Status {
			s := &p.Status[i]
			if s.Expired(now) {
				continue
			}
			switch s.Type {
			case StatusPoison:
				s.carry += s.Magnitude * dt
				if whole := int(s.carry); whole > 0 {
					s.carry -= float64(whole)
					p.Health -= whole
					if p.Health <= 0 {
						w.killPlayer(s.SourceID, p, now)
					}
				}
			case StatusRegen:
				s.carry += s.Magnitude * dt
				if whole := int(s.carry); whole > 0 {
					s.carry -= float64(whole)
					p.Health += whole
					if p.Health > p.MaxHealth {
						p.Health = p.MaxHealth
					}
				}
			}
		}
		p.PruneExpiredStatus(now)
	}
}
