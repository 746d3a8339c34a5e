package world

import (
	"time"

	"arenaserver/internal/eventlog"
)

// roomCompletionFraction is the fraction of rooms that must be completed for
// the world itself to be considered won by room-clear progress, as opposed
// to a last-team-standing finish.
const roomCompletionFraction = 0.8

// checkWinConditions marks newly-cleared rooms and, once a world meets
// either completion condition, marks the world itself completed exactly
// once.
func (w *World) checkWinConditions(now time.Time) {
	if w.Completed {
		return
	}

	for _, room := range w.Rooms {
		if room.Completed {
			continue
		}
		if len(w.LiveMobsInRoom(room.ID)) > 0 {
			continue
		}
		players := w.LivePlayersInRoom(room.ID)
		if len(players) == 0 {
			continue
		}
		room.Completed = true
		room.CompletingTeam = w.majorityTeamInRoom(room.ID)
	}

	if w.roomsClearedFraction() >= roomCompletionFraction {
		w.finishWorld(w.leadingTeamByRoomsCleared(), now)
		return
	}

	if team, ok := w.soleSurvivingTeam(); ok {
		w.finishWorld(team, now)
	}
}

func (w *World) roomsClearedFraction() float64 {
	if len(w.Rooms) == 0 {
		return 0
	}
	cleared := 0
	for _, r := range w.Rooms {
		if r.Completed {
			cleared++
		}
	}
	return float64(cleared) / float64(len(w.Rooms))
}

func (w *World) majorityTeamInRoom(roomID string) string {
	counts := make(map[string]int)
	for _, p := range w.LivePlayersInRoom(roomID) {
		counts[p.TeamID]++
	}
	best, bestCount := "", 0
	for team, count := range counts {
		if count > bestCount {
			best, bestCount = team, count
		}
	}
	return best
}

func (w *World) leadingTeamByRoomsCleared() string {
	counts := make(map[string]int)
	for _, r := range w.Rooms {
		if r.Completed && r.CompletingTeam != "" {
			counts[r.CompletingTeam]++
		}
	}
	best, bestCount := "", -1
	for team, count := range counts {
		if count > bestCount {
			best, bestCount = team, count
		}
	}
	return best
}

// soleSurvivingTeam reports the one team with any living, non-extracted
// player left, if exactly one such team exists and there is more than one
// team in the world at all.
func (w *World) soleSurvivingTeam() (string, bool) {
	teams := make(map[string]int)
	aliveTeams := make(map[string]bool)
	for _, p := range w.Players {
		teams[p.TeamID]++
		if p.Alive {
			aliveTeams[p.TeamID] = true
		}
	}
	if len(teams) < 2 {
		return "", false
	}
	if len(aliveTeams) != 1 {
		return "", false
	}
	for team := range aliveTeams {
		return team, true
	}
	return "", false
}

func (w *World) finishWorld(winningTeam string, now time.Time) {
	w.Completed = true
	w.WinningTeam = winningTeam

	var extractedIDs []string
	for _, r := range w.CompletedExtractions {
		extractedIDs = append(extractedIDs, r.PlayerID)
	}

	if w.log != nil {
		w.log.EmitSimple(eventlog.EventTypeWorldCompleted, w.ID, w.TickNum, "", eventlog.WorldCompletedPayload{
			WinningTeamID: winningTeam,
			ExtractedIDs:  extractedIDs,
			DurationS:     now.Sub(w.CreatedAt).Seconds(),
		})
	}
}
