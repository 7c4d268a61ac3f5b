package changes

import (
	"time"

	"gptk-rating-notifier-bot/db"
)

const lastDayWindow = 24 * time.Hour

// LastDay is the point-in-time view behind the on-demand summary, distinct
// from the per-cycle diff: games created within the last 24 hours count as
// new, games merely updated within the window count as changed. The lists
// are disjoint.
func LastDay(games []db.Game, now time.Time) Diff {
	cutoff := now.Add(-lastDayWindow)
	var diff Diff
	for _, game := range games {
		if game.CreatedAt.After(cutoff) {
			diff.New = append(diff.New, game)
			continue
		}
		if game.UpdatedAt != nil && game.UpdatedAt.After(cutoff) {
			diff.Changed = append(diff.Changed, game)
		}
	}
	return diff
}
