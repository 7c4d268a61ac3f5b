package changes

import (
	"time"

	"github.com/pkg/errors"

	"gptk-rating-notifier-bot/db"
	"gptk-rating-notifier-bot/wiki"
)

// GameStore is the slice of the rating history store the detector needs.
type GameStore interface {
	FindGame(title string) (db.Game, error)
	InsertGames(games []db.Game) error
	AppendRatingChanges(games []db.Game) error
}

// Diff is the outcome of one detection pass. Both lists empty is the normal
// "nothing happened" state, not an error.
type Diff struct {
	New     []db.Game
	Changed []db.Game
}

func (d Diff) Empty() bool {
	return len(d.New) == 0 && len(d.Changed) == 0
}

// Record classifies each scraped record against the store and persists the
// outcome: brand new games in one insert batch, appended observations in one
// update batch, both in scrape order. Ratings compare as exact strings, so
// an empty rating is an ordinary categorical value. Duplicate titles within
// one scrape collapse to the last occurrence. Games known to the store but
// absent from the snapshot are left untouched: cumulative history, not the
// latest scrape, is the source of truth for existence.
func Record(store GameStore, scraped []wiki.Game, now time.Time) (Diff, error) {
	var diff Diff
	for _, game := range dedupe(scraped) {
		existing, err := store.FindGame(game.Title)
		if err != nil && errors.Is(err, db.ErrNotFound) {
			diff.New = append(diff.New, db.Game{
				Title:     game.Title,
				Link:      game.Link,
				CreatedAt: now,
				Ratings: []db.Observation{
					{Rating: game.Rating, ObservedAt: now},
				},
			})
			continue
		}
		if err != nil {
			return Diff{}, errors.Wrapf(err, "cannot look up game %v", game.Title)
		}
		current, ok := existing.CurrentRating()
		if ok && current.Rating == game.Rating {
			continue
		}
		updatedAt := now
		existing.Link = game.Link
		existing.UpdatedAt = &updatedAt
		existing.Ratings = append(existing.Ratings, db.Observation{
			Rating:     game.Rating,
			ObservedAt: now,
		})
		diff.Changed = append(diff.Changed, existing)
	}
	if err := store.InsertGames(diff.New); err != nil {
		return Diff{}, err
	}
	if err := store.AppendRatingChanges(diff.Changed); err != nil {
		return Diff{}, err
	}
	return diff, nil
}

// dedupe keeps one record per title, at the position of its first
// occurrence, with the value of its last.
func dedupe(scraped []wiki.Game) []wiki.Game {
	seen := make(map[string]int, len(scraped))
	result := make([]wiki.Game, 0, len(scraped))
	for _, game := range scraped {
		if i, ok := seen[game.Title]; ok {
			result[i] = game
			continue
		}
		seen[game.Title] = len(result)
		result = append(result, game)
	}
	return result
}
