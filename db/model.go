package db

import (
	"sort"
	"time"
)

type Chat struct {
	Id        int64 `bun:",pk"`
	CreatedAt time.Time
}

type Game struct {
	Title     string `bun:",pk"`
	Link      string
	Ratings   []Observation `bun:"rel:has-many,join:title=game_title"`
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Observation is one recorded rating for a game. Observations are only ever
// appended, never rewritten.
type Observation struct {
	Id         int64 `bun:",pk,autoincrement"`
	GameTitle  string
	Rating     string
	ObservedAt time.Time
}

// sortedByTime returns the observations ordered by ObservedAt, oldest first.
// Ties keep insertion order.
func (g Game) sortedByTime() []Observation {
	observations := make([]Observation, len(g.Ratings))
	copy(observations, g.Ratings)
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})
	return observations
}

// CurrentRating is the observation with the latest ObservedAt. Insertion
// order and recency order may diverge when observations arrive out of order,
// so the list position cannot be trusted.
func (g Game) CurrentRating() (Observation, bool) {
	if len(g.Ratings) == 0 {
		return Observation{}, false
	}
	observations := g.sortedByTime()
	return observations[len(observations)-1], true
}

// PreviousRating is the observation immediately preceding the current one by
// ObservedAt.
func (g Game) PreviousRating() (Observation, bool) {
	if len(g.Ratings) < 2 {
		return Observation{}, false
	}
	observations := g.sortedByTime()
	return observations[len(observations)-2], true
}
