package changes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptk-rating-notifier-bot/db"
	"gptk-rating-notifier-bot/wiki"
)

type fakeStore struct {
	games   map[string]db.Game
	inserts int
	appends int
}

func newFakeStore(games ...db.Game) *fakeStore {
	byTitle := make(map[string]db.Game, len(games))
	for _, game := range games {
		byTitle[game.Title] = game
	}
	return &fakeStore{games: byTitle}
}

func (f *fakeStore) FindGame(title string) (db.Game, error) {
	game, ok := f.games[title]
	if !ok {
		return db.Game{}, db.ErrNotFound
	}
	return game, nil
}

func (f *fakeStore) InsertGames(games []db.Game) error {
	if len(games) == 0 {
		return nil
	}
	f.inserts++
	for _, game := range games {
		f.games[game.Title] = game
	}
	return nil
}

func (f *fakeStore) AppendRatingChanges(games []db.Game) error {
	if len(games) == 0 {
		return nil
	}
	f.appends++
	for _, game := range games {
		f.games[game.Title] = game
	}
	return nil
}

var (
	t1 = time.Date(2023, time.July, 1, 12, 0, 0, 0, time.UTC)
	t2 = time.Date(2023, time.July, 2, 12, 0, 0, 0, time.UTC)
	t3 = time.Date(2023, time.July, 3, 12, 0, 0, 0, time.UTC)
)

func TestRecordNewGame(t *testing.T) {
	store := newFakeStore()
	scraped := []wiki.Game{
		{Title: "Game A", Link: "https://x/a", Rating: "Platinum"},
	}

	diff, err := Record(store, scraped, t3)
	require.NoError(t, err)

	require.Len(t, diff.New, 1)
	assert.Empty(t, diff.Changed)
	game := diff.New[0]
	assert.Equal(t, "Game A", game.Title)
	assert.Equal(t, "https://x/a", game.Link)
	require.Len(t, game.Ratings, 1)
	assert.Equal(t, "Platinum", game.Ratings[0].Rating)
	assert.Equal(t, t3, game.Ratings[0].ObservedAt)
	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 0, store.appends)
}

func TestRecordUnchanged(t *testing.T) {
	store := newFakeStore(db.Game{
		Title:     "Game A",
		Link:      "https://x/a",
		CreatedAt: t1,
		Ratings: []db.Observation{
			{Id: 1, Rating: "Gold", ObservedAt: t1},
			{Id: 2, Rating: "Platinum", ObservedAt: t2},
		},
	})
	scraped := []wiki.Game{
		{Title: "Game A", Link: "https://x/a", Rating: "Platinum"},
	}

	diff, err := Record(store, scraped, t3)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	assert.Equal(t, 0, store.inserts)
	assert.Equal(t, 0, store.appends)
	require.Len(t, store.games["Game A"].Ratings, 2)
}

func TestRecordChanged(t *testing.T) {
	store := newFakeStore(db.Game{
		Title:     "Game A",
		Link:      "https://x/a",
		CreatedAt: t1,
		Ratings: []db.Observation{
			{Id: 1, Rating: "Gold", ObservedAt: t1},
		},
	})
	scraped := []wiki.Game{
		{Title: "Game A", Link: "https://x/a", Rating: "Platinum"},
	}

	diff, err := Record(store, scraped, t3)
	require.NoError(t, err)

	assert.Empty(t, diff.New)
	require.Len(t, diff.Changed, 1)
	game := diff.Changed[0]
	require.Len(t, game.Ratings, 2)
	assert.Equal(t, "Gold", game.Ratings[0].Rating)
	assert.Equal(t, "Platinum", game.Ratings[1].Rating)
	require.NotNil(t, game.UpdatedAt)
	assert.Equal(t, t3, *game.UpdatedAt)

	current, ok := store.games["Game A"].CurrentRating()
	require.True(t, ok)
	assert.Equal(t, "Platinum", current.Rating)
	assert.Equal(t, 0, store.inserts)
	assert.Equal(t, 1, store.appends)
}

func TestRecordComparesAgainstLatestObservationNotListPosition(t *testing.T) {
	// Observations arrived out of order: the newest rating sits first in the
	// list, so last-position would compare against the wrong value.
	store := newFakeStore(db.Game{
		Title:     "Game A",
		CreatedAt: t1,
		Ratings: []db.Observation{
			{Id: 2, Rating: "Platinum", ObservedAt: t2},
			{Id: 1, Rating: "Gold", ObservedAt: t1},
		},
	})
	scraped := []wiki.Game{
		{Title: "Game A", Rating: "Platinum"},
	}

	diff, err := Record(store, scraped, t3)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestRecordDuplicateTitlesLastSeenWins(t *testing.T) {
	store := newFakeStore()
	scraped := []wiki.Game{
		{Title: "Game A", Rating: "Gold"},
		{Title: "Game B", Rating: "Silver"},
		{Title: "Game A", Rating: "Platinum"},
	}

	diff, err := Record(store, scraped, t3)
	require.NoError(t, err)

	require.Len(t, diff.New, 2)
	assert.Equal(t, "Game A", diff.New[0].Title)
	require.Len(t, diff.New[0].Ratings, 1)
	assert.Equal(t, "Platinum", diff.New[0].Ratings[0].Rating)
	assert.Equal(t, "Game B", diff.New[1].Title)
}

func TestRecordEmptyRatingIsCategorical(t *testing.T) {
	store := newFakeStore(db.Game{
		Title:     "Game A",
		CreatedAt: t1,
		Ratings: []db.Observation{
			{Id: 1, Rating: "", ObservedAt: t1},
		},
	})

	diff, err := Record(store, []wiki.Game{{Title: "Game A", Rating: ""}}, t3)
	require.NoError(t, err)
	assert.True(t, diff.Empty())

	diff, err = Record(store, []wiki.Game{{Title: "Game A", Rating: "Unknown"}}, t3)
	require.NoError(t, err)
	require.Len(t, diff.Changed, 1)
}

func TestRecordLeavesMissingGamesUntouched(t *testing.T) {
	store := newFakeStore(db.Game{
		Title:     "Game A",
		CreatedAt: t1,
		Ratings: []db.Observation{
			{Id: 1, Rating: "Gold", ObservedAt: t1},
		},
	})

	diff, err := Record(store, nil, t3)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	assert.Contains(t, store.games, "Game A")
	require.Len(t, store.games["Game A"].Ratings, 1)
}
