package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

var (
	ErrNotFound = errors.New("entity not found")
)

type DB struct {
	db      *bun.DB
	timeout time.Duration
}

const defaultTimeout = time.Minute

func New(address, user, password, database string) *DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithInsecure(true),
		pgdriver.WithAddr(address),
		pgdriver.WithUser(user),
		pgdriver.WithPassword(password),
		pgdriver.WithDatabase(database),
	)
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{db: db, timeout: defaultTimeout}
}

func (d *DB) SetTimeout(duration time.Duration) {
	d.timeout = duration
}

func (d *DB) EnableDebug() {
	d.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
}

func (d *DB) CreateTables() error {
	models := []interface{}{
		(*Game)(nil),
		(*Observation)(nil),
		(*Chat)(nil),
	}
	for _, model := range models {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		_, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		cancel()
		if err != nil {
			return errors.Wrap(err, "error during schema creation")
		}
	}
	return nil
}

func (d *DB) FindGame(title string) (Game, error) {
	g := Game{Title: title}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&g).Relation("Ratings").WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, errors.Wrapf(err, "error during querying game %v", title)
	}
	return g, nil
}

// InsertGames stores a batch of freshly discovered games together with their
// initial observations. The batch applies atomically: either every game is
// durably written or none are.
func (d *DB) InsertGames(games []Game) error {
	if len(games) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&games).Exec(ctx); err != nil {
			return err
		}
		var observations []Observation
		for _, game := range games {
			for _, observation := range game.Ratings {
				observation.GameTitle = game.Title
				observations = append(observations, observation)
			}
		}
		if len(observations) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&observations).Exec(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "error during adding games")
	}
	return nil
}

// AppendRatingChanges upserts rating history by title: observations the
// caller appended (those without an id yet) are inserted and the game row is
// stamped with its new updated_at. One transaction per batch.
func (d *DB) AppendRatingChanges(games []Game) error {
	if len(games) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, game := range games {
			g := game
			if _, err := tx.NewUpdate().Model(&g).Column("link", "updated_at").WherePK().Exec(ctx); err != nil {
				return err
			}
			var added []Observation
			for _, observation := range g.Ratings {
				if observation.Id != 0 {
					continue
				}
				observation.GameTitle = g.Title
				added = append(added, observation)
			}
			if len(added) == 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&added).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "error during updating games")
	}
	return nil
}

func (d *DB) ListGames() ([]Game, error) {
	var games []Game
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&games).
		Relation("Ratings").
		Order("title ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying games")
	}
	return games, nil
}

func (d *DB) GetChat(id int64) (Chat, error) {
	c := Chat{Id: id}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&c).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, errors.Wrap(err, "error during querying chat")
	}
	return c, nil
}

func (d *DB) AddChat(c Chat) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	_, err := d.db.NewInsert().Model(&c).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during adding chat")
	}
	return nil
}

func (d *DB) RemoveChat(id int64) error {
	c := Chat{Id: id}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	_, err := d.db.NewDelete().Model(&c).WherePK().Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during removing chat")
	}
	return nil
}

func (d *DB) ListChats() ([]Chat, error) {
	var chats []Chat
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&chats).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying chats")
	}
	return chats, nil
}
