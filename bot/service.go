package bot

import (
	ctx "context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gptk-rating-notifier-bot/changes"
	"gptk-rating-notifier-bot/db"
	"gptk-rating-notifier-bot/mutex"
	"gptk-rating-notifier-bot/templates"
	"gptk-rating-notifier-bot/wiki"
)

type Service struct {
	wiki   *wiki.Service
	db     *db.DB
	mb     *mutex.Builder
	sender *Sender
	mode   changes.Mode

	// Unix nanos of the last completed cycle, written atomically.
	lastCycle int64
}

var (
	gamesCallbackPattern  = regexp.MustCompile(`\f/games p:(\d+)`)
	gamesPatternPageIndex = 1
)

const gamesPageSize = 10

func NewService(
	wiki *wiki.Service,
	db *db.DB,
	mb *mutex.Builder,
	sender *Sender,
	mode changes.Mode,
) *Service {
	return &Service{
		wiki:   wiki,
		db:     db,
		mb:     mb,
		sender: sender,
		mode:   mode,
	}
}

// RegisterChat subscribes a chat the first time any update arrives from it.
func (s *Service) RegisterChat(next tele.HandlerFunc) tele.HandlerFunc {
	return func(context tele.Context) error {
		chat := context.Chat()
		if chat != nil {
			err := s.ensureChat(chat.ID)
			if err != nil {
				log.Error().Err(err).Int64("chat", chat.ID).Msg("unable to register chat")
			}
		}
		return next(context)
	}
}

func (s *Service) ensureChat(id int64) error {
	_, err := s.db.GetChat(id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}
	err = s.db.AddChat(db.Chat{Id: id, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	log.Info().Int64("chat", id).Msg("added chat")
	return nil
}

func (s *Service) Start(context tele.Context) error {
	return context.Send(templates.Hello)
}

// UserLeft deregisters a chat when the bot itself is removed from it.
func (s *Service) UserLeft(context tele.Context) error {
	left := context.Message().UserLeft
	if left == nil || left.ID != context.Bot().Me.ID {
		return nil
	}
	return s.removeChat(context.Chat().ID)
}

func (s *Service) removeChat(id int64) error {
	err := s.db.RemoveChat(id)
	if err != nil {
		return err
	}
	log.Info().Int64("chat", id).Msg("removed chat")
	return nil
}

// Changes replies with the last-day summary: games added or re-rated within
// the past 24 hours, or the fallback sentence when there were none.
func (s *Service) Changes(context tele.Context) error {
	games, err := s.db.ListGames()
	if err != nil {
		return errors.Wrap(err, "cannot list games for the daily summary")
	}
	diff := changes.LastDay(games, time.Now())
	message := changes.FormatDiff(diff, s.mode)
	_, err = s.sender.Send(context.Chat(), message, s.sendOptions())
	return err
}

func (s *Service) Games(context tele.Context) error {
	return s.sendGamesPage(context, 1, false)
}

func (s *Service) ProcessCallback(context tele.Context) error {
	data := context.Callback().Data
	submatch := gamesCallbackPattern.FindStringSubmatch(data)
	if submatch == nil {
		// Noop buttons and stale callbacks.
		return nil
	}
	page, err := strconv.Atoi(submatch[gamesPatternPageIndex])
	if err != nil {
		return errors.Wrapf(err, "bad page in callback data %v", data)
	}
	return s.sendGamesPage(context, page, true)
}

// sendGamesPage renders one page of the alphabetical game list. Pagination
// buttons edit the same message in place.
func (s *Service) sendGamesPage(context tele.Context, page int, edit bool) error {
	games, err := s.db.ListGames()
	if err != nil {
		return errors.Wrap(err, "cannot list games")
	}
	if len(games) == 0 {
		return context.Send(templates.NoGames)
	}
	totalPages := (len(games) + gamesPageSize - 1) / gamesPageSize
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * gamesPageSize
	end := start + gamesPageSize
	if end > len(games) {
		end = len(games)
	}
	message := changes.FormatGamesPage(games[start:end], s.mode)
	options := s.sendOptions()
	options.ReplyMarkup = gamesPageMarkup(page, totalPages)
	if edit {
		_, err = s.sender.Edit(context.Message(), message, options)
		return err
	}
	_, err = s.sender.Send(context.Chat(), message, options)
	return err
}

func gamesPageMarkup(page, totalPages int) *tele.ReplyMarkup {
	selector := &tele.ReplyMarkup{}
	if totalPages <= 1 {
		return selector
	}
	previous := selector.Data(" ", "/games noop")
	if page > 1 {
		previous = selector.Data("←", fmt.Sprintf("/games p:%v", page-1))
	}
	label := selector.Data(fmt.Sprintf("%v / %v", page, totalPages), "/games noop")
	next := selector.Data(" ", "/games noop")
	if page < totalPages {
		next = selector.Data("→", fmt.Sprintf("/games p:%v", page+1))
	}
	selector.Inline(selector.Row(previous, label, next))
	return selector
}

func (s *Service) sendOptions() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ParseMode(s.mode),
		DisableWebPagePreview: true,
	}
}

// RunCycle runs one scrape-detect-persist-notify pass. Any failure aborts
// the cycle after logging; the next scheduled tick starts from scratch.
func (s *Service) RunCycle(context ctx.Context) {
	lock := s.mb.Cycle()
	if err := lock.Lock(); err != nil {
		log.Warn().Err(err).Msg("previous cycle still in progress, skipping this tick")
		return
	}
	defer func() {
		_, err := lock.Unlock()
		if err != nil {
			log.Error().Err(err).Msg("unable to release the cycle lock")
		}
	}()

	scraped, err := s.wiki.Games(context)
	if err != nil {
		log.Error().Err(err).Msg("unable to fetch the compatibility list, aborting cycle")
		return
	}
	diff, err := changes.Record(s.db, scraped, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("unable to record rating changes, aborting cycle")
		return
	}
	atomic.StoreInt64(&s.lastCycle, time.Now().UnixNano())
	if diff.Empty() {
		log.Info().Int("games", len(scraped)).Msg("no rating changes")
		return
	}
	for _, game := range diff.New {
		log.Info().Str("game", game.Title).Msg("added new game")
	}
	for _, game := range diff.Changed {
		log.Info().Str("game", game.Title).Msg("recorded rating change")
	}
	s.notifySubscribers(changes.FormatDiff(diff, s.mode))
}

func (s *Service) notifySubscribers(message string) {
	chats, err := s.db.ListChats()
	if err != nil {
		log.Error().Err(err).Msg("cannot list subscriber chats")
		return
	}
	digest := messageDigest(message)
	sent, pruned := broadcast(chats,
		func(chat db.Chat) error {
			lock := s.mb.Notification(digest, chat.Id)
			if err := lock.Lock(); err != nil {
				// Already delivered within this cycle window.
				return nil
			}
			_, err := s.sender.Send(tele.ChatID(chat.Id), message, s.sendOptions())
			return err
		},
		func(chat db.Chat) error {
			return s.db.RemoveChat(chat.Id)
		},
	)
	log.Info().Int("sent", sent).Int("pruned", pruned).Msg("notified subscribers")
}

// broadcast fans one notification out to every chat in order. A forbidden
// response prunes the chat from the registry; any other failure is logged
// and the fan-out continues with the remaining chats.
func broadcast(chats []db.Chat, send func(db.Chat) error, remove func(db.Chat) error) (sent, pruned int) {
	for _, chat := range chats {
		err := send(chat)
		if err == nil {
			sent++
			continue
		}
		if isForbidden(err) {
			removeErr := remove(chat)
			if removeErr != nil {
				log.Error().Err(removeErr).Int64("chat", chat.Id).Msg("unable to remove unreachable chat")
				continue
			}
			pruned++
			log.Info().Int64("chat", chat.Id).Msg("removed unreachable chat")
			continue
		}
		log.Error().Err(err).Int64("chat", chat.Id).Msg("unable to notify chat")
	}
	return sent, pruned
}

// isForbidden reports whether the recipient is gone for good: the chat
// blocked the bot, kicked it, or was deleted.
func isForbidden(err error) bool {
	var telegramErr *tele.Error
	if errors.As(err, &telegramErr) {
		return telegramErr.Code == 403
	}
	return false
}

func messageDigest(message string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(message))
	return strconv.FormatUint(h.Sum64(), 16)
}
