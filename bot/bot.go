package bot

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gptk-rating-notifier-bot/changes"
	"gptk-rating-notifier-bot/db"
	"gptk-rating-notifier-bot/mutex"
	"gptk-rating-notifier-bot/templates"
	"gptk-rating-notifier-bot/wiki"
)

const (
	DB           = "bot"
	DBAddress    = ":5432"
	DBUser       = "bot"
	DBPassword   = "portmegames"
	RedisAddress = ":6379"
)

// One full cycle every three minutes, plus one run at startup.
const cycleSchedule = "*/3 * * * *"

type Config struct {
	TelegramBotToken string
	// ParseMode is "MarkdownV2" or "HTML" and applies to every outbound
	// message, periodic and on-demand alike.
	ParseMode     string
	WikiPageURL   *string
	StatusAddress *string
	Debug         bool
}

func Start(ctx context.Context, config Config, confirm chan<- struct{}) error {
	dbService := db.New(DBAddress, DBUser, DBPassword, DB)
	if config.Debug {
		dbService.EnableDebug()
	}
	if err := dbService.CreateTables(); err != nil {
		return err
	}
	mutexBuilder := mutex.NewBuilder(RedisAddress)

	var pageURL string
	if config.WikiPageURL != nil {
		pageURL = *config.WikiPageURL
	}
	wikiService := wiki.NewService(pageURL)

	mode := changes.ModeMarkdownV2
	if config.ParseMode == string(changes.ModeHTML) {
		mode = changes.ModeHTML
	}

	s := tele.Settings{
		Token: config.TelegramBotToken,
		Poller: &tele.LongPoller{
			Timeout: time.Second * 10,
		},
	}
	bot, err := tele.NewBot(s)
	if err != nil {
		return errors.Wrap(err, "error during creation of a new bot")
	}

	botService := NewService(wikiService, dbService, mutexBuilder, NewSender(bot), mode)

	bot.Use(botService.RegisterChat)
	bot.Handle("/start", botService.Start)
	bot.Handle("/changes", botService.Changes)
	bot.Handle("/games", botService.Games)
	// Plain texts are handled so the registration middleware sees every chat.
	bot.Handle(tele.OnText, func(context tele.Context) error {
		return nil
	})
	bot.Handle(tele.OnUserLeft, botService.UserLeft)
	bot.Handle(tele.OnCallback, func(context tele.Context) error {
		defer func() {
			err := context.Respond()
			if err != nil {
				log.Error().Err(err).Msg("unable to answer callback")
			}
		}()
		return botService.ProcessCallback(context)
	})

	bot.OnError = func(err error, context tele.Context) {
		log.Error().Err(err).Msg("handler failed")
		if context == nil {
			return
		}
		err = context.Send(templates.UnexpectedError)
		if err != nil {
			log.Error().Err(err).Msg("unable to report the failure to the chat")
		}
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cycleSchedule, func() {
		botService.RunCycle(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "unable to schedule the update cycle")
	}

	go func() {
		<-ctx.Done()
		scheduler.Stop()
		bot.Stop()
		confirm <- struct{}{}
	}()

	if config.StatusAddress != nil {
		router := mux.NewRouter()
		botService.RegisterStatusRoutes(router)
		go func() {
			err := http.ListenAndServe(*config.StatusAddress, router)
			if err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
		log.Info().Str("address", *config.StatusAddress).Msg("started status server")
	}

	go botService.RunCycle(ctx)
	scheduler.Start()
	log.Info().Msg("bot started")

	// Blocks until stop
	bot.Start()
	return nil
}
