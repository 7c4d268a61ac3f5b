package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gptk-rating-notifier-bot/bot"
)

const logFilePath = "bot.log"

func main() {
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open log file")
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, logFile)).
		With().
		Timestamp().
		Logger()

	file, err := os.ReadFile("./config.json")
	if err != nil {
		log.Fatal().Err(err).Msg("unable to read config file")
	}
	var c bot.Config
	err = json.Unmarshal(file, &c)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to unmarshal config file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	confirm := make(chan struct{})
	go func() {
		err := bot.Start(ctx, c, confirm)
		if err != nil {
			log.Fatal().Err(err).Msg("bot stopped")
		}
	}()
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	<-s
	cancel()
	<-confirm
}
