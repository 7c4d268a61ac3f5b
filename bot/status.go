package bot

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type statusReport struct {
	LastCycleAt *time.Time `json:"lastCycleAt"`
	Games       int        `json:"games"`
	Chats       int        `json:"chats"`
}

func (s *Service) RegisterStatusRoutes(router *mux.Router) {
	router.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealthz)
	router.Methods(http.MethodGet).Path("/status").HandlerFunc(s.handleStatus)
}

func (s *Service) handleHealthz(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok"))
}

func (s *Service) handleStatus(writer http.ResponseWriter, _ *http.Request) {
	var report statusReport
	if nanos := atomic.LoadInt64(&s.lastCycle); nanos != 0 {
		at := time.Unix(0, nanos)
		report.LastCycleAt = &at
	}
	games, err := s.db.ListGames()
	if err != nil {
		log.Error().Err(err).Msg("unable to count games for status")
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	chats, err := s.db.ListChats()
	if err != nil {
		log.Error().Err(err).Msg("unable to count chats for status")
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	report.Games = len(games)
	report.Chats = len(chats)
	writer.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(writer).Encode(report)
	if err != nil {
		log.Error().Err(err).Msg("unable to write status response")
	}
}
