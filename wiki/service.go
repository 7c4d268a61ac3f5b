package wiki

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPageURL = "https://www.applegamingwiki.com/wiki/Game_Porting_Toolkit"
	siteBaseURL    = "https://www.applegamingwiki.com"

	fetchTimeout = time.Second * 30
)

const (
	gameRowSelector = "#table-listofgames .table-listofgames-body-row"
	ratingSelector  = ".rating"
)

var client = http.Client{Timeout: fetchTimeout}

type Service struct {
	pageURL string
}

func NewService(pageURL string) *Service {
	if len(pageURL) == 0 {
		pageURL = DefaultPageURL
	}
	return &Service{pageURL: pageURL}
}

// Games fetches the compatibility table and returns one record per listed
// game. Any fetch or parse failure is fatal to the caller's cycle.
func (s *Service) Games(ctx context.Context) ([]Game, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build wiki page request")
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch wiki page")
	}
	defer func() {
		err := response.Body.Close()
		if err != nil {
			log.Warn().Err(err).Msg("error when closing the wiki response body")
		}
	}()
	code := response.StatusCode
	if code < 200 || code > 299 {
		return nil, errors.Errorf("unexpected status %v during fetching wiki page", code)
	}
	return parseGames(response.Body)
}

func parseGames(body io.Reader) ([]Game, error) {
	document, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse wiki page")
	}
	var games []Game
	document.Find(gameRowSelector).Each(func(_ int, row *goquery.Selection) {
		anchor := row.Find("a").First()
		title := anchor.AttrOr("title", "")
		// Rows without a titled anchor are spacers or malformed markup.
		if len(title) == 0 {
			return
		}
		games = append(games, Game{
			Title:  title,
			Link:   siteBaseURL + anchor.AttrOr("href", ""),
			Rating: row.Find(ratingSelector).First().Text(),
		})
	})
	return games, nil
}
