package changes

import (
	"fmt"
	"strings"

	"gptk-rating-notifier-bot/db"
	"gptk-rating-notifier-bot/templates"
)

// Mode selects the Telegram parse mode the rendered message targets. Mixing
// the escaping rules of one mode with the markup of the other corrupts
// rendering, so every message is built for exactly one mode.
type Mode string

const (
	ModeMarkdownV2 Mode = "MarkdownV2"
	ModeHTML       Mode = "HTML"
)

// UnknownRating labels the absent side of a rating transition.
const UnknownRating = "Unknown"

const (
	markdownEntryFormat = "🎮 [*%v*](%v)\n%v → %v"
	htmlEntryFormat     = "🎮 <a href=\"%v\"><b>%v</b></a>\n%v → %v"

	markdownListEntryFormat = "🎮 [*%v*](%v)\nRating: *%v*"
	htmlListEntryFormat     = "🎮 <a href=\"%v\"><b>%v</b></a>\nRating: <b>%v</b>"
)

// FormatDiff renders a diff into one notification body: new games first,
// then changed ones, entries separated by a blank line. An empty diff yields
// the fallback sentence used by the on-demand summary; the periodic path
// checks Diff.Empty before ever formatting. The function is pure: the same
// diff always renders to the same string.
func FormatDiff(diff Diff, mode Mode) string {
	var entries []string
	for _, game := range diff.New {
		entries = append(entries, formatEntry(game, UnknownRating, mode))
	}
	for _, game := range diff.Changed {
		previous := UnknownRating
		if observation, ok := game.PreviousRating(); ok {
			previous = observation.Rating
		}
		entries = append(entries, formatEntry(game, previous, mode))
	}
	if len(entries) == 0 {
		return templates.NoChanges
	}
	return strings.Join(entries, "\n\n")
}

func formatEntry(game db.Game, previous string, mode Mode) string {
	current := UnknownRating
	if observation, ok := game.CurrentRating(); ok {
		current = observation.Rating
	}
	if mode == ModeHTML {
		return fmt.Sprintf(
			htmlEntryFormat,
			EscapeHTML(game.Link), EscapeHTML(game.Title), EscapeHTML(previous), EscapeHTML(current),
		)
	}
	return fmt.Sprintf(
		markdownEntryFormat,
		EscapeMarkdown(game.Title), EscapeMarkdown(game.Link), EscapeMarkdown(previous), EscapeMarkdown(current),
	)
}

// FormatGamesPage renders one page of the alphabetical game list in the
// configured mode.
func FormatGamesPage(games []db.Game, mode Mode) string {
	entries := make([]string, 0, len(games))
	for _, game := range games {
		current := UnknownRating
		if observation, ok := game.CurrentRating(); ok {
			current = observation.Rating
		}
		if mode == ModeHTML {
			entries = append(entries, fmt.Sprintf(
				htmlListEntryFormat,
				EscapeHTML(game.Link), EscapeHTML(game.Title), EscapeHTML(current),
			))
			continue
		}
		entries = append(entries, fmt.Sprintf(
			markdownListEntryFormat,
			EscapeMarkdown(game.Title), EscapeMarkdown(game.Link), EscapeMarkdown(current),
		))
	}
	return strings.Join(entries, "\n")
}
