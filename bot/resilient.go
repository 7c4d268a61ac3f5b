package bot

import (
	"time"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"
)

// ErrRetriesExhausted is returned when a delivery keeps hitting the rate
// limit until the attempt budget runs out.
var ErrRetriesExhausted = errors.New("gave up sending after repeated rate limiting")

const maxSendAttempts = 5

// Sender layers the delivery retry policy over a plain bot by composition:
// rate-limited calls wait the server-specified delay and try again, edits
// that change nothing count as success, everything else fails immediately.
type Sender struct {
	bot *tele.Bot
}

func NewSender(bot *tele.Bot) *Sender {
	return &Sender{bot: bot}
}

func (s *Sender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	return withRetry(func() (*tele.Message, error) {
		return s.bot.Send(to, what, opts...)
	})
}

func (s *Sender) Edit(message tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	return withRetry(func() (*tele.Message, error) {
		return s.bot.Edit(message, what, opts...)
	})
}

// withRetry applies the retry policy to one delivery attempt, independent of
// the transport behind the closure.
func withRetry(attempt func() (*tele.Message, error)) (*tele.Message, error) {
	for tries := 0; tries < maxSendAttempts; tries++ {
		message, err := attempt()
		if err == nil {
			return message, nil
		}
		var flood tele.FloodError
		if errors.As(err, &flood) {
			time.Sleep(time.Duration(flood.RetryAfter) * time.Second)
			continue
		}
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil, nil
		}
		return nil, err
	}
	return nil, ErrRetriesExhausted
}
