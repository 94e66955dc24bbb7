package bot

import (
	"context"
	"errors"
	"sync"

	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"
	"github.com/m3rciful/vitalsbot/core/telegram/keyboard"
	"github.com/m3rciful/vitalsbot/internal/chat"
	"github.com/m3rciful/vitalsbot/internal/telemetry"

	tele "gopkg.in/telebot.v4"
)

// CallbackFlow is the unique key carried by every flow button.
const CallbackFlow = "flow"

// ErrNotAttached is returned by Sender before the bot has started.
var ErrNotAttached = errors.New("bot: sender not attached")

// markup packs options into inline rows, short labels sharing a row.
func markup(opts []chat.Option) *tele.ReplyMarkup {
	if len(opts) == 0 {
		return nil
	}
	btns := make([]keyboard.Button, 0, len(opts))
	for _, o := range opts {
		btns = append(btns, keyboard.Button{Text: o.Label, Unique: CallbackFlow, Data: o.Value})
	}
	return keyboard.Fit(3, btns...)
}

// split breaks msg into texts that fit one Telegram message, cutting between
// records where it can. Only the last text carries the keyboard.
func split(msg chat.Message) ([]string, *tele.ReplyMarkup) {
	return tghelpers.SplitText(msg.Text, tghelpers.MaxTextRunes, telemetry.RecordSeparator), markup(msg.Options)
}

// lastOnly returns rm for the final part and nil before it.
func lastOnly(i, n int, rm *tele.ReplyMarkup) *tele.ReplyMarkup {
	if i == n-1 {
		return rm
	}
	return nil
}

// replier answers the update in c. On a button press the first answer
// replaces the menu message so a choice cannot be made twice.
type replier struct {
	c    tele.Context
	edit bool
}

func newReplier(c tele.Context) *replier {
	cb := c.Callback()
	return &replier{c: c, edit: cb != nil && cb.Message != nil}
}

func (r *replier) Reply(_ context.Context, msg chat.Message) error {
	parts, rm := split(msg)
	for i, text := range parts {
		var err error
		if r.edit {
			r.edit = false
			err = tghelpers.EditText(r.c, text, lastOnly(i, len(parts), rm))
		} else {
			err = tghelpers.SendText(r.c, text, lastOnly(i, len(parts), rm))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Sender pushes messages outside of any update. The bot it sends through
// exists only once the runtime has started, hence Attach.
type Sender struct {
	mu     sync.RWMutex
	poster tghelpers.Poster
}

var _ chat.Sender = (*Sender)(nil)

// Attach sets the bot used for pushes.
func (s *Sender) Attach(p tghelpers.Poster) {
	s.mu.Lock()
	s.poster = p
	s.mu.Unlock()
}

// Send implements chat.Sender; the session id is the chat id.
func (s *Sender) Send(ctx context.Context, sessionID int64, msg chat.Message) error {
	s.mu.RLock()
	p := s.poster
	s.mu.RUnlock()
	if p == nil {
		return ErrNotAttached
	}
	parts, rm := split(msg)
	for i, text := range parts {
		if err := tghelpers.PushText(ctx, p, sessionID, text, lastOnly(i, len(parts), rm)); err != nil {
			return err
		}
	}
	return nil
}
