package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Poster is the part of *tele.Bot used to push messages outside an update.
type Poster interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// dispatch runs the call on the dispatcher, or inline when none is set or it refuses the job.
func dispatch(ctx context.Context, chatID int64, action string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	err := disp.Enqueue(ctx, sender.Job{ChatID: chatID, Action: action, Run: run})
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text (no parse mode) to the chat of the current update.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return dispatch(BuildContext(c), SessionID(c), "send.text", func() error {
		return c.Send(text, opts)
	})
}

// EditText replaces the text and keyboard of the message a callback came from.
func EditText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return dispatch(BuildContext(c), SessionID(c), "edit.text", func() error {
		return c.Edit(text, opts)
	})
}

// PushText sends plain text to chatID outside of any update, e.g. from a timer.
func PushText(ctx context.Context, bot Poster, chatID int64, text string, markup *tele.ReplyMarkup) error {
	if bot == nil {
		return errors.New("telegram: no bot to push with")
	}
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return dispatch(ctx, chatID, "push.text", func() error {
		_, err := bot.Send(tele.ChatID(chatID), text, opts)
		return err
	})
}
