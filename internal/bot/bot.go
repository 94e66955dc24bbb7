// Package bot binds the conversation engine and the timer scheduler to
// Telegram: slash commands, flow buttons, free text and pushes.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/vitalsbot/core/logger"
	tg "github.com/m3rciful/vitalsbot/core/telegram"
	"github.com/m3rciful/vitalsbot/core/telegram/callbacks"
	"github.com/m3rciful/vitalsbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"
	"github.com/m3rciful/vitalsbot/core/telegram/router"
	"github.com/m3rciful/vitalsbot/core/telegram/ui"
	"github.com/m3rciful/vitalsbot/internal/chat"
	"github.com/m3rciful/vitalsbot/internal/conversation"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
	"github.com/m3rciful/vitalsbot/internal/timers"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

const (
	msgTextOnly      = "Only text messages are supported. Use /help to see the available commands."
	msgStaleButton   = "This button is no longer active."
	msgSlowDown      = "Too many requests. Please wait a moment."
	msgNoTimers      = "No active timers."
	msgAdminRejected = "This command is restricted."
)

// TimerLister exposes the scheduler's live timers to the admin listing.
type TimerLister interface {
	Entries() []timers.Entry
}

// Bot handles updates for one engine.
type Bot struct {
	engine *conversation.Engine
	timers TimerLister
}

var _ ui.Fallbacks = (*Bot)(nil)

// New returns a Bot over engine. timers may be nil, which disables /timers.
func New(engine *conversation.Engine, timers TimerLister) *Bot {
	return &Bot{engine: engine, timers: timers}
}

// Register adds the commands and the flow callback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	help := func(c tele.Context) error {
		return tghelpers.SendText(c, conversation.HelpText, nil)
	}
	cmds := []commands.Command{
		{Name: "/start", Description: "Show help", Handler: help},
		{Name: "/help", Description: "Show help", Handler: help},
		{Name: "/data", Description: "View your health data", Handler: b.startFlow(conversation.FlowData)},
		{Name: "/settimer", Description: "Receive data after or every N minutes", Handler: b.startFlow(conversation.FlowTimer)},
		{Name: "/cleartimer", Description: "Clear the timer", Handler: b.withEngine(b.engine.ClearTimer)},
		{Name: "/logout", Description: "Forget your saved login", Handler: b.withEngine(b.engine.Logout)},
		{Name: "/cancel", Description: "Cancel the current step", Handler: b.withEngine(b.engine.Cancel)},
	}
	if b.timers != nil {
		cmds = append(cmds, commands.Command{
			Name: "/timers", Description: "List active timers", Handler: b.listTimers, AdminOnly: true,
		})
	}

	var errs []error
	for _, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(cmd))
	}
	errs = append(errs, reg.RegisterCallback(CallbackFlow, b.onChoice))
	reg.SetCallbackNotFound(b.UnknownCallback())
	return errors.Join(errs...)
}

// Routes returns every handler the bot serves. reg must be populated by Register.
func (b *Bot) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: adminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, msgAdminRejected, nil)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, ui.CallbackOptions(b)))
	return append(routes, router.TextRoutes(b, reg, ui.TextOptions(b))...)
}

// InProgress reports whether the chat is inside a flow.
func (b *Bot) InProgress(sid int64) bool {
	return b.engine.InProgress(sid)
}

// HandleText feeds free text to the chat's flow.
func (b *Bot) HandleText(c tele.Context) error {
	_, err := b.engine.HandleText(tghelpers.BuildContext(c), tghelpers.SessionID(c), c.Text(), newReplier(c))
	return err
}

func (b *Bot) startFlow(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.engine.Start(tghelpers.BuildContext(c), name, tghelpers.SessionID(c), newReplier(c))
	}
}

func (b *Bot) withEngine(fn func(context.Context, int64, chat.Replier) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		return fn(tghelpers.BuildContext(c), tghelpers.SessionID(c), newReplier(c))
	}
}

// onChoice handles a flow button. Presses outside a flow are ignored; the
// router has already acknowledged them.
func (b *Bot) onChoice(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	handled, err := b.engine.HandleChoice(ctx, tghelpers.SessionID(c), callbacks.CallbackPayload(c), newReplier(c))
	if !handled {
		logger.Debug(ctx, component, "choice.idle")
	}
	return err
}

func (b *Bot) listTimers(c tele.Context) error {
	entries := b.timers.Entries()
	if len(entries) == 0 {
		return tghelpers.SendText(c, msgNoTimers, nil)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active timers: %d\n", len(entries))
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(describeTimer(e))
	}
	ctx := tghelpers.BuildContext(c)
	logger.Info(ctx, component, "admin.timers", slog.Int("count", len(entries)))
	return newReplier(c).Reply(ctx, chat.Text(sb.String()))
}

func describeTimer(e timers.Entry) string {
	q := e.Record.Query
	what := telemetry.DatasetLabel(q.Dataset) + ", " + string(q.Mode)
	switch q.Mode {
	case telemetry.ModeLatest:
		what += fmt.Sprintf(" %d", q.Limit)
	case telemetry.ModeFilter:
		what += fmt.Sprintf(" %s=%s", q.FilterField, q.FilterValue)
	}
	schedule := "once"
	if e.Record.Kind == timers.KindPeriodic {
		schedule = "every " + e.Record.Interval().String()
	}
	return fmt.Sprintf("• %d: %s, %s, next %s", e.SessionID, what, schedule, e.Next.UTC().Format(time.RFC3339))
}

// UnknownText ignores text outside of a flow.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}

// UnknownDocument tells the user that only text is understood.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgTextOnly, nil)
	}
}

// UnknownCallback acknowledges a button whose handler no longer exists.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgStaleButton})
	}
}

// RateLimited answers an update dropped by the rate limiter.
func (b *Bot) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: msgSlowDown})
		}
		return tghelpers.SendText(c, msgSlowDown, nil)
	}
}
