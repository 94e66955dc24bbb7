package helpers

import (
	"context"

	"github.com/m3rciful/vitalsbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const keyContext = "logger_ctx"

// Identity is who an update came from and where it belongs.
type Identity struct {
	UpdateID int
	ChatID   int64
	ChatType tele.ChatType
	UserID   int64
	Username string
}

// SessionID is the conversation key: the chat, falling back to the sender
// for updates without one.
func (id Identity) SessionID() int64 {
	if id.ChatID != 0 {
		return id.ChatID
	}
	return id.UserID
}

// Identify reads the ids of the update in c. Missing parts stay zero.
func Identify(c tele.Context) Identity {
	id := Identity{UpdateID: c.Update().ID}
	if chat := c.Chat(); chat != nil {
		id.ChatID, id.ChatType = chat.ID, chat.Type
	}
	if user := c.Sender(); user != nil {
		id.UserID, id.Username = user.ID, user.Username
	}
	return id
}

// SessionID is shorthand for Identify(c).SessionID().
func SessionID(c tele.Context) int64 {
	return Identify(c).SessionID()
}

// Bind derives a fresh logging context for the update in c and stores it on c.
func Bind(c tele.Context) (context.Context, Identity) {
	id := Identify(c)
	ctx := logger.WithRID(context.Background(), logger.BuildRID(id.UpdateID, id.ChatID, id.UserID))
	ctx = logger.WithUpdateMeta(ctx, id.UpdateID, id.UserID, id.ChatID)
	ctx = logger.WithSession(ctx, id.SessionID())
	c.Set(keyContext, ctx)
	return ctx, id
}

// ContextFrom returns the context stored by Bind, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(keyContext).(context.Context)
	return ctx, ok
}

// BuildContext returns the update's logging context, binding one when the
// logging middleware did not run.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	ctx, _ := Bind(c)
	return ctx
}

// WithHandler tags the update's context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(keyContext, ctx)
	return ctx
}
