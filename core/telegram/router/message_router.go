package router

import (
	tg "github.com/m3rciful/vitalsbot/core/telegram"
	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"
	"github.com/m3rciful/vitalsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the per-session flow engine text is offered to first.
type Conversation interface {
	InProgress(sessionID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the OnText and OnDocument handlers. Text goes to the
// conversation when the session has a flow in progress, otherwise to the
// registry's fallback and finally to opts.UnknownText.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	active := func(c tele.Context) bool {
		return conv != nil && conv.InProgress(tghelpers.SessionID(c))
	}

	text := func(c tele.Context) error {
		if active(c) {
			return handle(c, "conversation", func() error { return conv.HandleText(c) })
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handle(c, "fallback", func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handle(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		skipped(c, "unknown_text")
		return nil
	}

	document := func(c tele.Context) error {
		if opts.UnknownDocument != nil {
			return handle(c, "unexpected_document", func() error { return opts.UnknownDocument(c) })
		}
		skipped(c, "unexpected_document")
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.LoggerMiddleware(text)},
		{Endpoint: tele.OnDocument, Handler: middleware.LoggerMiddleware(document)},
	}
}
