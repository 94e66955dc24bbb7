// Package ui collects the replies a bot gives to updates no route claims.
package ui

import (
	"github.com/m3rciful/vitalsbot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks answers unrouted updates. A nil handler leaves the update unanswered.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	// RateLimited replies to an update dropped by the per-chat limiter.
	RateLimited() tele.HandlerFunc
}

// TextOptions maps f onto the text router.
func TextOptions(f Fallbacks) router.TextOptions {
	return router.TextOptions{
		UnknownText:     f.UnknownText(),
		UnknownDocument: f.UnknownDocument(),
	}
}

// CallbackOptions maps f onto the callback router.
func CallbackOptions(f Fallbacks) router.CallbackOptions {
	return router.CallbackOptions{NotFound: f.UnknownCallback()}
}
