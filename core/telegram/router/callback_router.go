package router

import (
	"log/slog"

	tg "github.com/m3rciful/vitalsbot/core/telegram"
	"github.com/m3rciful/vitalsbot/core/telegram/callbacks"
	"github.com/m3rciful/vitalsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the OnCallback handler that dispatches button presses
// by the key part of their data. The press is acknowledged before the handler
// runs so the client stops its spinner even when the handler is slow.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Parse(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handle(c, name, func() error {
				if fallback == nil {
					return c.Respond()
				}
				return fallback(c)
			}, extras...)
		}

		_ = c.Respond()
		return handle(c, name, func() error { return h(c) }, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.LoggerMiddleware(handler),
	}
}
