package router

import (
	"log/slog"

	"github.com/m3rciful/vitalsbot/core/logger"
	tg "github.com/m3rciful/vitalsbot/core/telegram"
	"github.com/m3rciful/vitalsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its endpoint. Admin-only
// commands are gated before the handler summary so rejected calls log once.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, cmd := range cmds {
		name := normalizeHandlerName(cmd.Name)
		run := cmd.Handler
		h := func(c tele.Context) error {
			return handle(c, name, func() error { return run(c) })
		}
		if cmd.AdminOnly {
			h = gate(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd.Name,
			Handler:  middleware.LoggerMiddleware(h),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
