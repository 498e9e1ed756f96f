package router

import (
	"log/slog"
	"sort"

	"github.com/bryanwax12/newbotcursor/core/logger"
	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	"github.com/bryanwax12/newbotcursor/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Admin middleware.AdminOptions
}

// guard wraps admin-only handlers with the admin check.
func guard(h tele.HandlerFunc, adminOnly bool, admin middleware.AdminOptions) tele.HandlerFunc {
	if !adminOnly {
		return h
	}
	return middleware.AdminOnlyMiddleware(admin)(h)
}

// CommandRoutes returns one route per registered command, sorted by name.
// Each route logs a handler summary and admin-only commands are guarded.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		def := cmds[name]
		h := guard(def.Handler, def.AdminOnly, opts.Admin)
		handlerName := handlerName(name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: wrap(func(c tele.Context) error {
				return invoke(c, handlerName, h)
			}),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.Callbacks())),
	)
	return routes
}

// wrap applies the per-route recover and logging middleware.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
