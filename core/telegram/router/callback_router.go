package router

import (
	"log/slog"

	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	"github.com/bryanwax12/newbotcursor/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs when neither the registry nor its fallback knows the key.
	NotFound tele.HandlerFunc
}

// answerTracker records whether a handler answered the callback query.
type answerTracker struct {
	tele.Context
	answered bool
}

func (a *answerTracker) Respond(resp ...*tele.CallbackResponse) error {
	a.answered = true
	return a.Context.Respond(resp...)
}

// CallbackRoute dispatches every inline button press by its unique key.
// Queries the handler leaves unanswered get an empty answer so the client
// stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.CallbackKey(c)
		name := "callback." + handlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		tc := &answerTracker{Context: c}
		defer func() {
			if !tc.answered {
				_ = c.Respond()
			}
		}()

		if h, ok := reg.GetCallback(key); ok {
			return invoke(tc, name, h, extras...)
		}
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			skipped(tc, name)
			return nil
		}
		return invoke(tc, name, fallback, append(extras, slog.String("reason", "not_found"))...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
