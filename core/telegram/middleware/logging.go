package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/core/telegram/callbacks"
	tghelpers "github.com/bryanwax12/newbotcursor/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates lets the receipt line be written once per update even when
// the middleware runs both globally and on a route.
var seenUpdates = &updateSet{ids: map[int]time.Time{}, keep: 10 * time.Second}

type updateSet struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

// firstSight records id and reports whether it was new.
func (s *updateSet) firstSight(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.ids) > 256 {
		for k, t := range s.ids {
			if now.Sub(t) > s.keep {
				delete(s.ids, k)
			}
		}
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware stores the request context (rid and update metadata)
// for downstream handlers and writes a sampled update.received line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() && seenUpdates.firstSight(c.Update().ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("mode", UpdateKind(c)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
