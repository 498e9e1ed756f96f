package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bryanwax12/newbotcursor/core/logger"
	tghelpers "github.com/bryanwax12/newbotcursor/core/telegram/helpers"
	"github.com/bryanwax12/newbotcursor/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// invoke runs h under the handler name and writes one handler.handled line.
func invoke(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := h(c)

	status := logger.Status(err)
	attrs := append(summaryAttrs(c, name, status, start), extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string) {
	ctx := tghelpers.WithHandler(c, name)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled",
		summaryAttrs(c, name, "skip", time.Now())...)
}

func summaryAttrs(c tele.Context, name, status string, start time.Time) []slog.Attr {
	msgs, kb := middleware.GetCounters(c)
	outcome := status
	if status == "skip" {
		outcome = "ok"
	}
	return []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
}

// handlerName turns "/New Order" into "new_order".
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers an error's own Code() and falls back to its type name,
// upper-cased: *flow.StepError becomes STEPERROR.
func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		if code := strings.TrimSpace(coder.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	}
	typ := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(typ, "."); i >= 0 {
		typ = typ[i+1:]
	}
	return strings.ToUpper(typ)
}
