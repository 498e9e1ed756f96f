package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d; nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// deliver queues run on the chat's lane, or runs it inline when no
// dispatcher is set or the queue refuses the job.
func deliver(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, sender.Job{Key: ChatKey(c), Action: action, Endpoint: "sendMessage", Run: run})
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("status", "retry"),
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var so *tele.SendOptions
	if len(opts) > 0 {
		so = opts[0]
	}
	return deliver(c, "send.text", func() error {
		if so == nil {
			return c.Send(text)
		}
		return c.Send(text, so)
	})
}

// SendMD sends Markdown text with an optional inline keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	so := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		so.ReplyMarkup = markup[0]
	}
	return deliver(c, "send.md", func() error { return c.Send(text, so) })
}
