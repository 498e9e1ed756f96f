// Package bot adapts the order flow to Telegram: commands, inline callbacks
// and free-text answers. It holds no conversation state of its own.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bryanwax12/newbotcursor/core/logger"
	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	"github.com/bryanwax12/newbotcursor/core/telegram/callbacks"
	"github.com/bryanwax12/newbotcursor/core/telegram/commands"
	tghelpers "github.com/bryanwax12/newbotcursor/core/telegram/helpers"
	"github.com/bryanwax12/newbotcursor/core/telegram/ui"
	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/flow"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/steps"
	"github.com/bryanwax12/newbotcursor/internal/templates"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultTimeout = 10 * time.Second

	textTryLater = "Something went wrong on our side. Please try again later."
)

var _ ui.FallbackProvider = (*Bot)(nil)

// nilReply is passed to reply together with a non-nil error.
var nilReply flow.Reply

// Purger removes expired sessions on demand.
type Purger func(ctx context.Context) (int, error)

// Deps are the services the bot drives.
type Deps struct {
	Flow      *flow.Service
	Templates *templates.Service
	Orders    orders.Store
	Purge     Purger
	// PriceCents is shown next to the balance; zero hides it.
	PriceCents int64
}

// Bot implements the Telegram surface of the order wizard.
type Bot struct {
	flow      *flow.Service
	templates *templates.Service
	orders    orders.Store
	purge     Purger
	price     int64
	timeout   time.Duration
}

// New returns a Bot. Flow is required; the other dependencies disable their
// commands when nil.
func New(d Deps) *Bot {
	return &Bot{
		flow:      d.Flow,
		templates: d.Templates,
		orders:    d.Orders,
		purge:     d.Purge,
		price:     d.PriceCents,
		timeout:   defaultTimeout,
	}
}

type namedCommand struct {
	name string
	cmd  commands.Command
}

func (b *Bot) commandSet() []namedCommand {
	cmds := []namedCommand{
		{"/start", commands.Command{Handler: b.cmdStart, Description: "Welcome and main menu"}},
		{"/neworder", commands.Command{Handler: b.cmdNewOrder, Description: "Create a shipping order", Aliases: []string{"/new"}}},
		{"/continue", commands.Command{Handler: b.cmdContinue, Description: "Continue the current order"}},
		{"/cancel", commands.Command{Handler: b.cmdCancel, Description: "Cancel the current order"}},
		{"/help", commands.Command{Handler: b.cmdHelp, Description: "How to use the bot"}},
	}
	if b.templates != nil {
		cmds = append(cmds,
			namedCommand{"/templates", commands.Command{Handler: b.cmdTemplates, Description: "Saved address templates"}},
			namedCommand{"/rename_template", commands.Command{Handler: b.cmdRenameTemplate,
				Description: "Rename a template: /rename_template <n> <name>", Hidden: true}},
		)
	}
	if b.orders != nil {
		cmds = append(cmds,
			namedCommand{"/balance", commands.Command{Handler: b.cmdBalance, Description: "Show your balance"}},
			namedCommand{"/credit", commands.Command{Handler: b.cmdCredit,
				Description: "Credit a user: /credit <user_id> <amount>", AdminOnly: true}},
		)
	}
	if b.purge != nil {
		cmds = append(cmds, namedCommand{"/sessions_purge", commands.Command{Handler: b.cmdPurge,
			Description: "Purge expired order sessions", AdminOnly: true}})
	}
	return cmds
}

// Register adds commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	var errs []error
	for _, nc := range b.commandSet() {
		errs = append(errs, reg.RegisterCommand(nc.name, nc.cmd))
	}

	handlers := map[string]tele.HandlerFunc{
		CbSkip:     b.event(func(tele.Context) (engine.Event, error) { return engine.Skip(), nil }),
		CbBack:     b.event(func(tele.Context) (engine.Event, error) { return engine.Back(), nil }),
		CbCancel:   b.event(func(tele.Context) (engine.Event, error) { return engine.Cancel(), nil }),
		CbConfirm:  b.event(func(tele.Context) (engine.Event, error) { return engine.Confirm(), nil }),
		CbEdit:     b.event(editEvent),
		CbNew:      b.cbNew,
		CbContinue: b.cmdContinue,
		CbRestart:  b.cbRestart,
	}
	if b.templates != nil {
		handlers[CbTplUse] = b.cbTemplateUse
		handlers[CbTplSave] = b.cbTemplateSave
		handlers[CbTplDel] = b.cbTemplateDelete
	}
	for key, h := range handlers {
		errs = append(errs, reg.RegisterCallback(key, h))
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return errors.Join(errs...)
}

func editEvent(c tele.Context) (engine.Event, error) {
	target, err := callbacks.RequirePayload(c)
	if err != nil {
		return engine.Event{}, err
	}
	return engine.Edit(steps.ID(target)), nil
}

// requestContext derives a bounded request context carrying the update metadata.
func (b *Bot) requestContext(c tele.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tghelpers.BuildContext(c), b.timeout)
}

// InProgress reports whether the sender has an active order session.
func (b *Bot) InProgress(c tele.Context) bool {
	if c.Sender() == nil {
		return false
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	return b.flow.Active(ctx, c.Sender().ID)
}

// HandleInput feeds free text into the active order session.
func (b *Bot) HandleInput(c tele.Context) error {
	if c.Message() != nil && c.Message().Document != nil {
		return tghelpers.SendText(c, "Please answer with text.")
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.Handle(ctx, c.Sender().ID, engine.Text(c.Text()))
	return b.reply(c, r, err)
}

// event adapts a callback into a flow event.
func (b *Bot) event(build func(tele.Context) (engine.Event, error)) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, err := build(c)
		if err != nil {
			return b.UnknownCallback()(c)
		}
		ctx, cancel := b.requestContext(c)
		defer cancel()
		r, err := b.flow.Handle(ctx, c.Sender().ID, ev)
		return b.reply(c, r, err)
	}
}

// reply renders r, or a generic failure notice when err is set.
func (b *Bot) reply(c tele.Context, r flow.Reply, err error) error {
	if err != nil {
		logger.Error(tghelpers.BuildContext(c), logger.ComponentFlow, "bot.reply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		_ = tghelpers.SendText(c, textTryLater)
		return err
	}
	text, markup := Render(r)
	if text == "" {
		return nil
	}
	return tghelpers.SendMD(c, text, markup)
}

// UnknownText answers text that no command or conversation claimed.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		text, markup := Render(flow.Reply{Outcome: engine.Outcome{Kind: engine.NoSession}})
		return tghelpers.SendMD(c, text+"\nSend /neworder to create one or /help for details.", markup)
	}
}

// UnknownDocument answers files sent outside of a conversation.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "Files are not supported. Send /help for the available commands.")
	}
}

// Throttled answers updates dropped by the rate limit. Only button presses
// get a reply since they otherwise leave a spinner behind.
func (b *Bot) Throttled() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		return c.Respond(&tele.CallbackResponse{Text: "Too fast, please wait a moment."})
	}
}

// UnknownCallback answers stale or malformed buttons.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
		return nil
	}
}
