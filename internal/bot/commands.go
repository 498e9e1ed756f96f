package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/core/telegram/callbacks"
	"github.com/bryanwax12/newbotcursor/core/telegram/format"
	tghelpers "github.com/bryanwax12/newbotcursor/core/telegram/helpers"
	"github.com/bryanwax12/newbotcursor/core/telegram/keyboard"
	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/templates"

	tele "gopkg.in/telebot.v4"
)

const helpText = `*Shipping order bot*

/neworder - create a shipping order step by step
/continue - show the current question again
/cancel - drop the order in progress
/templates - manage saved address templates
/balance - show your balance

Answer each question with a message. Optional steps have a *Skip* button.
Before the order is placed you can review everything and edit any section.
Unfinished orders are discarded after 15 minutes of inactivity.`

func (b *Bot) cmdStart(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	text := "👋 Welcome! I help you create shipping orders."
	row := []keyboard.InlineBtn{btnNew}
	if b.flow.Active(ctx, c.Sender().ID) {
		text += "\nYou have an order in progress."
		row = []keyboard.InlineBtn{btnContinue, btnRestart}
	}
	return tghelpers.SendMD(c, text, keyboard.InlineButtonsRows(row))
}

func (b *Bot) cmdHelp(c tele.Context) error {
	return tghelpers.SendMD(c, helpText)
}

// cmdNewOrder offers to resume an active order, or the template picker when
// the user has templates, or starts a fresh order.
func (b *Bot) cmdNewOrder(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	userID := c.Sender().ID

	if b.flow.Active(ctx, userID) {
		return tghelpers.SendMD(c, "You already have an order in progress.",
			keyboard.InlineButtonsRows([]keyboard.InlineBtn{btnContinue, btnRestart}))
	}
	if b.templates != nil {
		list, err := b.templates.List(ctx, userID)
		if err != nil {
			return b.reply(c, nilReply, err)
		}
		if len(list) > 0 {
			btns := make([]keyboard.InlineBtn, 0, len(list)+1)
			for _, t := range list {
				btns = append(btns, keyboard.InlineBtn{Text: "📋 " + t.Name, Unique: CbTplUse, Data: t.ID})
			}
			btns = append(btns, keyboard.InlineBtn{Text: "✍️ Fill in manually", Unique: CbNew})
			return tghelpers.SendMD(c, "Start from a saved template?", keyboard.InlineButtonsNPerRow(btns, 1))
		}
	}
	r, err := b.flow.Start(ctx, userID)
	return b.reply(c, r, err)
}

func (b *Bot) cbNew(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.Start(ctx, c.Sender().ID)
	return b.reply(c, r, err)
}

func (b *Bot) cbRestart(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.Restart(ctx, c.Sender().ID)
	return b.reply(c, r, err)
}

func (b *Bot) cmdContinue(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.Resume(ctx, c.Sender().ID)
	return b.reply(c, r, err)
}

func (b *Bot) cmdCancel(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.Handle(ctx, c.Sender().ID, engine.Cancel())
	return b.reply(c, r, err)
}

func (b *Bot) cmdTemplates(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	list, err := b.templates.List(ctx, c.Sender().ID)
	if err != nil {
		return b.reply(c, nilReply, err)
	}
	if len(list) == 0 {
		return tghelpers.SendMD(c, "You have no templates yet. After placing an order tap *Save as template*.")
	}
	var sb strings.Builder
	sb.WriteString("*Your templates*\n")
	rows := make([][]keyboard.InlineBtn, 0, len(list))
	for i, t := range list {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, format.MD(t.Name))
		rows = append(rows, []keyboard.InlineBtn{
			{Text: fmt.Sprintf("📋 Use %d", i+1), Unique: CbTplUse, Data: t.ID},
			{Text: fmt.Sprintf("🗑 Delete %d", i+1), Unique: CbTplDel, Data: t.ID},
		})
	}
	sb.WriteString("\nRename with /rename\\_template <n> <new name>.")
	return tghelpers.SendMD(c, sb.String(), keyboard.InlineButtonsRows(rows...))
}

func (b *Bot) cmdRenameTemplate(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return tghelpers.SendText(c, "Usage: /rename_template <n> <new name>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return tghelpers.SendText(c, "The first argument must be the template number from /templates.")
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	userID := c.Sender().ID
	list, err := b.templates.List(ctx, userID)
	if err != nil {
		return b.reply(c, nilReply, err)
	}
	if n > len(list) {
		return tghelpers.SendText(c, "No template with that number.")
	}
	name := strings.Join(args[1:], " ")
	if err := b.templates.Rename(ctx, userID, list[n-1].ID, name); err != nil {
		if text, ok := templateErrorText(err); ok {
			return tghelpers.SendText(c, text)
		}
		return b.reply(c, nilReply, err)
	}
	return tghelpers.SendText(c, "Template renamed.")
}

func (b *Bot) cbTemplateUse(c tele.Context) error {
	id, err := callbacks.RequirePayload(c)
	if err != nil {
		return b.UnknownCallback()(c)
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	r, err := b.flow.StartWithTemplate(ctx, c.Sender().ID, id)
	return b.reply(c, r, err)
}

func (b *Bot) cbTemplateSave(c tele.Context) error {
	draftID, err := callbacks.RequirePayload(c)
	if err != nil {
		return b.UnknownCallback()(c)
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	t, err := b.templates.SaveFromOrder(ctx, c.Sender().ID, draftID, "")
	if err != nil {
		if text, ok := templateErrorText(err); ok {
			return tghelpers.SendText(c, text)
		}
		return b.reply(c, nilReply, err)
	}
	return tghelpers.SendMD(c, fmt.Sprintf("💾 Saved as *%s*.", format.MD(t.Name)))
}

func (b *Bot) cbTemplateDelete(c tele.Context) error {
	id, err := callbacks.RequirePayload(c)
	if err != nil {
		return b.UnknownCallback()(c)
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	if err := b.templates.Delete(ctx, c.Sender().ID, id); err != nil {
		if text, ok := templateErrorText(err); ok {
			return tghelpers.SendText(c, text)
		}
		return b.reply(c, nilReply, err)
	}
	return tghelpers.SendText(c, "Template deleted.")
}

func templateErrorText(err error) (string, bool) {
	switch {
	case errors.Is(err, templates.ErrNotFound), errors.Is(err, templates.ErrNotOwned):
		return "Template not found.", true
	case errors.Is(err, templates.ErrOrderNotFound):
		return "That order can no longer be saved as a template.", true
	case errors.Is(err, templates.ErrLimitReached):
		return "You have reached the template limit. Delete one in /templates first.", true
	case errors.Is(err, templates.ErrInvalidName):
		return fmt.Sprintf("Template names must be 1 to %d characters.", templates.MaxNameLength), true
	case errors.Is(err, templates.ErrNameTaken):
		return "You already have a template with that name.", true
	}
	return "", false
}

func (b *Bot) cmdBalance(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	bal, err := b.orders.Balance(ctx, c.Sender().ID)
	if err != nil {
		return b.reply(c, nilReply, err)
	}
	text := fmt.Sprintf("💰 Balance: *%s*", orders.FormatCents(bal))
	if b.price > 0 {
		text += fmt.Sprintf("\nOrder price: %s", orders.FormatCents(b.price))
	}
	return tghelpers.SendMD(c, text)
}

// cmdCredit adds funds to a user: /credit <user_id> <amount>.
func (b *Bot) cmdCredit(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return tghelpers.SendText(c, "Usage: /credit <user_id> <amount>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return tghelpers.SendText(c, "Invalid user id.")
	}
	cents, err := orders.ParseCents(args[1])
	if err != nil || cents <= 0 {
		return tghelpers.SendText(c, "Invalid amount.")
	}
	ctx, cancel := b.requestContext(c)
	defer cancel()
	bal, err := b.orders.Credit(ctx, userID, cents)
	if err != nil {
		return b.reply(c, nilReply, err)
	}
	logger.Info(ctx, logger.ComponentOrders, "orders.credit.admin",
		slog.String("status", "ok"),
		slog.Int64("target_user_id", userID),
		slog.Int64("amount_cents", cents),
	)
	return tghelpers.SendText(c, fmt.Sprintf("Credited %s. New balance: %s.", orders.FormatCents(cents), orders.FormatCents(bal)))
}

func (b *Bot) cmdPurge(c tele.Context) error {
	ctx, cancel := b.requestContext(c)
	defer cancel()
	n, err := b.purge(ctx)
	if err != nil {
		return b.reply(c, nilReply, err)
	}
	return tghelpers.SendText(c, fmt.Sprintf("Purged %d expired sessions.", n))
}
