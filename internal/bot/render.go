package bot

import (
	"fmt"
	"strings"

	"github.com/bryanwax12/newbotcursor/core/telegram/format"
	"github.com/bryanwax12/newbotcursor/core/telegram/keyboard"
	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/flow"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/steps"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques. Payloads follow a '|' separator.
const (
	CbSkip     = "order_skip"
	CbBack     = "order_back"
	CbCancel   = "order_cancel"
	CbConfirm  = "order_confirm"
	CbEdit     = "order_edit"
	CbNew      = "order_new"
	CbContinue = "order_continue"
	CbRestart  = "order_restart"
	CbTplUse   = "tpl_use"
	CbTplSave  = "tpl_save"
	CbTplDel   = "tpl_del"
)

var groupTitles = map[steps.Group]string{
	steps.GroupSender:    "Sender",
	steps.GroupRecipient: "Recipient",
	steps.GroupParcel:    "Parcel",
}

var (
	btnNew      = keyboard.InlineBtn{Text: "📦 New order", Unique: CbNew}
	btnContinue = keyboard.InlineBtn{Text: "▶️ Continue", Unique: CbContinue}
	btnRestart  = keyboard.InlineBtn{Text: "🔄 Start over", Unique: CbRestart}
	btnCancel   = keyboard.InlineBtn{Text: "❌ Cancel", Unique: CbCancel}
)

// Render turns a flow reply into Markdown text and an inline keyboard. An
// empty text means nothing should be sent.
func Render(r flow.Reply) (string, *tele.ReplyMarkup) {
	out := r.Outcome
	var lead string
	switch out.Kind {
	case engine.Debounced:
		return "", nil
	case engine.NoSession:
		return "You have no order in progress.", keyboard.InlineButtonsRows([]keyboard.InlineBtn{btnNew})
	case engine.Cancelled:
		return "Order cancelled.", keyboard.InlineButtonsRows([]keyboard.InlineBtn{btnNew})
	case engine.Completed:
		return renderCompleted(r)
	case engine.Started:
		lead = "New order started."
	case engine.Resumed:
		lead = "Continuing your order."
	case engine.TemplateApplied:
		lead = "Template applied."
	case engine.Stale:
		lead = "That answer was for an earlier question. Here is the current one."
	case engine.Conflict:
		lead = "Your order was being updated at the same time. Please try again."
	case engine.Reprompt:
		lead = "⚠️ " + repromptText(out)
	case engine.Rejected:
		lead = "⚠️ " + rejectionText(out.Reason)
	case engine.FinalizeFailed:
		lead = "⚠️ " + finalizeText(out.Reason)
	case engine.TemplateFailed:
		lead = "⚠️ " + templateFailureText(out.Reason)
	}

	if r.Prompt == nil {
		if lead == "" {
			lead = "Something went wrong. Please try again."
		}
		return lead, nil
	}
	body, markup := renderPrompt(*r.Prompt)
	if lead != "" {
		body = lead + "\n\n" + body
	}
	return body, markup
}

func renderCompleted(r flow.Reply) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("✅ Order *%s* created.", format.MD(r.Outcome.OrderID))
	row := []keyboard.InlineBtn{btnNew}
	if r.Session != nil && r.Session.DraftID != "" {
		row = append([]keyboard.InlineBtn{{Text: "💾 Save as template", Unique: CbTplSave, Data: r.Session.DraftID}}, row...)
	}
	return text, keyboard.InlineButtonsRows(row)
}

func renderPrompt(p steps.Prompt) (string, *tele.ReplyMarkup) {
	if p.Confirming {
		return renderSummary(p)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* · step %d of %d\n", groupTitles[p.Group], p.Position, p.Total)
	b.WriteString(format.MD(p.Text))
	if p.Current != nil && !p.Current.Stale && p.Current.Value != "" {
		fmt.Fprintf(&b, "\nCurrent: %s", format.MD(p.Current.Value))
	}

	var top []keyboard.InlineBtn
	if p.Optional {
		top = append(top, keyboard.InlineBtn{Text: "⏭ Skip", Unique: CbSkip})
	}
	bottom := []keyboard.InlineBtn{btnCancel}
	if p.Position > 1 {
		bottom = append([]keyboard.InlineBtn{{Text: "⬅️ Back", Unique: CbBack}}, bottom...)
	}
	return b.String(), keyboard.InlineButtonsRows(top, bottom)
}

func renderSummary(p steps.Prompt) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("*Please review the order*\n")
	var group steps.Group
	for _, line := range p.Summary {
		if line.Group != group {
			group = line.Group
			fmt.Fprintf(&b, "\n*%s*\n", groupTitles[group])
		}
		val := format.MD(line.Value)
		if line.Value == "" {
			val = "(none)"
		}
		if line.AutoGenerated {
			val += " _(auto)_"
		}
		fmt.Fprintf(&b, "%s: %s\n", line.Label, val)
	}

	groups := make(map[steps.ID]steps.Group, len(p.Summary))
	for _, line := range p.Summary {
		groups[line.Step] = line.Group
	}
	edits := make([]keyboard.InlineBtn, 0, len(p.Editable))
	for _, id := range p.Editable {
		label, ok := groupTitles[groups[id]]
		if !ok {
			label = string(id)
		}
		edits = append(edits, keyboard.InlineBtn{Text: "✏️ " + label, Unique: CbEdit, Data: string(id)})
	}
	rows := [][]keyboard.InlineBtn{{{Text: "✅ Confirm", Unique: CbConfirm}}}
	rows = append(rows, keyboard.Chunk(edits, 2)...)
	rows = append(rows, []keyboard.InlineBtn{btnCancel})
	return strings.TrimRight(b.String(), "\n"), keyboard.InlineButtonsRows(rows...)
}

func repromptText(out engine.Outcome) string {
	if out.Reason == engine.ReasonAwaitingConfirmation {
		return "Please confirm the order or pick a section to edit."
	}
	if out.Detail != "" {
		return format.MD(out.Detail)
	}
	return "That value is not valid."
}

func rejectionText(reason string) string {
	switch reason {
	case engine.ReasonNotSkippable:
		return "This step cannot be skipped."
	case engine.ReasonNotVisited:
		return "You have not reached that step yet."
	case engine.ReasonNotConfirmable:
		return "The order is not ready for confirmation yet."
	case engine.ReasonIncomplete:
		return "Some required fields are missing."
	case engine.ReasonTemplateNotAtStart:
		return "Templates can only be applied to a new order. Start over to use one."
	case engine.ReasonNothingToUndo:
		return "There is nothing to go back to."
	case engine.ReasonTerminal:
		return "This order is already closed."
	}
	return "That action is not available here."
}

func finalizeText(reason string) string {
	switch reason {
	case orders.ReasonInsufficientBalance:
		return "Your balance is too low to place this order. Top it up and confirm again."
	case orders.ReasonIncompleteOrder:
		return "Some required fields are missing."
	}
	return "Could not create the order right now. Please confirm again in a moment."
}

func templateFailureText(reason string) string {
	switch reason {
	case flow.ReasonNotFound, flow.ReasonNotOwned:
		return "Template not found."
	}
	return "Could not load the template right now."
}
