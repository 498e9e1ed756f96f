package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/flow"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/session"
	"github.com/bryanwax12/newbotcursor/internal/steps"

	tele "gopkg.in/telebot.v4"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func uniques(m *tele.ReplyMarkup) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Unique)
		}
	}
	return out
}

func TestRenderDebouncedSendsNothing(t *testing.T) {
	text, markup := Render(flow.Reply{Outcome: engine.Outcome{Kind: engine.Debounced}})
	assert.Empty(t, text)
	assert.Nil(t, markup)
}

func TestRenderOptionalStep(t *testing.T) {
	p := steps.Prompt{
		Step: steps.SenderAddr2, Group: steps.GroupSender, Label: "Address line 2",
		Text: "Enter address line 2 or skip.", Optional: true, Position: 3, Total: 18,
	}
	text, markup := Render(flow.Reply{Outcome: engine.Outcome{Kind: engine.Advanced}, Prompt: &p})
	assert.Contains(t, text, "*Sender* · step 3 of 18")
	assert.Equal(t, []string{CbSkip, CbBack, CbCancel}, uniques(markup))
}

func TestRenderFirstStepHasNoBack(t *testing.T) {
	p := steps.Prompt{Step: steps.SenderName, Group: steps.GroupSender, Text: "Enter the sender's full name.", Position: 1, Total: 18}
	text, markup := Render(flow.Reply{Outcome: engine.Outcome{Kind: engine.Started}, Prompt: &p})
	assert.Contains(t, text, "New order started.")
	assert.Contains(t, text, `sender's`)
	assert.Equal(t, []string{CbCancel}, uniques(markup))
}

func TestRenderRepromptShowsValidatorDetail(t *testing.T) {
	p := steps.Prompt{Step: steps.SenderZIP, Group: steps.GroupSender, Text: "Enter the ZIP.", Position: 6, Total: 18}
	out := engine.Outcome{Kind: engine.Reprompt, Reason: "invalid_zip", Detail: "use 5 digits, e.g. 94117_x", Step: steps.SenderZIP}
	text, _ := Render(flow.Reply{Outcome: out, Prompt: &p})
	assert.Contains(t, text, `94117\_x`)
	assert.Contains(t, text, "Enter the ZIP.")
}

func TestRenderSummary(t *testing.T) {
	reg := steps.Shipping()
	s := session.New(1, "d-1", steps.AwaitingConfirmation, epoch)
	s.Fields[steps.SenderName] = session.Field{Value: "John_Doe", Origin: session.OriginUser}
	s.Fields[steps.SenderPhone] = session.Field{Value: "+12125550100", Origin: session.OriginAutoGenerated}
	s.Fields[steps.RecipientName] = session.Field{Value: "Jane Roe", Origin: session.OriginUser}
	s.History = []steps.ID{steps.SenderName, steps.SenderPhone, steps.RecipientName}
	p := reg.PromptFor(steps.AwaitingConfirmation, s)

	text, markup := Render(flow.Reply{Outcome: engine.Outcome{Kind: engine.Advanced}, Session: s, Prompt: &p})
	assert.Contains(t, text, "*Please review the order*")
	assert.Contains(t, text, `John\_Doe`)
	assert.Contains(t, text, "_(auto)_")
	assert.Contains(t, text, "*Recipient*")

	got := uniques(markup)
	require.NotEmpty(t, got)
	assert.Equal(t, CbConfirm, got[0])
	assert.Equal(t, CbCancel, got[len(got)-1])
	assert.Contains(t, got, CbEdit)
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.Unique == CbEdit {
				assert.True(t, reg.Known(steps.ID(b.Data)), "edit payload %q", b.Data)
			}
		}
	}
}

func TestRenderCompletedOffersTemplate(t *testing.T) {
	s := session.New(1, "draft-42", steps.Complete, epoch)
	text, markup := Render(flow.Reply{
		Outcome: engine.Outcome{Kind: engine.Completed, OrderID: "ORD-20240501120000-abcd1234"},
		Session: s,
	})
	assert.Contains(t, text, "ORD-20240501120000-abcd1234")
	require.NotNil(t, markup)
	assert.Equal(t, CbTplSave, markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "draft-42", markup.InlineKeyboard[0][0].Data)
}

func TestRenderOutcomeTexts(t *testing.T) {
	p := &steps.Prompt{Step: steps.AwaitingConfirmation, Confirming: true}
	cases := []struct {
		name string
		out  engine.Outcome
		want string
	}{
		{"no session", engine.Outcome{Kind: engine.NoSession}, "no order in progress"},
		{"cancelled", engine.Outcome{Kind: engine.Cancelled}, "Order cancelled."},
		{"balance", engine.Outcome{Kind: engine.FinalizeFailed, Reason: orders.ReasonInsufficientBalance}, "balance is too low"},
		{"finalize error", engine.Outcome{Kind: engine.FinalizeFailed, Reason: flow.ReasonFinalizeError}, "confirm again"},
		{"template", engine.Outcome{Kind: engine.TemplateFailed, Reason: flow.ReasonNotOwned}, "Template not found."},
		{"stale", engine.Outcome{Kind: engine.Stale}, "earlier question"},
		{"conflict", engine.Outcome{Kind: engine.Conflict}, "try again"},
		{"not at start", engine.Outcome{Kind: engine.Rejected, Reason: engine.ReasonTemplateNotAtStart}, "new order"},
		{"confirm buttons", engine.Outcome{Kind: engine.Reprompt, Reason: engine.ReasonAwaitingConfirmation}, "pick a section"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, _ := Render(flow.Reply{Outcome: tc.out, Prompt: p})
			assert.Contains(t, text, tc.want)
		})
	}
}
