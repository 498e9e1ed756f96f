// Package engine implements the order conversation state machine. Advance is
// a pure function of the loaded session and one event; it performs no I/O.
package engine

import "github.com/bryanwax12/newbotcursor/internal/steps"

// EventKind names an inbound user action.
type EventKind string

const (
	EventText        EventKind = "text"
	EventSkip        EventKind = "skip"
	EventCancel      EventKind = "cancel"
	EventEdit        EventKind = "edit"
	EventBack        EventKind = "back"
	EventConfirm     EventKind = "confirm"
	EventUseTemplate EventKind = "use_template"
)

// Event is one user action addressed to a session.
type Event struct {
	Kind       EventKind
	Text       string
	Target     steps.ID
	TemplateID string
}

func Text(raw string) Event { return Event{Kind: EventText, Text: raw} }
func Skip() Event { return Event{Kind: EventSkip} }
func Cancel() Event { return Event{Kind: EventCancel} }
func Edit(target steps.ID) Event { return Event{Kind: EventEdit, Target: target} }
func Back() Event { return Event{Kind: EventBack} }
func Confirm() Event { return Event{Kind: EventConfirm} }
func UseTemplate(templateID string) Event { return Event{Kind: EventUseTemplate, TemplateID: templateID} }

// CursorBound reports whether the meaning of the event depends on the cursor
// it was computed against. Such events are not replayed on a moved session.
func (e Event) CursorBound() bool {
	switch e.Kind {
	case EventText, EventSkip, EventBack:
		return true
	}
	return false
}

// Fingerprint identifies duplicate deliveries of the same action.
func (e Event) Fingerprint() string {
	switch e.Kind {
	case EventText:
		return "text:" + e.Text
	case EventEdit:
		return "edit:" + string(e.Target)
	case EventUseTemplate:
		return "use_template:" + e.TemplateID
	}
	return string(e.Kind)
}

// Kind tags an Outcome.
type Kind string

// Engine outcomes.
const (
	Reprompt             Kind = "reprompt"
	Advanced             Kind = "advanced"
	Rejected             Kind = "rejected"
	Cancelled            Kind = "cancelled"
	Editing              Kind = "editing"
	ReadyForFinalization Kind = "ready_for_finalization"
	LoadTemplate         Kind = "load_template"
	TemplateApplied      Kind = "template_applied"
	Completed            Kind = "complete"
	FinalizeFailed       Kind = "finalize_failed"
)

// Outcomes produced by the orchestration layer around the engine.
const (
	NoSession      Kind = "no_session"
	Debounced      Kind = "debounced"
	Conflict       Kind = "conflict"
	Stale          Kind = "stale"
	Started        Kind = "started"
	Resumed        Kind = "resumed"
	TemplateFailed Kind = "template_failed"
)

// Rejection and reprompt reasons that do not come from a validator.
const (
	ReasonNotSkippable         = "not_skippable"
	ReasonNotVisited           = "not_visited"
	ReasonNotConfirmable       = "not_confirmable"
	ReasonIncomplete           = "incomplete"
	ReasonTemplateNotAtStart   = "template_not_at_start"
	ReasonTerminal             = "terminal"
	ReasonNothingToUndo        = "nothing_to_undo"
	ReasonUnknownStep          = "unknown_step"
	ReasonAwaitingConfirmation = "awaiting_confirmation"
	ReasonUnknownEvent         = "unknown_event"
)

// Outcome describes what happened to an event.
type Outcome struct {
	Kind Kind
	// Reason is the machine-readable cause of a reprompt, rejection or failure.
	Reason string
	// Detail is a human-readable hint, e.g. the validator message.
	Detail string
	// Step is the step the outcome refers to: the rejected or edited step,
	// or the step the cursor advanced from.
	Step    steps.ID
	OrderID string
	// TemplateID is set on LoadTemplate and TemplateApplied.
	TemplateID string
}
