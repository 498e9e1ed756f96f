package engine

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/bryanwax12/newbotcursor/internal/session"
	"github.com/bryanwax12/newbotcursor/internal/steps"
)

// Machine applies events to sessions using a step registry. It is safe for
// concurrent use.
type Machine struct {
	reg *steps.Registry
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for last_activity_at.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithRand sets the random source used by skip defaults.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) { m.rnd = r }
}

// New returns a Machine for reg.
func New(reg *steps.Registry, opts ...Option) *Machine {
	m := &Machine{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.rnd == nil {
		m.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m
}

// Registry returns the step registry the machine runs on.
func (m *Machine) Registry() *steps.Registry { return m.reg }

// NewSession returns a fresh session positioned on the first step.
func (m *Machine) NewSession(userID int64, draftID string) *session.Session {
	return session.New(userID, draftID, m.reg.FirstStep(), m.now())
}

// Advance computes the effect of ev on s. It returns the next session when
// the event mutates state, or nil when s is to be left untouched. The input
// session is never modified.
func (m *Machine) Advance(s *session.Session, ev Event) (*session.Session, Outcome) {
	if s == nil {
		return nil, Outcome{Kind: NoSession}
	}
	if s.Terminal() {
		return nil, reject(ReasonTerminal, s.Cursor)
	}
	switch ev.Kind {
	case EventText:
		return m.text(s, ev.Text)
	case EventSkip:
		return m.skip(s)
	case EventCancel:
		n := m.mutate(s)
		n.Cursor = steps.Cancelled
		return n, Outcome{Kind: Cancelled, Step: s.Cursor}
	case EventEdit:
		return m.edit(s, ev.Target)
	case EventBack:
		if len(s.History) == 0 {
			return nil, reject(ReasonNothingToUndo, s.Cursor)
		}
		return m.edit(s, s.History[len(s.History)-1])
	case EventConfirm:
		return m.confirm(s)
	case EventUseTemplate:
		if !AtStart(s) {
			return nil, reject(ReasonTemplateNotAtStart, s.Cursor)
		}
		return nil, Outcome{Kind: LoadTemplate, TemplateID: ev.TemplateID, Step: s.Cursor}
	}
	return nil, reject(ReasonUnknownEvent, s.Cursor)
}

func reject(reason string, step steps.ID) Outcome {
	return Outcome{Kind: Rejected, Reason: reason, Step: step}
}

// AtStart reports whether no step has been answered yet, the only point at
// which a template may be applied.
func AtStart(s *session.Session) bool {
	return len(s.Fields) == 0 && len(s.History) == 0
}

// mutate clones s and stamps the next version.
func (m *Machine) mutate(s *session.Session) *session.Session {
	n := s.Clone()
	n.Version++
	n.LastActivityAt = m.now()
	return n
}

func (m *Machine) text(s *session.Session, raw string) (*session.Session, Outcome) {
	cur := s.Cursor
	if cur == steps.AwaitingConfirmation {
		return nil, Outcome{Kind: Reprompt, Reason: ReasonAwaitingConfirmation, Step: cur}
	}
	fn, ok := m.reg.ValidatorFor(cur)
	if !ok {
		return nil, reject(ReasonUnknownStep, cur)
	}
	res := fn(raw)
	if !res.OK() {
		return nil, Outcome{Kind: Reprompt, Reason: string(res.Reason), Detail: res.Detail, Step: cur}
	}
	n := m.mutate(s)
	n.Fields[cur] = session.Field{Value: res.Value, Origin: session.OriginUser}
	n.History = append(n.History, cur)
	n.Cursor = m.reg.Next(cur)
	m.forward(n)
	return n, Outcome{Kind: Advanced, Step: cur}
}

func (m *Machine) skip(s *session.Session) (*session.Session, Outcome) {
	cur := s.Cursor
	def, ok := m.reg.Lookup(cur)
	if !ok || !def.Optional {
		return nil, reject(ReasonNotSkippable, cur)
	}
	n := m.mutate(s)
	m.fillDefault(n, def)
	for _, id := range def.SkipFills {
		fd, _ := m.reg.Lookup(id)
		m.fillDefault(n, fd)
	}
	n.Cursor = def.NextOnSkip
	m.forward(n)
	return n, Outcome{Kind: Advanced, Step: cur}
}

func (m *Machine) fillDefault(n *session.Session, def steps.Definition) {
	n.Fields[def.ID] = m.defaultField(def)
	n.History = append(n.History, def.ID)
}

func (m *Machine) defaultField(def steps.Definition) session.Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	return session.Field{Value: def.Default(m.rnd), Origin: session.OriginAutoGenerated}
}

// forward moves the cursor over steps that already hold a current value,
// recording them as visited. Only template seeding leaves such values ahead
// of the cursor; edit marks everything after its target stale.
func (m *Machine) forward(n *session.Session) {
	for !n.Cursor.Marker() {
		f, ok := n.Fields[n.Cursor]
		if !ok || f.Stale {
			return
		}
		n.History = append(n.History, n.Cursor)
		n.Cursor = m.reg.Next(n.Cursor)
	}
}

func (m *Machine) edit(s *session.Session, target steps.ID) (*session.Session, Outcome) {
	if target == "" || target.Marker() || !m.reg.Known(target) {
		return nil, reject(ReasonUnknownStep, target)
	}
	if target == s.Cursor {
		return nil, Outcome{Kind: Editing, Step: target}
	}
	idx := s.HistoryIndex(target)
	if idx < 0 {
		return nil, reject(ReasonNotVisited, target)
	}
	n := m.mutate(s)
	n.History = n.History[:idx]
	n.Cursor = target
	pos := m.reg.Index(target)
	for id, f := range n.Fields {
		if m.reg.Index(id) > pos {
			f.Stale = true
			n.Fields[id] = f
		}
	}
	return n, Outcome{Kind: Editing, Step: target}
}

func (m *Machine) confirm(s *session.Session) (*session.Session, Outcome) {
	if s.Cursor != steps.AwaitingConfirmation {
		return nil, reject(ReasonNotConfirmable, s.Cursor)
	}
	for _, id := range m.reg.Required() {
		if _, ok := s.Value(id); !ok {
			return nil, reject(ReasonIncomplete, id)
		}
	}
	return nil, Outcome{Kind: ReadyForFinalization, Step: s.Cursor}
}

// Complete records a successful finalization.
func (m *Machine) Complete(s *session.Session, orderID string) (*session.Session, Outcome) {
	if s == nil {
		return nil, Outcome{Kind: NoSession}
	}
	if s.Cursor != steps.AwaitingConfirmation {
		return nil, reject(ReasonNotConfirmable, s.Cursor)
	}
	return m.Finalized(s, orderID)
}

// Finalized closes a draft whose order already exists, whatever step the
// session has moved to since the confirmation was read. The order is final,
// so the draft must not stay open for further edits.
func (m *Machine) Finalized(s *session.Session, orderID string) (*session.Session, Outcome) {
	if s == nil {
		return nil, Outcome{Kind: NoSession}
	}
	if s.Terminal() {
		return nil, reject(ReasonTerminal, s.Cursor)
	}
	n := m.mutate(s)
	n.Cursor = steps.Complete
	n.OrderID = orderID
	return n, Outcome{Kind: Completed, OrderID: orderID, Step: s.Cursor}
}

// ApplyTemplate seeds a fresh session from a template field map keyed by step
// id. Values that fail validation are dropped. An empty value for an optional
// step counts as present and receives the step default. When every required
// step is covered the cursor jumps to confirmation; otherwise it stops on the
// first step the template does not cover.
func (m *Machine) ApplyTemplate(s *session.Session, templateID string, fields map[string]string) (*session.Session, Outcome) {
	if s == nil {
		return nil, Outcome{Kind: NoSession}
	}
	if s.Terminal() {
		return nil, reject(ReasonTerminal, s.Cursor)
	}
	if !AtStart(s) {
		return nil, reject(ReasonTemplateNotAtStart, s.Cursor)
	}

	n := m.mutate(s)
	n.TemplateID = templateID
	order := m.reg.Order()
	for _, id := range order {
		raw, ok := fields[string(id)]
		if !ok {
			continue
		}
		def, _ := m.reg.Lookup(id)
		if raw == "" {
			if def.Optional {
				n.Fields[id] = m.defaultField(def)
			}
			continue
		}
		if res := def.Validate(raw); res.OK() {
			n.Fields[id] = session.Field{Value: res.Value, Origin: session.OriginPrefilled}
		}
	}

	complete := !slices.ContainsFunc(m.reg.Required(), func(id steps.ID) bool {
		_, ok := n.Fields[id]
		return !ok
	})
	if complete {
		for _, id := range order {
			if _, ok := n.Fields[id]; !ok {
				def, _ := m.reg.Lookup(id)
				n.Fields[id] = m.defaultField(def)
			}
		}
		n.History = order
		n.Cursor = steps.AwaitingConfirmation
	} else {
		n.Cursor = m.reg.FirstStep()
		m.forward(n)
	}
	return n, Outcome{Kind: TemplateApplied, TemplateID: templateID, Step: n.Cursor}
}

// Applied reports whether actual already reflects the transition intended
// for step, as happens when a duplicate delivery of the same event won the
// write race. Skip defaults are random, so two auto-generated values match.
func Applied(intended, actual *session.Session, step steps.ID) bool {
	if intended == nil || actual == nil {
		return false
	}
	if intended.DraftID != actual.DraftID || intended.Cursor != actual.Cursor {
		return false
	}
	if !slices.Equal(intended.History, actual.History) {
		return false
	}
	a, aok := intended.Fields[step]
	b, bok := actual.Fields[step]
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	if a.Stale != b.Stale || a.Origin != b.Origin {
		return false
	}
	return a.Value == b.Value || a.Origin == session.OriginAutoGenerated
}
