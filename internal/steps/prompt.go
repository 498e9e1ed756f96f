package steps

// FieldView is the read-only projection of one collected field.
type FieldView struct {
	Value         string
	Prefilled     bool
	AutoGenerated bool
	Stale         bool
}

// Snapshot is the part of a session a prompt may read.
type Snapshot interface {
	Field(id ID) (FieldView, bool)
	Visited(id ID) bool
}

// SummaryLine is one row of the confirmation summary.
type SummaryLine struct {
	Step  ID
	Group Group
	Label string
	FieldView
}

// Prompt is transport-neutral prompt data for the current cursor.
type Prompt struct {
	Step     ID
	Group    Group
	Label    string
	Text     string
	Optional bool
	Position int
	Total    int

	// Current holds the value already stored for the step, if any, so a
	// re-entered or prefilled step can show it.
	Current    *FieldView
	Summary    []SummaryLine
	Editable   []ID
	Confirming bool
}

// PromptFor builds prompt data for id against the given snapshot.
func (r *Registry) PromptFor(id ID, snap Snapshot) Prompt {
	p := Prompt{Step: id, Total: len(r.order)}
	if id == AwaitingConfirmation {
		p.Confirming = true
		p.Text = "Please review the order and confirm."
		p.Summary = r.summary(snap)
		p.Editable = r.editable(snap)
		return p
	}
	d, ok := r.defs[id]
	if !ok {
		return p
	}
	p.Group = d.Group
	p.Label = d.Label
	p.Text = d.Prompt
	p.Optional = d.Optional
	p.Position = r.index[id] + 1
	if snap != nil {
		if fv, ok := snap.Field(id); ok {
			p.Current = &fv
		}
		p.Editable = r.editable(snap)
	}
	return p
}

func (r *Registry) summary(snap Snapshot) []SummaryLine {
	if snap == nil {
		return nil
	}
	out := make([]SummaryLine, 0, len(r.order))
	for _, id := range r.order {
		fv, ok := snap.Field(id)
		if !ok {
			continue
		}
		d := r.defs[id]
		out = append(out, SummaryLine{Step: id, Group: d.Group, Label: d.Label, FieldView: fv})
	}
	return out
}

// editable lists the first step of every group the user can jump back to.
func (r *Registry) editable(snap Snapshot) []ID {
	var out []ID
	seen := make(map[Group]struct{}, 3)
	for _, id := range r.order {
		g := r.defs[id].Group
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		if snap.Visited(id) {
			out = append(out, id)
		}
	}
	return out
}
