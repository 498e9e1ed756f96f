// Package steps declares the ordered conversation steps of the order wizard.
// The registry is immutable once built and safe for concurrent use.
package steps

import (
	"fmt"
	"math/rand/v2"

	"github.com/bryanwax12/newbotcursor/internal/validate"
)

// ID identifies a conversation step or a terminal marker.
type ID string

// Markers that are not backed by a step definition.
const (
	AwaitingConfirmation ID = "AWAITING_CONFIRMATION"
	Complete             ID = "COMPLETE"
	Cancelled            ID = "CANCELLED"
)

// Terminal reports whether no transition may leave id.
func (id ID) Terminal() bool { return id == Complete || id == Cancelled }

// Marker reports whether id is one of the non-step cursor values.
func (id ID) Marker() bool { return id == AwaitingConfirmation || id.Terminal() }

// Group clusters steps for display and bulk editing.
type Group string

const (
	GroupSender    Group = "sender"
	GroupRecipient Group = "recipient"
	GroupParcel    Group = "parcel"
)

// DefaultFunc synthesizes the value stored when an optional step is skipped.
type DefaultFunc func(r *rand.Rand) string

// Definition describes a single step.
type Definition struct {
	ID       ID
	Group    Group
	Label    string
	Prompt   string
	Optional bool
	Validate validate.Func

	Next       ID
	NextOnSkip ID
	Default    DefaultFunc
	// SkipFills lists further steps that receive their default when this
	// step is skipped; they are recorded as visited.
	SkipFills []ID
}

// Registry is the ordered, immutable list of step definitions.
type Registry struct {
	order []ID
	defs  map[ID]Definition
	index map[ID]int
}

// New builds a registry from definitions in canonical order and checks that
// every transition target exists.
func New(defs ...Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("steps: empty registry")
	}
	r := &Registry{
		order: make([]ID, 0, len(defs)),
		defs:  make(map[ID]Definition, len(defs)),
		index: make(map[ID]int, len(defs)),
	}
	for i, d := range defs {
		if d.ID == "" || d.ID.Marker() {
			return nil, fmt.Errorf("steps: invalid step id %q", d.ID)
		}
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("steps: duplicate step %q", d.ID)
		}
		if d.Validate == nil {
			return nil, fmt.Errorf("steps: step %q has no validator", d.ID)
		}
		r.order = append(r.order, d.ID)
		r.defs[d.ID] = d
		r.index[d.ID] = i
	}
	for _, d := range defs {
		if !r.Known(d.Next) {
			return nil, fmt.Errorf("steps: step %q points to unknown next %q", d.ID, d.Next)
		}
		if !d.Optional {
			continue
		}
		if d.Default == nil {
			return nil, fmt.Errorf("steps: optional step %q has no default", d.ID)
		}
		if !r.Known(d.NextOnSkip) {
			return nil, fmt.Errorf("steps: step %q points to unknown skip target %q", d.ID, d.NextOnSkip)
		}
		for _, f := range d.SkipFills {
			fd, ok := r.defs[f]
			if !ok || fd.Default == nil {
				return nil, fmt.Errorf("steps: step %q fills %q which has no default", d.ID, f)
			}
		}
	}
	return r, nil
}

// MustNew is New that panics on an invalid chain.
func MustNew(defs ...Definition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// FirstStep returns the initial cursor of a fresh session.
func (r *Registry) FirstStep() ID { return r.order[0] }

// Lookup returns the definition of a step.
func (r *Registry) Lookup(id ID) (Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Known reports whether id is a step of this registry or a marker.
func (r *Registry) Known(id ID) bool {
	if id.Marker() {
		return true
	}
	_, ok := r.defs[id]
	return ok
}

// Next returns the step that follows id on successful input.
func (r *Registry) Next(id ID) ID {
	if d, ok := r.defs[id]; ok {
		return d.Next
	}
	return id
}

// NextOnSkip returns the step that follows id when it is skipped.
func (r *Registry) NextOnSkip(id ID) ID {
	if d, ok := r.defs[id]; ok && d.Optional {
		return d.NextOnSkip
	}
	return id
}

// IsOptional reports whether id may be skipped.
func (r *Registry) IsOptional(id ID) bool {
	d, ok := r.defs[id]
	return ok && d.Optional
}

// ValidatorFor returns the validator bound to id.
func (r *Registry) ValidatorFor(id ID) (validate.Func, bool) {
	d, ok := r.defs[id]
	if !ok {
		return nil, false
	}
	return d.Validate, true
}

// Index returns the canonical position of id, or -1 for markers and unknown ids.
func (r *Registry) Index(id ID) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of steps.
func (r *Registry) Len() int { return len(r.order) }

// Order returns step ids in canonical order.
func (r *Registry) Order() []ID {
	return append([]ID(nil), r.order...)
}

// Required returns the ids of all non-optional steps in canonical order.
func (r *Registry) Required() []ID {
	out := make([]ID, 0, len(r.order))
	for _, id := range r.order {
		if !r.defs[id].Optional {
			out = append(out, id)
		}
	}
	return out
}

// Keys returns step ids as plain strings, the field names used by collaborators.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	for i, id := range r.order {
		out[i] = string(id)
	}
	return out
}

// RequiredKeys is Required as plain strings.
func (r *Registry) RequiredKeys() []string {
	ids := r.Required()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// FirstOfGroup returns the first step belonging to g.
func (r *Registry) FirstOfGroup(g Group) (ID, bool) {
	for _, id := range r.order {
		if r.defs[id].Group == g {
			return id, true
		}
	}
	return "", false
}
