// Package session defines the persisted order-conversation session and the
// storage contract with optimistic concurrency that backs it.
package session

import (
	"slices"
	"time"

	"github.com/bryanwax12/newbotcursor/internal/steps"
)

// Origin records how a field value was obtained.
type Origin string

const (
	OriginUser          Origin = "user"
	OriginPrefilled     Origin = "prefilled"
	OriginAutoGenerated Origin = "auto_generated"
)

// Field is one collected value.
type Field struct {
	Value  string `json:"value"`
	Origin Origin `json:"origin"`
	Stale  bool   `json:"stale,omitempty"`
}

// Session is the durable state of one order attempt for one user.
type Session struct {
	UserID         int64              `json:"user_id"`
	DraftID        string             `json:"draft_id"`
	Cursor         steps.ID           `json:"cursor"`
	Fields         map[steps.ID]Field `json:"fields"`
	History        []steps.ID         `json:"history"`
	TemplateID     string             `json:"template_id,omitempty"`
	OrderID        string             `json:"order_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	Version        int64              `json:"version"`
}

// New returns a fresh session at version 0 positioned on first.
func New(userID int64, draftID string, first steps.ID, now time.Time) *Session {
	return &Session{
		UserID:         userID,
		DraftID:        draftID,
		Cursor:         first,
		Fields:         make(map[steps.ID]Field),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Fields = make(map[steps.ID]Field, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	c.History = append([]steps.ID(nil), s.History...)
	return &c
}

// Terminal reports whether the session is COMPLETE or CANCELLED.
func (s *Session) Terminal() bool { return s.Cursor.Terminal() }

// Expired reports whether the session has been idle for longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivityAt) > ttl
}

// Active reports whether the session can still receive input.
func (s *Session) Active(now time.Time, ttl time.Duration) bool {
	return !s.Terminal() && !s.Expired(now, ttl)
}

// Field implements steps.Snapshot.
func (s *Session) Field(id steps.ID) (steps.FieldView, bool) {
	f, ok := s.Fields[id]
	if !ok {
		return steps.FieldView{}, false
	}
	return steps.FieldView{
		Value:         f.Value,
		Prefilled:     f.Origin == OriginPrefilled,
		AutoGenerated: f.Origin == OriginAutoGenerated,
		Stale:         f.Stale,
	}, true
}

// Visited implements steps.Snapshot.
func (s *Session) Visited(id steps.ID) bool {
	return s.HistoryIndex(id) >= 0
}

// HistoryIndex returns the last position of id in the history stack or -1.
func (s *Session) HistoryIndex(id steps.ID) int {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i] == id {
			return i
		}
	}
	return -1
}

// Value returns the current, non-stale value of a field.
func (s *Session) Value(id steps.ID) (string, bool) {
	f, ok := s.Fields[id]
	if !ok || f.Stale {
		return "", false
	}
	return f.Value, true
}

// AutoGenerated returns the sorted keys of current fields filled with a
// generated default rather than user or template input.
func (s *Session) AutoGenerated() []string {
	var out []string
	for id, f := range s.Fields {
		if !f.Stale && f.Origin == OriginAutoGenerated {
			out = append(out, string(id))
		}
	}
	slices.Sort(out)
	return out
}

// Values returns all non-stale values keyed by field name.
func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.Fields))
	for id, f := range s.Fields {
		if f.Stale {
			continue
		}
		out[string(id)] = f.Value
	}
	return out
}
