// Package orders creates orders from completed conversations. Finalize is
// idempotent per draft id: repeating it returns the original order id.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrIncomplete is wrapped by the rejection for a field map missing a required field.
	ErrIncomplete = errors.New("orders: incomplete order")
	// ErrInsufficientBalance is wrapped by the rejection for an unaffordable order.
	ErrInsufficientBalance = errors.New("orders: insufficient balance")
	// ErrNotFound is returned by Get for an unknown draft id.
	ErrNotFound = errors.New("orders: not found")
	// ErrDraftOwner is returned when a draft id is reused by another user.
	ErrDraftOwner = errors.New("orders: draft belongs to another user")
)

// Rejection reasons surfaced to the user.
const (
	ReasonIncompleteOrder     = "incomplete_order"
	ReasonInsufficientBalance = "insufficient_balance"
)

// RejectionError is a business refusal to create an order. The user can fix
// the cause and confirm again.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order rejected: %s: %v", e.Reason, e.Err)
	}
	return "order rejected: " + e.Reason
}

func (e *RejectionError) Unwrap() error { return e.Err }

// Reject builds a RejectionError.
func Reject(reason string, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}

// StatusCreated is the status of a freshly finalized order.
const StatusCreated = "created"

// Order is a finalized order.
type Order struct {
	OrderID    string            `db:"order_id"`
	DraftID    string            `db:"draft_id"`
	UserID     int64             `db:"user_id"`
	Fields     map[string]string `db:"-"`
	// Generated lists the field keys that hold generated defaults.
	Generated  []string          `db:"-"`
	Status     string            `db:"status"`
	PriceCents int64             `db:"price_cents"`
	CreatedAt  time.Time         `db:"created_at"`
}

// Store finalizes and reads orders and the internal balances they are paid from.
type Store interface {
	// Finalize creates the order for draftID or returns the one already
	// created. generated names the fields filled with generated defaults.
	Finalize(ctx context.Context, draftID string, userID int64, fields map[string]string, generated ...string) (string, error)
	// Get returns the order created for draftID.
	Get(ctx context.Context, draftID string) (*Order, error)
	// Balance returns the user's balance in cents.
	Balance(ctx context.Context, userID int64) (int64, error)
	// Credit adds cents to the user's balance and returns the new balance.
	Credit(ctx context.Context, userID int64, cents int64) (int64, error)
}

// NewOrderID returns ORD-<UTC yyyymmddhhmmss>-<8 hex chars>.
func NewOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "ORD-" + now.UTC().Format("20060102150405") + "-" + suffix
}

// Option configures a Store.
type Option func(*options)

type options struct {
	priceCents int64
	required   []string
	now        func() time.Time
}

// WithPrice sets the flat price debited from the balance per order. Zero
// disables charging.
func WithPrice(cents int64) Option {
	return func(o *options) { o.priceCents = cents }
}

// WithRequired lists the field names every order must carry.
func WithRequired(keys []string) Option {
	return func(o *options) { o.required = append([]string(nil), keys...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o options) checkComplete(fields map[string]string) error {
	for _, k := range o.required {
		if strings.TrimSpace(fields[k]) == "" {
			return Reject(ReasonIncompleteOrder, fmt.Errorf("%w: missing %s", ErrIncomplete, k))
		}
	}
	return nil
}

// FormatCents renders an amount such as 1250 as "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MaxAmountCents bounds a single parsed amount.
const MaxAmountCents int64 = 1_000_000_00

// ParseCents parses a plain decimal amount with at most two fraction digits,
// such as "12.5" or "12.50", into cents. Signs, exponents and amounts above
// MaxAmountCents are rejected.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !digits(whole) || (hasFrac && (!digits(frac) || len(frac) > 2)) || len(whole) > 12 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil || cents > MaxAmountCents {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return cents, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
