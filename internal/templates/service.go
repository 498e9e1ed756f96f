package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/steps"
)

const (
	// DefaultMaxPerUser bounds how many templates one user may keep.
	DefaultMaxPerUser = 10
	// MaxNameLength is the longest accepted template name, in characters.
	MaxNameLength = 50
)

// OrderReader reads finalized orders.
type OrderReader interface {
	Get(ctx context.Context, draftID string) (*orders.Order, error)
}

// Service enforces ownership, naming and the per-user limit.
type Service struct {
	repo   Repository
	orders OrderReader
	keys   []string
	max    int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxPerUser overrides DefaultMaxPerUser.
func WithMaxPerUser(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service that snapshots the fields of reg.
func NewService(repo Repository, orderReader OrderReader, reg *steps.Registry, opts ...Option) *Service {
	s := &Service{repo: repo, orders: orderReader, keys: reg.Keys(), max: DefaultMaxPerUser, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeName trims and validates a template name.
func NormalizeName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// LoadTemplate returns the field map of a template owned by ownerID.
func (s *Service) LoadTemplate(ctx context.Context, templateID string, ownerID int64) (map[string]string, error) {
	t, err := s.owned(ctx, templateID, ownerID)
	if err != nil {
		return nil, err
	}
	return t.Fields, nil
}

func (s *Service) owned(ctx context.Context, templateID string, ownerID int64) (*Template, error) {
	t, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, ErrNotOwned
	}
	return t, nil
}

// List returns the user's templates, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Template, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Save stores fields under name for ownerID.
func (s *Service) Save(ctx context.Context, ownerID int64, name string, fields map[string]string) (*Template, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if n >= s.max {
		return nil, fmt.Errorf("%w: %d of %d", ErrLimitReached, n, s.max)
	}
	snapshot := make(map[string]string, len(s.keys))
	for _, k := range s.keys {
		if v, ok := fields[k]; ok {
			snapshot[k] = v
		}
	}
	now := s.now()
	t := &Template{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Fields:    snapshot,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.Info(ctx, logger.ComponentTemplates, "templates.save",
		slog.String("status", "ok"),
		slog.String("template_id", t.ID),
		slog.Int64("user_id", ownerID),
		slog.Int("fields", len(snapshot)),
	)
	return t, nil
}

// SaveFromOrder snapshots the fields of the order finalized for draftID. An
// empty name becomes "<sender city> → <recipient city>", suffixed with a
// counter when that name is already used.
func (s *Service) SaveFromOrder(ctx context.Context, ownerID int64, draftID, name string) (*Template, error) {
	o, err := s.orders.Get(ctx, draftID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != ownerID {
		return nil, ErrNotOwned
	}
	// Generated defaults are stored empty so applying the template draws
	// fresh ones instead of replaying a placeholder as user data.
	fields := maps.Clone(o.Fields)
	for _, k := range o.Generated {
		if _, ok := fields[k]; ok {
			fields[k] = ""
		}
	}
	if strings.TrimSpace(name) != "" {
		return s.Save(ctx, ownerID, name, fields)
	}

	base := AutoName(fields)
	candidate := base
	for i := 2; i <= s.max+1; i++ {
		t, err := s.Save(ctx, ownerID, candidate, fields)
		if !errors.Is(err, ErrNameTaken) {
			return t, err
		}
		candidate = fmt.Sprintf("%s (%d)", base, i)
	}
	return nil, ErrNameTaken
}

// AutoName derives a template name from the route of an order.
func AutoName(fields map[string]string) string {
	from := fields[string(steps.SenderCity)]
	to := fields[string(steps.RecipientCity)]
	name := strings.TrimSpace(from + " → " + to)
	if from == "" && to == "" {
		name = "Template"
	}
	if utf8.RuneCountInString(name) > MaxNameLength-5 {
		name = string([]rune(name)[:MaxNameLength-5])
	}
	return name
}

// Rename changes the name of an owned template.
func (s *Service) Rename(ctx context.Context, ownerID int64, templateID, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, templateID, ownerID); err != nil {
		return err
	}
	return s.repo.Rename(ctx, templateID, name, s.now())
}

// Delete removes an owned template.
func (s *Service) Delete(ctx context.Context, ownerID int64, templateID string) error {
	if _, err := s.owned(ctx, templateID, ownerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, templateID); err != nil {
		return err
	}
	logger.Info(ctx, logger.ComponentTemplates, "templates.delete",
		slog.String("template_id", templateID),
		slog.Int64("user_id", ownerID),
	)
	return nil
}
