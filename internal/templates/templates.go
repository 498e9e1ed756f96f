// Package templates stores reusable address templates and seeds new order
// conversations from them.
package templates

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("templates: not found")
	ErrNotOwned      = errors.New("templates: not owned by user")
	ErrLimitReached  = errors.New("templates: limit reached")
	ErrInvalidName   = errors.New("templates: invalid name")
	ErrNameTaken     = errors.New("templates: name already used")
	ErrOrderNotFound = errors.New("templates: order not found")
)

// Template is a named snapshot of order fields keyed by step id.
type Template struct {
	ID        string            `db:"template_id"`
	OwnerID   int64             `db:"owner_id"`
	Name      string            `db:"name"`
	Fields    map[string]string `db:"-"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

// Repository persists templates. It does not enforce ownership or limits;
// Service does.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, id string) (*Template, error)
	// ListByOwner returns the owner's templates, newest first.
	ListByOwner(ctx context.Context, ownerID int64) ([]Template, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	Rename(ctx context.Context, id, name string, now time.Time) error
	Delete(ctx context.Context, id string) error
}
