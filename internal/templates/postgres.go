package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a Repository backed by order_templates.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

type templateRow struct {
	Template
	Payload []byte `db:"fields"`
}

func (r templateRow) template() (*Template, error) {
	t := r.Template
	if err := json.Unmarshal(r.Payload, &t.Fields); err != nil {
		return nil, fmt.Errorf("decode template fields: %w", err)
	}
	return &t, nil
}

const selectTemplate = `SELECT template_id, owner_id, name, fields, created_at, updated_at FROM order_templates`

func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (p *postgresRepository) Create(ctx context.Context, t *Template) error {
	payload, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encode template fields: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO order_templates (template_id, owner_id, name, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.OwnerID, t.Name, string(payload), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if uniqueViolation(err) {
		return ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (p *postgresRepository) Get(ctx context.Context, id string) (*Template, error) {
	var row templateRow
	err := p.db.GetContext(ctx, &row, selectTemplate+` WHERE template_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return row.template()
}

func (p *postgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Template, error) {
	var rows []templateRow
	err := p.db.SelectContext(ctx, &rows, selectTemplate+` WHERE owner_id = $1 ORDER BY created_at DESC, template_id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]Template, 0, len(rows))
	for _, r := range rows {
		t, err := r.template()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (p *postgresRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT count(*) FROM order_templates WHERE owner_id = $1`, ownerID); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}

func (p *postgresRepository) Rename(ctx context.Context, id, name string, now time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE order_templates SET name = $2, updated_at = $3 WHERE template_id = $1`, id, name, now.UTC())
	if uniqueViolation(err) {
		return ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("rename template: %w", err)
	}
	return affectedOne(res)
}

func (p *postgresRepository) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM order_templates WHERE template_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
