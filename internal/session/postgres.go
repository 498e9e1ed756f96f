package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bryanwax12/newbotcursor/internal/steps"
)

// postgresStore keeps one row per user in order_sessions. The user id is the
// primary key, so the at-most-one-active-session rule is enforced by the
// table itself and replacement of a finished session happens in one upsert.
type postgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore returns a Store backed by the order_sessions table.
func NewPostgresStore(db *sqlx.DB, opts ...StoreOption) Store {
	cfg := buildConfig(append([]StoreOption{WithDB(db)}, opts...))
	return newPostgresStore(cfg)
}

func newPostgresStore(cfg *storeConfig) *postgresStore {
	return &postgresStore{db: cfg.db, ttl: cfg.ttl, now: cfg.now}
}

type sessionRow struct {
	UserID         int64     `db:"user_id"`
	DraftID        string    `db:"draft_id"`
	Cursor         string    `db:"step_cursor"`
	Fields         []byte    `db:"fields"`
	History        []byte    `db:"history"`
	TemplateID     string    `db:"template_id"`
	OrderID        string    `db:"order_id"`
	Version        int64     `db:"version"`
	CreatedAt      time.Time `db:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
}

const selectSession = `SELECT user_id, draft_id, step_cursor, fields, history, template_id, order_id,
	version, created_at, last_activity_at FROM order_sessions`

const terminalCursors = `('` + string(steps.Complete) + `', '` + string(steps.Cancelled) + `')`

func toRow(s *Session) (map[string]any, error) {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	history := s.History
	if history == nil {
		history = []steps.ID{}
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	// JSONB parameters are passed as text; lib/pq would send []byte as bytea.
	return map[string]any{
		"user_id":          s.UserID,
		"draft_id":         s.DraftID,
		"step_cursor":      string(s.Cursor),
		"fields":           string(fields),
		"history":          string(hist),
		"template_id":      s.TemplateID,
		"order_id":         s.OrderID,
		"version":          s.Version,
		"created_at":       s.CreatedAt.UTC(),
		"last_activity_at": s.LastActivityAt.UTC(),
	}, nil
}

func (r sessionRow) session() (*Session, error) {
	s := &Session{
		UserID:         r.UserID,
		DraftID:        r.DraftID,
		Cursor:         steps.ID(r.Cursor),
		Fields:         make(map[steps.ID]Field),
		TemplateID:     r.TemplateID,
		OrderID:        r.OrderID,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		LastActivityAt: r.LastActivityAt,
	}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &s.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	if len(r.History) > 0 {
		if err := json.Unmarshal(r.History, &s.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	return s, nil
}

// Load implements Store.
func (p *postgresStore) Load(ctx context.Context, userID int64) (*Session, error) {
	var row sessionRow
	query := selectSession + ` WHERE user_id = $1 AND step_cursor NOT IN ` + terminalCursors +
		` AND last_activity_at >= $2`
	err := p.db.GetContext(ctx, &row, query, userID, p.cutoff())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return row.session()
}

func (p *postgresStore) cutoff() time.Time {
	if p.ttl <= 0 {
		return time.Time{}
	}
	return p.now().Add(-p.ttl).UTC()
}

// CreateOrGet implements Store.
func (p *postgresStore) CreateOrGet(ctx context.Context, fresh *Session) (*Session, error) {
	if err := checkFresh(fresh); err != nil {
		return nil, err
	}
	args, err := toRow(fresh)
	if err != nil {
		return nil, err
	}
	args["cutoff"] = p.cutoff()

	// The conflict branch only replaces a row that is finished or idle past
	// the TTL; an active row is left untouched and read back below.
	const upsert = `INSERT INTO order_sessions
		(user_id, draft_id, step_cursor, fields, history, template_id, order_id, version, created_at, last_activity_at)
	VALUES
		(:user_id, :draft_id, :step_cursor, :fields, :history, :template_id, :order_id, :version, :created_at, :last_activity_at)
	ON CONFLICT (user_id) DO UPDATE SET
		draft_id = EXCLUDED.draft_id,
		step_cursor = EXCLUDED.step_cursor,
		fields = EXCLUDED.fields,
		history = EXCLUDED.history,
		template_id = EXCLUDED.template_id,
		order_id = EXCLUDED.order_id,
		version = EXCLUDED.version,
		created_at = EXCLUDED.created_at,
		last_activity_at = EXCLUDED.last_activity_at
	WHERE order_sessions.step_cursor IN ` + terminalCursors + `
		OR order_sessions.last_activity_at < :cutoff`

	if _, err := p.db.NamedExecContext(ctx, upsert, args); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	var row sessionRow
	if err := p.db.GetContext(ctx, &row, selectSession+` WHERE user_id = $1`, fresh.UserID); err != nil {
		return nil, fmt.Errorf("read created session: %w", err)
	}
	return row.session()
}

// CompareAndSwap implements Store.
func (p *postgresStore) CompareAndSwap(ctx context.Context, next *Session, expected int64) (bool, error) {
	if err := checkWrite(next, expected); err != nil {
		return false, err
	}
	args, err := toRow(next)
	if err != nil {
		return false, err
	}
	args["expected"] = expected

	const update = `UPDATE order_sessions SET
		step_cursor = :step_cursor,
		fields = :fields,
		history = :history,
		template_id = :template_id,
		order_id = :order_id,
		version = :version,
		last_activity_at = :last_activity_at
	WHERE user_id = :user_id AND draft_id = :draft_id AND version = :expected`

	res, err := p.db.NamedExecContext(ctx, update, args)
	if err != nil {
		return false, fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update session rows: %w", err)
	}
	return n == 1, nil
}

// PurgeExpired implements Store.
func (p *postgresStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-ttl).UTC()
	res, err := p.db.ExecContext(ctx, `DELETE FROM order_sessions WHERE last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows: %w", err)
	}
	return int(n), nil
}

// Close implements Store. The database handle is owned by the caller.
func (p *postgresStore) Close() error { return nil }
