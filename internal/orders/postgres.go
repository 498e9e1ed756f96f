package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/bryanwax12/newbotcursor/core/logger"
)

type postgresStore struct {
	db   *sqlx.DB
	opts options
}

// NewPostgresStore returns a Store backed by the orders and balances tables.
func NewPostgresStore(db *sqlx.DB, opts ...Option) Store {
	return &postgresStore{db: db, opts: buildOptions(opts)}
}

// Finalize inserts the order and debits the balance in one transaction. A
// concurrent Finalize for the same draft blocks on the unique draft_id index
// and then reads back the winner's order id.
func (p *postgresStore) Finalize(ctx context.Context, draftID string, userID int64, fields map[string]string, generated ...string) (string, error) {
	if id, err := p.existing(ctx, draftID, userID); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err := p.opts.checkComplete(fields); err != nil {
		return "", err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode order fields: %w", err)
	}
	if generated == nil {
		generated = []string{}
	}
	genPayload, err := json.Marshal(generated)
	if err != nil {
		return "", fmt.Errorf("encode generated fields: %w", err)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := p.opts.now().UTC()
	price := p.opts.priceCents
	var orderID string
	err = tx.GetContext(ctx, &orderID, `
		INSERT INTO orders (order_id, draft_id, user_id, fields, generated, status, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric / 100, $8)
		ON CONFLICT (draft_id) DO NOTHING
		RETURNING order_id`,
		NewOrderID(now), draftID, userID, string(payload), string(genPayload), StatusCreated, price, now)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return p.existing(ctx, draftID, userID)
	}
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	if price > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE balances SET amount = amount - $1::numeric / 100, updated_at = now()
			WHERE user_id = $2 AND amount >= $1::numeric / 100`,
			price, userID)
		if err != nil {
			return "", fmt.Errorf("debit balance: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return "", fmt.Errorf("debit balance rows: %w", err)
		} else if n == 0 {
			return "", Reject(ReasonInsufficientBalance, ErrInsufficientBalance)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit finalize: %w", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "orders.finalize",
		slog.String("status", "ok"),
		slog.String("order_id", orderID),
		slog.String("draft_id", draftID),
		slog.Int64("user_id", userID),
		slog.Int64("price_cents", price),
	)
	return orderID, nil
}

func (p *postgresStore) existing(ctx context.Context, draftID string, userID int64) (string, error) {
	var row struct {
		OrderID string `db:"order_id"`
		UserID  int64  `db:"user_id"`
	}
	err := p.db.GetContext(ctx, &row, `SELECT order_id, user_id FROM orders WHERE draft_id = $1`, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read order: %w", err)
	}
	if row.UserID != userID {
		return "", ErrDraftOwner
	}
	return row.OrderID, nil
}

func (p *postgresStore) Get(ctx context.Context, draftID string) (*Order, error) {
	var row struct {
		Order
		Payload   []byte `db:"fields"`
		Generated []byte `db:"generated"`
	}
	err := p.db.GetContext(ctx, &row, `
		SELECT order_id, draft_id, user_id, fields, generated, status, (price * 100)::bigint AS price_cents, created_at
		FROM orders WHERE draft_id = $1`, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	o := row.Order
	if err := json.Unmarshal(row.Payload, &o.Fields); err != nil {
		return nil, fmt.Errorf("decode order fields: %w", err)
	}
	if err := json.Unmarshal(row.Generated, &o.Generated); err != nil {
		return nil, fmt.Errorf("decode generated fields: %w", err)
	}
	return &o, nil
}

func (p *postgresStore) Balance(ctx context.Context, userID int64) (int64, error) {
	var cents int64
	err := p.db.GetContext(ctx, &cents, `SELECT (amount * 100)::bigint FROM balances WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return cents, nil
}

func (p *postgresStore) Credit(ctx context.Context, userID int64, cents int64) (int64, error) {
	var total int64
	err := p.db.GetContext(ctx, &total, `
		INSERT INTO balances (user_id, amount, updated_at) VALUES ($1, $2::numeric / 100, now())
		ON CONFLICT (user_id) DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
		RETURNING (amount * 100)::bigint`, userID, cents)
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "orders.credit",
		slog.Int64("user_id", userID),
		slog.Int64("amount_cents", cents),
		slog.Int64("balance_cents", total),
	)
	return total, nil
}
