package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
)

const uniqueViolation = "23505"

const selectOrder = `
SELECT id, customer_ref, customer_name, items, total, status, payment_status, created_at, updated_at
FROM orders
`

type postgresRepo struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

func NewPostgres(pool DBPool, log *zap.Logger) Repository {
	return &postgresRepo{pool: pool, log: logger.OrNop(log), now: time.Now}
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	const q = `
INSERT INTO orders (id, customer_ref, customer_name, items, total, status, payment_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
`
	_, err = r.pool.Exec(ctx, q, o.ID, o.CustomerRef, o.CustomerName, items, o.Total, string(o.Status), string(o.PaymentStatus), o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		r.log.Error("order repo: create", zap.String("order_id", o.ID), zap.Error(err))
		return err
	}
	r.log.Debug("order repo: created", zap.String("order_id", o.ID), zap.Int64("total", o.Total))
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+"WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.log.Error("order repo: get", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+"ORDER BY created_at DESC")
	if err != nil {
		r.log.Error("order repo: list", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) Transition(ctx context.Context, id string, fn TransitionFunc) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, selectOrder+"WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = r.now().UTC()

	const q = `
UPDATE orders
SET status = $1, payment_status = $2, updated_at = $3
WHERE id = $4
`
	if _, err := tx.Exec(ctx, q, string(o.Status), string(o.PaymentStatus), o.UpdatedAt, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.log.Debug("order repo: transitioned", zap.String("order_id", id),
		zap.String("status", string(o.Status)), zap.String("payment_status", string(o.PaymentStatus)))
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		items   []byte
		status  string
		payment string
	)
	if err := row.Scan(&o.ID, &o.CustomerRef, &o.CustomerName, &items, &o.Total, &status, &payment, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	return &o, nil
}
