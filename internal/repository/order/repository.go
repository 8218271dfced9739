package order

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tabify/internal/domain"
)

// TransitionFunc mutates the locked order. Returning an error aborts the write.
type TransitionFunc func(o *domain.Order) error

type Repository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	// Transition runs fn against the current record and persists the result atomically.
	Transition(ctx context.Context, id string, fn TransitionFunc) (*domain.Order, error)
}

// DBPool is the subset of *pgxpool.Pool the Postgres repository needs.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}
