package menu

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
)

type postgresRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *zap.Logger) Repository {
	return &postgresRepo{pool: pool, log: logger.OrNop(log)}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.MenuItem, error) {
	const q = `
SELECT id, name, price, category, image
FROM menu_items
ORDER BY id
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.log.Error("menu repo: list", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.MenuItem
	for rows.Next() {
		var it domain.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Category, &it.Image); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.log.Debug("menu repo: list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, item domain.MenuItem) error {
	const q = `
INSERT INTO menu_items (id, name, price, category, image)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    price = EXCLUDED.price,
    category = EXCLUDED.category,
    image = EXCLUDED.image
`
	if _, err := r.pool.Exec(ctx, q, item.ID, item.Name, item.Price, item.Category, item.Image); err != nil {
		r.log.Error("menu repo: upsert", zap.Int("menu_id", item.ID), zap.Error(err))
		return err
	}
	return nil
}
