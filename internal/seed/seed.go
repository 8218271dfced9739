package seed

import (
	"context"
	"fmt"

	"tabify/internal/domain"
	menurepo "tabify/internal/repository/menu"
)

// Apply upserts the default catalog. It is idempotent.
func Apply(ctx context.Context, repo menurepo.Repository) (int, error) {
	return upsertAll(ctx, repo, menurepo.DefaultItems())
}

func upsertAll(ctx context.Context, repo menurepo.Repository, items []domain.MenuItem) (int, error) {
	for i, it := range items {
		if err := repo.Upsert(ctx, it); err != nil {
			return i, fmt.Errorf("upsert menu item %d (%s): %w", it.ID, it.Name, err)
		}
	}
	return len(items), nil
}
