package menu

import (
	"context"

	"tabify/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.MenuItem, error)
	Upsert(ctx context.Context, item domain.MenuItem) error
}

// DefaultItems is the shop's standing catalog, prices in rupees.
func DefaultItems() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: 1, Name: "Cigarette", Price: 20, Category: "tobacco"},
		{ID: 2, Name: "Tea", Price: 10, Category: "beverages"},
		{ID: 3, Name: "Cold Drink", Price: 25, Category: "beverages"},
		{ID: 4, Name: "Chips", Price: 15, Category: "snacks"},
		{ID: 5, Name: "Chewing Gum", Price: 5, Category: "snacks"},
		{ID: 6, Name: "Water Bottle", Price: 10, Category: "beverages"},
	}
}
