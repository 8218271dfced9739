package menu

import (
	"context"

	"tabify/internal/domain"
	menurepo "tabify/internal/repository/menu"
)

type Service struct {
	repo menurepo.Repository
}

func New(repo menurepo.Repository) *Service {
	return &Service{repo: repo}
}

// List returns the catalog; an empty table falls back to the default items.
func (s *Service) List(ctx context.Context) ([]domain.MenuItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return menurepo.DefaultItems(), nil
	}
	return items, nil
}
