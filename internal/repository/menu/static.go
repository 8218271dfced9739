package menu

import (
	"context"
	"sort"
	"sync"

	"tabify/internal/domain"
)

// Static serves the catalog from memory.
type Static struct {
	mu    sync.RWMutex
	items map[int]domain.MenuItem
}

func NewStatic(items []domain.MenuItem) *Static {
	s := &Static{items: make(map[int]domain.MenuItem, len(items))}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *Static) List(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MenuItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) Upsert(_ context.Context, item domain.MenuItem) error {
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return nil
}
