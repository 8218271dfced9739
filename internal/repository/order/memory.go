package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"tabify/internal/domain"
)

// Memory keeps orders in process. Used when no database is configured and in tests.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]domain.Order), now: time.Now}
}

func (m *Memory) Create(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := o.Clone()
	return &out, nil
}

func (m *Memory) List(_ context.Context) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Transition(_ context.Context, id string, fn TransitionFunc) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now().UTC()
	m.orders[id] = next
	out := next.Clone()
	return &out, nil
}
