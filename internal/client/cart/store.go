// Package cart holds the customer's in-progress cart.
package cart

import (
	"sync"

	"tabify/internal/domain"
)

// Store keeps at most one line per item ID, each with quantity >= 1, in insertion order.
type Store struct {
	mu    sync.Mutex
	lines []domain.CartItem
}

func New() *Store {
	return &Store{}
}

// Add merges item into the cart. Non-positive quantities are ignored.
func (s *Store) Add(item domain.CartItem) {
	if item.Quantity <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(item.ID); i >= 0 {
		s.lines[i].Quantity += item.Quantity
		return
	}
	s.lines = append(s.lines, item)
}

func (s *Store) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeAt(s.indexOf(id))
}

// UpdateQuantity sets the quantity of an existing line, clamped at zero. A zero quantity removes the line.
func (s *Store) UpdateQuantity(id, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.removeAt(i)
		return
	}
	s.lines[i].Quantity = quantity
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}

func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, l := range s.lines {
		total += l.LineTotal()
	}
	return total
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Items returns a copy of the lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartItem, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *Store) indexOf(id int) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}
