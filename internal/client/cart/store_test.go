package cart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabify/internal/domain"
)

var (
	tea   = domain.CartItem{ID: 2, Name: "Tea", UnitPrice: 10, Quantity: 1}
	chips = domain.CartItem{ID: 4, Name: "Chips", UnitPrice: 15, Quantity: 1}
)

func TestAddMergesByID(t *testing.T) {
	s := New()
	s.Add(tea)
	s.Add(tea)
	s.Add(chips)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "Chips", items[1].Name)
	assert.Equal(t, int64(35), s.TotalPrice())
	assert.Equal(t, 3, s.TotalItems())
}

func TestAddIgnoresNonPositiveQuantity(t *testing.T) {
	s := New()
	s.Add(domain.CartItem{ID: 1, Name: "Cigarette", UnitPrice: 20, Quantity: 0})
	s.Add(domain.CartItem{ID: 1, Name: "Cigarette", UnitPrice: 20, Quantity: -3})
	assert.Equal(t, 0, s.Len())
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add(tea)
	s.Add(chips)

	s.Remove(tea.ID)
	s.Remove(99)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, chips.ID, items[0].ID)
}

func TestUpdateQuantity(t *testing.T) {
	s := New()
	s.Add(tea)

	s.UpdateQuantity(tea.ID, 5)
	assert.Equal(t, 5, s.TotalItems())
	assert.Equal(t, int64(50), s.TotalPrice())

	s.UpdateQuantity(99, 3)
	assert.Equal(t, 1, s.Len())

	s.UpdateQuantity(tea.ID, -2)
	assert.Equal(t, 0, s.Len(), "clamped to zero removes the line")
}

func TestClear(t *testing.T) {
	s := New()
	s.Add(tea)
	s.Add(chips)
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.TotalPrice())
	assert.Empty(t, s.Items())
}

func TestItemsIsACopy(t *testing.T) {
	s := New()
	s.Add(tea)
	items := s.Items()
	items[0].Quantity = 100
	assert.Equal(t, 1, s.TotalItems())
}

func TestTotalsMatchLines(t *testing.T) {
	s := New()
	for _, it := range []domain.CartItem{tea, chips, tea, {ID: 5, Name: "Chewing Gum", UnitPrice: 5, Quantity: 4}} {
		s.Add(it)
	}
	s.UpdateQuantity(chips.ID, 3)

	var price int64
	var count int
	seen := map[int]bool{}
	for _, l := range s.Items() {
		assert.False(t, seen[l.ID], "one line per id")
		seen[l.ID] = true
		assert.GreaterOrEqual(t, l.Quantity, 1)
		price += l.UnitPrice * int64(l.Quantity)
		count += l.Quantity
	}
	assert.Equal(t, price, s.TotalPrice())
	assert.Equal(t, count, s.TotalItems())
}

func TestConcurrentAdds(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(tea)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 50, s.TotalItems())
}
