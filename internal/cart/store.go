package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"SliceSizzle/internal/catalog"
)

// Store owns the current Cart. It knows nothing about persistence; every
// mutation returns the snapshot it produced.
type Store struct {
	mu  sync.RWMutex
	cur Cart
}

func NewStore(initial Cart) *Store {
	return &Store{cur: initial}
}

func (s *Store) Snapshot() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) apply(fn func(Cart) Cart) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = fn(s.cur)
	return s.cur
}

func (s *Store) AddItem(p catalog.Product) Cart {
	return s.apply(func(c Cart) Cart { return c.Add(p) })
}

func (s *Store) RemoveItem(id string) Cart {
	return s.apply(func(c Cart) Cart { return c.Remove(id) })
}

func (s *Store) UpdateQuantity(id string, q int) Cart {
	return s.apply(func(c Cart) Cart { return c.UpdateQuantity(id, q) })
}

func (s *Store) IncrementQuantity(id string) Cart {
	return s.apply(func(c Cart) Cart { return c.Increment(id) })
}

func (s *Store) DecrementQuantity(id string) Cart {
	return s.apply(func(c Cart) Cart { return c.Decrement(id) })
}

func (s *Store) ClearCart() Cart  { return s.apply(Cart.Clear) }
func (s *Store) ToggleCart() Cart { return s.apply(Cart.Toggle) }
func (s *Store) OpenCart() Cart   { return s.apply(Cart.Open) }
func (s *Store) CloseCart() Cart  { return s.apply(Cart.Close) }

func (s *Store) Subtotal() decimal.Decimal { return s.Snapshot().Subtotal() }
func (s *Store) Tax() decimal.Decimal      { return s.Snapshot().Tax() }
func (s *Store) Total() decimal.Decimal    { return s.Snapshot().Total() }
func (s *Store) ItemCount() int            { return s.Snapshot().ItemCount() }
