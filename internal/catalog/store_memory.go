package catalog

import (
	"context"
	"sync"
)

type MemStore struct {
	mu         sync.RWMutex
	order      []string
	m          map[string]Product
	categories []Category
}

func NewMemStore(menu Menu) *MemStore {
	s := &MemStore{
		order:      make([]string, 0, len(menu.Products)),
		m:          make(map[string]Product, len(menu.Products)),
		categories: append([]Category(nil), menu.Categories...),
	}
	for _, p := range menu.Products {
		if _, ok := s.m[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.m[p.ID] = p
	}
	return s
}

// NewStore returns a memory store over the embedded menu.
func NewStore() (*MemStore, error) {
	menu, err := DefaultMenu()
	if err != nil {
		return nil, err
	}
	return NewMemStore(menu), nil
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.m[id])
	}
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}

func (s *MemStore) Categories(ctx context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Category(nil), s.categories...), nil
}
