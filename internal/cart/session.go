package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SliceSizzle/internal/catalog"
)

// Session pairs a Store with a Storage: each mutation is applied to the
// store and the resulting cart is saved before the call returns.
type Session struct {
	mu      sync.Mutex
	store   *Store
	storage Storage
	log     *zap.Logger
}

// OpenSession restores the saved cart. An unreadable snapshot is logged and
// replaced by an empty cart rather than failing the session.
func OpenSession(ctx context.Context, storage Storage, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	initial := Cart{}
	snap, err := storage.Load(ctx)
	if err != nil {
		log.Warn("cart restore failed, starting empty", zap.Error(err))
	} else if initial, err = snap.Cart(); err != nil {
		log.Warn("cart snapshot rejected, starting empty", zap.Error(err))
		initial = Cart{}
	}

	return &Session{store: NewStore(initial), storage: storage, log: log}, nil
}

func (s *Session) Snapshot() Cart { return s.store.Snapshot() }

func (s *Session) mutate(ctx context.Context, fn func(*Store) Cart) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := fn(s.store)
	if err := s.storage.Save(ctx, SnapshotOf(c)); err != nil {
		s.log.Error("cart save failed", zap.Error(err))
		return c, err
	}
	return c, nil
}

func (s *Session) AddItem(ctx context.Context, p catalog.Product) (Cart, error) {
	return s.mutate(ctx, func(st *Store) Cart { return st.AddItem(p) })
}

func (s *Session) RemoveItem(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, func(st *Store) Cart { return st.RemoveItem(id) })
}

func (s *Session) UpdateQuantity(ctx context.Context, id string, q int) (Cart, error) {
	return s.mutate(ctx, func(st *Store) Cart { return st.UpdateQuantity(id, q) })
}

func (s *Session) IncrementQuantity(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, func(st *Store) Cart { return st.IncrementQuantity(id) })
}

func (s *Session) DecrementQuantity(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, func(st *Store) Cart { return st.DecrementQuantity(id) })
}

func (s *Session) ClearCart(ctx context.Context) (Cart, error) {
	return s.mutate(ctx, (*Store).ClearCart)
}

func (s *Session) ToggleCart(ctx context.Context) (Cart, error) {
	return s.mutate(ctx, (*Store).ToggleCart)
}

func (s *Session) OpenCart(ctx context.Context) (Cart, error) {
	return s.mutate(ctx, (*Store).OpenCart)
}

func (s *Session) CloseCart(ctx context.Context) (Cart, error) {
	return s.mutate(ctx, (*Store).CloseCart)
}

func (s *Session) Subtotal() decimal.Decimal { return s.store.Subtotal() }
func (s *Session) Tax() decimal.Decimal      { return s.store.Tax() }
func (s *Session) Total() decimal.Decimal    { return s.store.Total() }
func (s *Session) ItemCount() int            { return s.store.ItemCount() }
