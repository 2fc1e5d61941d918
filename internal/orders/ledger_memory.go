package orders

import (
	"context"
	"sync"
	"time"
)

const DefaultRetention = 24 * time.Hour

type MemLedger struct {
	mu    sync.RWMutex
	byID  map[string]Record
	byKey map[string]string
	ttl   time.Duration
	now   func() time.Time
}

func NewMemLedger(ttl time.Duration) *MemLedger {
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &MemLedger{
		byID:  map[string]Record{},
		byKey: map[string]string{},
		ttl:   ttl,
		now:   time.Now,
	}
}

func (l *MemLedger) Ping(context.Context) error { return nil }

func (l *MemLedger) Put(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked()
	if rec.IdempotencyKey != "" {
		if _, taken := l.byKey[rec.IdempotencyKey]; taken {
			return ErrDuplicateKey
		}
		l.byKey[rec.IdempotencyKey] = rec.OrderID
	}
	l.byID[rec.OrderID] = rec
	return nil
}

func (l *MemLedger) SetNotified(_ context.Context, orderID string, notified bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byID[orderID]
	if !ok {
		return nil
	}
	rec.TelegramNotified = notified
	l.byID[orderID] = rec
	return nil
}

func (l *MemLedger) ByID(_ context.Context, orderID string) (Record, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.byID[orderID]
	if !ok || l.expired(rec) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (l *MemLedger) ByKey(ctx context.Context, key string) (Record, bool, error) {
	l.mu.RLock()
	id, ok := l.byKey[key]
	l.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}
	return l.ByID(ctx, id)
}

func (l *MemLedger) expired(rec Record) bool {
	return l.now().Sub(rec.PlacedAt) > l.ttl
}

func (l *MemLedger) sweepLocked() {
	for id, rec := range l.byID {
		if !l.expired(rec) {
			continue
		}
		delete(l.byID, id)
		if rec.IdempotencyKey != "" {
			delete(l.byKey, rec.IdempotencyKey)
		}
	}
}
