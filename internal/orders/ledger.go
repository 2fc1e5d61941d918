package orders

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Record is one accepted order as the ledger keeps it.
type Record struct {
	OrderID          string
	IdempotencyKey   string
	Fingerprint      string
	Order            Order
	TelegramNotified bool
	PlacedAt         time.Time
}

var ErrDuplicateKey = errors.New("idempotency key already recorded")

// Ledger remembers accepted orders for a bounded time. Records past the
// retention window behave as if they were never written.
type Ledger interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, rec Record) error
	SetNotified(ctx context.Context, orderID string, notified bool) error
	ByID(ctx context.Context, orderID string) (Record, bool, error)
	ByKey(ctx context.Context, key string) (Record, bool, error)
}

// Fingerprint is the hex BLAKE2b-256 of the order's canonical JSON. Two
// orders with the same fingerprint carry the same customer, lines and totals.
func Fingerprint(o Order) (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
