package orders

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idTokenLen = 9
)

// NewOrderID returns ORD-<unix millis>-<9 upper-case base36 chars>.
func NewOrderID(now time.Time) (string, error) {
	return newOrderID(now, rand.Reader)
}

func newOrderID(now time.Time, rnd io.Reader) (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	tok := make([]byte, idTokenLen)
	for i := range tok {
		n, err := rand.Int(rnd, max)
		if err != nil {
			return "", fmt.Errorf("order id: %w", err)
		}
		tok[i] = idAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), tok), nil
}
