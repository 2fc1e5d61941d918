package orders

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidReceipt = errors.New("invalid receipt token")

// ReceiptSigner issues and checks the bearer token handed back with every
// accepted order. The token only grants reading that one order.
type ReceiptSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewReceiptSigner(secret string, ttl time.Duration) *ReceiptSigner {
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &ReceiptSigner{
		secret: []byte(secret),
		issuer: "slice-sizzle-orders",
		ttl:    ttl,
		now:    time.Now,
	}
}

type ReceiptClaims struct {
	OrderID string `json:"order_id"`
	jwt.RegisteredClaims
}

func (s *ReceiptSigner) Issue(orderID string) (string, error) {
	now := s.now()

	claims := ReceiptClaims{
		OrderID: orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *ReceiptSigner) Parse(tokenStr string) (ReceiptClaims, error) {
	var c ReceiptClaims

	token, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || token == nil || !token.Valid || c.OrderID == "" {
		return ReceiptClaims{}, ErrInvalidReceipt
	}
	return c, nil
}
