// Package orders accepts storefront orders, relays them to the kitchen and
// keeps a short-lived ledger for idempotent retries and receipt lookups.
package orders

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"SliceSizzle/internal/money"
)

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Notes     string `json:"notes"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Item struct {
	ID       string       `json:"id" validate:"required"`
	Name     string       `json:"name"`
	Price    money.Amount `json:"price" validate:"gte=0"`
	Quantity int          `json:"quantity" validate:"gte=1"`
}

// Order is the body of POST /api/orders. Totals are what the storefront
// computed; they are relayed as sent.
type Order struct {
	Customer *Customer   `json:"customer" validate:"required"`
	Items    []Item       `json:"items" validate:"required,gt=0,dive"`
	Subtotal money.Amount `json:"subtotal"`
	Tax      money.Amount `json:"tax"`
	Total    money.Amount `json:"total"`
}

var ErrInvalidOrder = errors.New("invalid order data")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		a, ok := f.Interface().(money.Amount)
		if !ok {
			return nil
		}
		return a.InexactFloat64()
	}, money.Amount{})
	return v
}

func (o *Order) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Join(ErrInvalidOrder, err)
	}
	return nil
}

// Placed is the success body of POST /api/orders.
type Placed struct {
	Success          bool   `json:"success"`
	OrderID          string `json:"orderId"`
	TelegramNotified bool   `json:"telegramNotified"`
	ReceiptToken     string `json:"receiptToken,omitempty"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status             string `json:"status"`
	TelegramConfigured bool   `json:"telegram_configured"`
}

// Receipt is what GET /api/orders/{id} returns to the holder of the receipt.
type Receipt struct {
	OrderID          string    `json:"orderId"`
	Order            Order     `json:"order"`
	TelegramNotified bool      `json:"telegramNotified"`
	PlacedAt         time.Time `json:"placedAt"`
}
