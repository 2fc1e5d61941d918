package orders

import (
	"context"
	"time"
)

// Notification is one accepted order on its way to a sink.
type Notification struct {
	OrderID  string
	Order    Order
	Message  string
	PlacedAt time.Time
}

// Notifier relays an accepted order somewhere. Failures never fail the order.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier, mostly for tests.
type NotifierFunc struct {
	Sink string
	Fn   func(ctx context.Context, n Notification) error
}

func (f NotifierFunc) Name() string { return f.Sink }

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f.Fn(ctx, n)
}
