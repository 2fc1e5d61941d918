package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SliceSizzle/internal/cart"
	"SliceSizzle/internal/money"
	"SliceSizzle/internal/orders"
)

// ClearDelay is how long the cart stays visible after a successful order.
const ClearDelay = time.Second

const msgEmptyCart = "Your cart is empty"

var (
	ErrSubmitInFlight = errors.New("order submission already in flight")
	ErrEmptyCart      = errors.New("cart is empty")
)

// Flow owns one checkout. It reads the cart through the session, submits the
// order and empties the cart ClearDelay after a success.
type Flow struct {
	ClearDelay time.Duration
	// Keys, when set, persists the pending idempotency key between runs.
	Keys KeyStore

	mu       sync.Mutex
	state    State
	cart     *cart.Session
	orders   Submitter
	log      *zap.Logger
	key      string
	keyFor   string
	loaded   bool
	inflight bool
	gen      uint64
	pending  chan struct{}
	newKey   func() string
}

func NewFlow(session *cart.Session, sub Submitter, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{
		ClearDelay: ClearDelay,
		state:      Initial(),
		cart:       session,
		orders:     sub,
		log:        log,
		newKey:     uuid.NewString,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) apply(e Event) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, err := Transition(f.state, e)
	f.state = next
	return next, err
}

func (f *Flow) Edit(form Form) (State, error) { return f.apply(Edit{Form: form}) }
func (f *Flow) Next() (State, error)          { return f.apply(NextStep{}) }
func (f *Flow) Prev() (State, error)          { return f.apply(PrevStep{}) }

// Close drops all checkout state. A request already sent keeps running: its
// result no longer reaches the state, but a success still clears the cart.
func (f *Flow) Close() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.state, _ = Transition(f.state, Reset{})
	return f.state
}

// Submit places the order built from the form and the current cart. It blocks
// until the orders API answers; the outcome is in the returned State. Only one
// request is in flight per Flow, even across Close.
func (f *Flow) Submit(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.inflight {
		s := f.state
		f.mu.Unlock()
		return s, ErrSubmitInFlight
	}

	next, err := Transition(f.state, Submit{})
	if err != nil {
		f.state = next
		f.mu.Unlock()
		return next, err
	}

	c := f.cart.Snapshot()
	if c.IsEmpty() {
		f.state.Err = msgEmptyCart
		s := f.state
		f.mu.Unlock()
		return s, ErrEmptyCart
	}

	order := BuildOrder(next.Form, c)
	key := f.idempotencyKeyLocked(ctx, order)
	f.state = next
	f.inflight = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	placed, err := f.orders.PlaceOrder(ctx, order, key)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight = false
	current := f.gen == gen

	if err != nil {
		reason := failureMessage(err)
		f.log.Warn("order submission failed", zap.String("reason", reason), zap.Error(err))
		if current {
			f.state, _ = Transition(f.state, SubmitFailed{Reason: reason})
		}
		return f.state, err
	}

	f.log.Info("order placed",
		zap.String("order_id", placed.OrderID),
		zap.Bool("telegram_notified", placed.TelegramNotified),
	)
	if f.key == key {
		f.key, f.keyFor = "", ""
		f.saveKeyLocked(ctx)
	}
	f.scheduleClearLocked()

	if current {
		f.state, _ = Transition(f.state, SubmitSucceeded{OrderID: placed.OrderID})
	}
	return f.state, nil
}

// idempotencyKeyLocked keeps the same key while retrying identical content,
// including a retry from a later run when Keys is set.
func (f *Flow) idempotencyKeyLocked(ctx context.Context, o orders.Order) string {
	fp, err := orders.Fingerprint(o)
	if err != nil {
		return f.newKey()
	}

	if !f.loaded && f.Keys != nil {
		f.loaded = true
		p, err := f.Keys.Load(ctx)
		if err != nil {
			f.log.Warn("pending order key not restored", zap.Error(err))
		} else if f.key == "" {
			f.key, f.keyFor = p.Key, p.Fingerprint
		}
	}

	if f.key == "" || f.keyFor != fp {
		f.key, f.keyFor = f.newKey(), fp
		f.saveKeyLocked(ctx)
	}
	return f.key
}

func (f *Flow) saveKeyLocked(ctx context.Context) {
	if f.Keys == nil {
		return
	}
	p := PendingKey{Key: f.key, Fingerprint: f.keyFor}
	if err := f.Keys.Save(context.WithoutCancel(ctx), p); err != nil {
		f.log.Warn("pending order key not saved", zap.Error(err))
	}
}

func (f *Flow) scheduleClearLocked() {
	done := make(chan struct{})
	f.pending = done

	time.AfterFunc(f.ClearDelay, func() {
		defer close(done)
		if _, err := f.cart.ClearCart(context.Background()); err != nil {
			f.log.Error("cart clear after order failed", zap.Error(err))
		}
	})
}

// Settle waits for a scheduled cart clear to finish.
func (f *Flow) Settle(ctx context.Context) error {
	f.mu.Lock()
	done := f.pending
	f.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return msgUnreachable
}

// BuildOrder snapshots the form and cart into the order body. Subtotal and
// tax are rounded to paisa and the total is their sum.
func BuildOrder(form Form, c cart.Cart) orders.Order {
	customer := form.Customer()

	items := make([]orders.Item, 0, c.Len())
	for _, it := range c.Items() {
		items = append(items, orders.Item{
			ID:       it.ID,
			Name:     it.Name,
			Price:    money.NewAmount(it.Price),
			Quantity: it.Quantity,
		})
	}

	subtotal := money.Cents(c.Subtotal())
	tax := money.Cents(c.Tax())

	return orders.Order{
		Customer: &customer,
		Items:    items,
		Subtotal: money.NewAmount(subtotal),
		Tax:      money.NewAmount(tax),
		Total:    money.NewAmount(subtotal.Add(tax)),
	}
}
