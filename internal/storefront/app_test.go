package storefront_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"SliceSizzle/internal/cart"
	"SliceSizzle/internal/catalog"
	"SliceSizzle/internal/checkout"
	"SliceSizzle/internal/orders"
	"SliceSizzle/internal/storefront"
	"SliceSizzle/pkg/kit"
)

type quietRelay struct{}

func (quietRelay) Name() string                                        { return "telegram" }
func (quietRelay) Configured() bool                                    { return false }
func (quietRelay) Notify(context.Context, orders.Notification) error { return orders.ErrTelegramNotConfigured }

type env struct {
	app     *storefront.App
	out     *bytes.Buffer
	storage *cart.FileStorage
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store, err := catalog.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	catalogTS := httptest.NewServer(catalog.NewHandler(&catalog.Server{Store: store}, catalog.HTTPDeps{Log: zap.NewNop()}))
	t.Cleanup(catalogTS.Close)

	ordersTS := httptest.NewServer(orders.NewHandler(&orders.Server{
		Ledger: orders.NewMemLedger(0),
		Relay:  quietRelay{},
	}, orders.HTTPDeps{Log: zap.NewNop()}))
	t.Cleanup(ordersTS.Close)

	storage := cart.NewFileStorage(t.TempDir())
	return &env{
		out:     &bytes.Buffer{},
		storage: storage,
		app:     newApp(t, storage, catalogTS.URL, ordersTS.URL),
	}
}

func newApp(t *testing.T, storage cart.Storage, catalogURL, ordersURL string) *storefront.App {
	t.Helper()

	session, err := cart.OpenSession(context.Background(), storage, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return &storefront.App{
		Catalog:    storefront.NewCatalogClient(catalogURL),
		Cart:       session,
		Orders:     checkout.NewOrderClient(ordersURL),
		Log:        zap.NewNop(),
		ClearDelay: 10 * time.Millisecond,
	}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e.out.Reset()
	e.app.Out = e.out
	err := e.app.Run(context.Background(), args)
	return e.out.String(), err
}

func TestMenu(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "menu", "-category", "drink", "-sort", "price-high")
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	if !strings.Contains(out, "drink-cola") || strings.Contains(out, "pizza-margherita") {
		t.Fatalf("menu output:\n%s", out)
	}

	if _, err := e.run(t, "menu", "-sort", "cheapest"); !errors.Is(err, storefront.ErrUsage) {
		t.Fatalf("bad sort err=%v", err)
	}

	out, err = e.run(t, "menu", "-q", "no-such-dish")
	if err != nil || !strings.Contains(out, "No items found.") {
		t.Fatalf("empty search out=%q err=%v", out, err)
	}
}

func TestCartCommandsPersist(t *testing.T) {
	e := newEnv(t)

	if _, err := e.run(t, "add", "pizza-margherita"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.run(t, "add", "drink-cola"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.run(t, "inc", "drink-cola"); err != nil {
		t.Fatal(err)
	}
	out, err := e.run(t, "qty", "pizza-margherita", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Items:    5") {
		t.Fatalf("cart output:\n%s", out)
	}

	if _, err := e.run(t, "add", "does-not-exist"); !errors.Is(err, storefront.ErrProductNotFound) {
		t.Fatalf("unknown product err=%v", err)
	}

	// a fresh process sees the same cart
	snap, err := e.storage.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	restored, err := snap.Cart()
	if err != nil {
		t.Fatal(err)
	}
	if restored.ItemCount() != 5 {
		t.Fatalf("persisted count=%d", restored.ItemCount())
	}

	if _, err := e.run(t, "dec", "drink-cola"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.run(t, "remove", "pizza-margherita"); err != nil {
		t.Fatal(err)
	}
	out, _ = e.run(t, "cart")
	if !strings.Contains(out, "Items:    1") {
		t.Fatalf("cart output:\n%s", out)
	}

	out, _ = e.run(t, "clear")
	if !strings.Contains(out, "Your cart is empty.") {
		t.Fatalf("clear output:\n%s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	e := newEnv(t)

	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"add"},
		{"qty", "pizza-margherita"},
		{"qty", "pizza-margherita", "many"},
	} {
		if _, err := e.run(t, args...); !errors.Is(err, storefront.ErrUsage) {
			t.Fatalf("args=%v err=%v", args, err)
		}
	}
}

var checkoutArgs = []string{
	"checkout",
	"-first", "Ayesha", "-last", "Khan",
	"-email", "ayesha@example.com", "-phone", "0300-1234567",
	"-address", "12 Canal Road", "-city", "Lahore", "-state", "Punjab", "-zip", "54000",
}

func TestCheckout(t *testing.T) {
	e := newEnv(t)

	if _, err := e.run(t, "add", "pizza-pepperoni"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := e.run(t, checkoutArgs...)
	if err != nil {
		t.Fatalf("checkout: %v\n%s", err, out)
	}
	if !regexp.MustCompile(`Your order ID is ORD-\d+-[0-9A-Z]{9}\.`).MatchString(out) {
		t.Fatalf("checkout output:\n%s", out)
	}
	if !e.app.Cart.Snapshot().IsEmpty() {
		t.Fatalf("cart not cleared after checkout")
	}
}

func TestCheckout_Validation(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run(t, "add", "drink-cola"); err != nil {
		t.Fatal(err)
	}

	args := append([]string{}, checkoutArgs...)
	args[6] = "not-an-email"

	out, err := e.run(t, args...)
	if !errors.Is(err, checkout.ErrIncompleteForm) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(out, "Please enter a valid email address") {
		t.Fatalf("output:\n%s", out)
	}
	if e.app.Cart.ItemCount() != 1 {
		t.Fatalf("cart touched by failed checkout")
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, checkoutArgs...)
	if !errors.Is(err, checkout.ErrEmptyCart) || !strings.Contains(out, "Your cart is empty") {
		t.Fatalf("err=%v out=%q", err, out)
	}
}

// flakyOrders drops the first order after the backend has seen it, the way a
// lost response looks to the client, and records every Idempotency-Key.
type flakyOrders struct {
	next http.Handler

	mu   sync.Mutex
	keys []string
}

func (f *flakyOrders) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		f.next.ServeHTTP(w, r)
		return
	}

	f.mu.Lock()
	f.keys = append(f.keys, r.Header.Get(orders.HeaderIdempotencyKey))
	first := len(f.keys) == 1
	f.mu.Unlock()

	if first {
		f.next.ServeHTTP(httptest.NewRecorder(), r)
		kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", nil)
		return
	}
	f.next.ServeHTTP(w, r)
}

func TestCheckout_RetryReusesKeyAcrossRuns(t *testing.T) {
	store, err := catalog.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	catalogTS := httptest.NewServer(catalog.NewHandler(&catalog.Server{Store: store}, catalog.HTTPDeps{Log: zap.NewNop()}))
	defer catalogTS.Close()

	ledger := orders.NewMemLedger(0)
	flaky := &flakyOrders{next: orders.NewHandler(&orders.Server{
		Ledger: ledger,
		Relay:  quietRelay{},
	}, orders.HTTPDeps{Log: zap.NewNop()})}
	ordersTS := httptest.NewServer(flaky)
	defer ordersTS.Close()

	home := t.TempDir()
	storage := cart.NewFileStorage(home)
	keys := checkout.NewFileKeyStore(home)

	run := func(args ...string) (string, error) {
		app := newApp(t, storage, catalogTS.URL, ordersTS.URL)
		app.Keys = keys
		out := &bytes.Buffer{}
		app.Out = out
		err := app.Run(context.Background(), args)
		return out.String(), err
	}

	if _, err := run("add", "pizza-margherita"); err != nil {
		t.Fatal(err)
	}

	out, err := run(checkoutArgs...)
	if err == nil || !strings.Contains(out, "upstream unavailable") {
		t.Fatalf("first checkout err=%v out=%q", err, out)
	}
	if _, err := os.Stat(keys.Path()); err != nil {
		t.Fatalf("pending key not persisted: %v", err)
	}

	out, err = run(checkoutArgs...)
	if err != nil {
		t.Fatalf("retry: %v\n%s", err, out)
	}

	flaky.mu.Lock()
	sent := append([]string(nil), flaky.keys...)
	flaky.mu.Unlock()
	if len(sent) != 2 || sent[0] == "" || sent[0] != sent[1] {
		t.Fatalf("keys=%v", sent)
	}

	rec, found, err := ledger.ByKey(context.Background(), sent[0])
	if err != nil || !found || !strings.Contains(out, rec.OrderID) {
		t.Fatalf("retry did not replay the first order: found=%v err=%v out=%q", found, err, out)
	}
	if _, err := os.Stat(keys.Path()); !os.IsNotExist(err) {
		t.Fatalf("pending key left after success: %v", err)
	}
}
