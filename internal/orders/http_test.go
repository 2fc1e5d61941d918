package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SliceSizzle/internal/orders"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var orderIDPattern = regexp.MustCompile(`^ORD-\d+-[0-9A-Z]{9}$`)

type fakeRelay struct {
	mu         sync.Mutex
	configured bool
	err        error
	panicMsg   string
	messages   []string
}

func (f *fakeRelay) Name() string     { return "telegram" }
func (f *fakeRelay) Configured() bool { return f.configured }

func (f *fakeRelay) Notify(_ context.Context, n orders.Notification) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, n.Message)
	return f.err
}

func (f *fakeRelay) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

type brokenLedger struct{ orders.MemLedger }

func (*brokenLedger) Put(context.Context, orders.Record) error { return errors.New("db down") }

func newOrdersTS(t *testing.T, s *orders.Server) *httptest.Server {
	t.Helper()

	if s.Ledger == nil {
		s.Ledger = orders.NewMemLedger(0)
	}
	h := orders.NewHandler(s, orders.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "orders",
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

const validOrder = `{
	"customer": {"firstName":"Ayesha","lastName":"Khan","email":"ayesha@example.com","phone":"0300-1234567",
		"address":"12 Canal Road","city":"Lahore","state":"Punjab","zipCode":"54000","notes":""},
	"items": [{"id":"pizza-margherita","name":"Margherita","price":1250,"quantity":2}],
	"subtotal": 2500, "tax": 218.75, "total": 2718.75
}`

func postOrder(t *testing.T, url, body, key string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/api/orders", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(orders.HeaderIdempotencyKey, key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	for _, configured := range []bool{false, true} {
		ts := newOrdersTS(t, &orders.Server{Relay: &fakeRelay{configured: configured}})

		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		var h orders.Health
		err = json.NewDecoder(resp.Body).Decode(&h)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if h.Status != "ok" || h.TelegramConfigured != configured {
			t.Fatalf("health=%+v want configured=%v", h, configured)
		}
	}
}

func TestCreate_Accepted(t *testing.T) {
	relay := &fakeRelay{configured: true}
	ts := newOrdersTS(t, &orders.Server{Relay: relay, Receipts: orders.NewReceiptSigner(testSecret, 0)})

	resp, out := postOrder(t, ts.URL, validOrder, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, out)
	}
	if out["success"] != true || out["telegramNotified"] != true {
		t.Fatalf("body=%v", out)
	}
	id, _ := out["orderId"].(string)
	if !orderIDPattern.MatchString(id) {
		t.Fatalf("order id %q", id)
	}
	if tok, _ := out["receiptToken"].(string); tok == "" {
		t.Fatalf("missing receipt token")
	}
	if msgs := relay.sent(); len(msgs) != 1 || !strings.Contains(msgs[0], id) {
		t.Fatalf("relay messages=%v", msgs)
	}
}

func TestCreate_InvalidOrder(t *testing.T) {
	ts := newOrdersTS(t, &orders.Server{Relay: &fakeRelay{}})

	bodies := map[string]string{
		"not json":         `{"customer":`,
		"missing customer": `{"items":[{"id":"a","name":"A","price":1,"quantity":1}]}`,
		"null customer":    `{"customer":null,"items":[{"id":"a","name":"A","price":1,"quantity":1}]}`,
		"missing items":    `{"customer":{"firstName":"A"}}`,
		"empty items":      `{"customer":{"firstName":"A"},"items":[]}`,
		"zero quantity":    `{"customer":{"firstName":"A"},"items":[{"id":"a","price":1,"quantity":0}]}`,
		"negative price":   `{"customer":{"firstName":"A"},"items":[{"id":"a","price":-1,"quantity":1}]}`,
		"trailing data":    validOrder + `{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			resp, out := postOrder(t, ts.URL, body, "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d", resp.StatusCode)
			}
			if out["error"] != "Invalid order data" {
				t.Fatalf("error=%v", out["error"])
			}
		})
	}
}

func TestCreate_RelayFailureStillAccepts(t *testing.T) {
	relays := map[string]*fakeRelay{
		"error": {configured: true, err: errors.New("telegram down")},
		"panic": {configured: true, panicMsg: "boom"},
	}
	for name, relay := range relays {
		t.Run(name, func(t *testing.T) {
			ts := newOrdersTS(t, &orders.Server{Relay: relay})

			resp, out := postOrder(t, ts.URL, validOrder, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status=%d body=%v", resp.StatusCode, out)
			}
			if out["telegramNotified"] != false {
				t.Fatalf("telegramNotified=%v", out["telegramNotified"])
			}
			if id, _ := out["orderId"].(string); !orderIDPattern.MatchString(id) {
				t.Fatalf("order id %q", id)
			}
		})
	}
}

func TestCreate_ExtraNotifierFailureIgnored(t *testing.T) {
	var (
		mu      sync.Mutex
		kitchen []string
	)
	ts := newOrdersTS(t, &orders.Server{
		Relay: &fakeRelay{configured: true},
		Notifiers: []orders.Notifier{
			orders.NotifierFunc{Sink: "kafka", Fn: func(_ context.Context, n orders.Notification) error {
				mu.Lock()
				defer mu.Unlock()
				kitchen = append(kitchen, n.OrderID)
				return errors.New("broker unreachable")
			}},
		},
	})

	resp, out := postOrder(t, ts.URL, validOrder, "")
	if resp.StatusCode != http.StatusOK || out["telegramNotified"] != true {
		t.Fatalf("status=%d body=%v", resp.StatusCode, out)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(kitchen) != 1 || kitchen[0] != out["orderId"] {
		t.Fatalf("kitchen=%v", kitchen)
	}
}

func TestCreate_LedgerFailure(t *testing.T) {
	ts := newOrdersTS(t, &orders.Server{Ledger: &brokenLedger{}, Relay: &fakeRelay{}})

	resp, out := postOrder(t, ts.URL, validOrder, "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if out["error"] != "Failed to process order" {
		t.Fatalf("error=%v", out["error"])
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	relay := &fakeRelay{configured: true}
	ts := newOrdersTS(t, &orders.Server{Relay: relay})

	first, a := postOrder(t, ts.URL, validOrder, "key-1")
	second, b := postOrder(t, ts.URL, validOrder, "key-1")

	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusOK {
		t.Fatalf("status=%d/%d", first.StatusCode, second.StatusCode)
	}
	if a["orderId"] != b["orderId"] {
		t.Fatalf("replay issued a new id: %v vs %v", a["orderId"], b["orderId"])
	}
	if second.Header.Get(orders.HeaderReplayed) != "true" || first.Header.Get(orders.HeaderReplayed) != "" {
		t.Fatalf("replayed header first=%q second=%q",
			first.Header.Get(orders.HeaderReplayed), second.Header.Get(orders.HeaderReplayed))
	}
	if b["telegramNotified"] != true {
		t.Fatalf("replay lost notified flag")
	}
	if n := len(relay.sent()); n != 1 {
		t.Fatalf("relay sent %d messages", n)
	}

	other := strings.Replace(validOrder, `"quantity":2`, `"quantity":3`, 1)
	resp, out := postOrder(t, ts.URL, other, "key-1")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if out["error"] != "Idempotency key reused with different order" {
		t.Fatalf("error=%v", out["error"])
	}

	_, c := postOrder(t, ts.URL, validOrder, "key-2")
	if c["orderId"] == a["orderId"] {
		t.Fatalf("new key reused old order id")
	}
}

func getReceipt(t *testing.T, url, id, token string) int {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, url+"/api/orders/"+id, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestReceiptLookup(t *testing.T) {
	signer := orders.NewReceiptSigner(testSecret, 0)
	ts := newOrdersTS(t, &orders.Server{Relay: &fakeRelay{}, Receipts: signer})

	_, out := postOrder(t, ts.URL, validOrder, "")
	id := out["orderId"].(string)
	tok := out["receiptToken"].(string)

	if code := getReceipt(t, ts.URL, id, ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code := getReceipt(t, ts.URL, id, "garbage"); code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", code)
	}

	foreign, _ := orders.NewReceiptSigner("ffffffffffffffffffffffffffffffff", 0).Issue(id)
	if code := getReceipt(t, ts.URL, id, foreign); code != http.StatusUnauthorized {
		t.Fatalf("foreign signer: %d", code)
	}

	other, _ := signer.Issue("ORD-1-AAAAAAAAA")
	if code := getReceipt(t, ts.URL, id, other); code != http.StatusForbidden {
		t.Fatalf("other order: %d", code)
	}
	if code := getReceipt(t, ts.URL, "ORD-1-AAAAAAAAA", other); code != http.StatusNotFound {
		t.Fatalf("unknown order: %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/orders/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var rcpt orders.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rcpt); err != nil {
		t.Fatal(err)
	}
	if rcpt.OrderID != id || rcpt.Order.Customer == nil || rcpt.Order.Customer.City != "Lahore" {
		t.Fatalf("receipt=%+v", rcpt)
	}
	if !rcpt.Order.Total.Equal(mustAmount(t, "2718.75")) {
		t.Fatalf("total=%s", rcpt.Order.Total)
	}
}

func TestOrderIDsAreUnique(t *testing.T) {
	ts := newOrdersTS(t, &orders.Server{Relay: &fakeRelay{}})

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		_, out := postOrder(t, ts.URL, validOrder, "")
		id := out["orderId"].(string)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
