package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SliceSizzle/internal/orders"
)

const (
	msgRejected    = "Failed to place order"
	msgUnreachable = "Failed to place order. Please try again."
)

var ErrOrdersUnavailable = errors.New("orders api unavailable")

// APIError is a non-2xx answer from the orders API. Message is what the
// customer should see.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orders api: status=%d: %s", e.Status, e.Message)
}

// Submitter sends one order. key identifies the attempt for server side
// deduplication.
type Submitter interface {
	PlaceOrder(ctx context.Context, o orders.Order, key string) (orders.Placed, error)
}

type OrderClient struct {
	BaseURL string
	Client  *http.Client
}

func NewOrderClient(baseURL string) *OrderClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &OrderClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *OrderClient) PlaceOrder(ctx context.Context, o orders.Order, key string) (orders.Placed, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return orders.Placed{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return orders.Placed{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(orders.HeaderIdempotencyKey, key)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return orders.Placed{}, fmt.Errorf("%w: %v", ErrOrdersUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return orders.Placed{}, fmt.Errorf("%w: %v", ErrOrdersUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := strings.TrimSpace(e.Error)
		if msg == "" {
			msg = msgRejected
		}
		return orders.Placed{}, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var placed orders.Placed
	if err := json.Unmarshal(raw, &placed); err != nil {
		return orders.Placed{}, fmt.Errorf("decode order response: %w", err)
	}
	if placed.OrderID == "" {
		return orders.Placed{}, &APIError{Status: resp.StatusCode, Message: msgRejected}
	}
	return placed, nil
}
