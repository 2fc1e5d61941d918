package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"SliceSizzle/pkg/kit"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxOrderBody  = 1 << 20
	maxKeyLen     = 255
	relayTimeout  = 10 * time.Second
	ledgerTimeout = 5 * time.Second

	msgInvalidOrder  = "Invalid order data"
	msgProcessFailed = "Failed to process order"
	msgKeyConflict   = "Idempotency key reused with different order"
)

// Relay is the notifier whose outcome is reported back to the customer as
// telegramNotified.
type Relay interface {
	Notifier
	Configured() bool
}

type Server struct {
	Ledger    Ledger
	Relay     Relay
	Notifiers []Notifier
	Receipts  *ReceiptSigner
	Metrics   *Metrics
	Log       *zap.Logger

	Now   func() time.Time
	NewID func(time.Time) (string, error)
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.health)
		api.Post("/orders", s.create)

		if s.Receipts != nil {
			api.With(RequireReceipt(s.Receipts)).Get("/orders/{id}", s.receipt)
		}
	})

	return r
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := s.Ledger.Ping(ctx); err != nil {
		s.log().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, Health{
		Status:             "ok",
		TelegramConfigured: s.Relay != nil && s.Relay.Configured(),
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		s.log().Error("order submission panic", zap.Any("panic", rec))
		kit.WriteError(w, r, http.StatusInternalServerError, msgProcessFailed, nil)
	}()

	var o Order
	if err := kit.DecodeJSON(w, r, maxOrderBody, &o); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, msgInvalidOrder, nil)
		return
	}
	if err := o.Validate(); err != nil {
		s.log().Debug("order rejected", zap.Error(err))
		kit.WriteError(w, r, http.StatusBadRequest, msgInvalidOrder, nil)
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxKeyLen {
		kit.WriteError(w, r, http.StatusBadRequest, "Invalid idempotency key", nil)
		return
	}

	fp, err := Fingerprint(o)
	if err != nil {
		s.fail(w, r, "fingerprint order", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ledgerTimeout)
	defer cancel()

	if key != "" {
		rec, found, err := s.Ledger.ByKey(ctx, key)
		if err != nil {
			s.fail(w, r, "ledger lookup", err)
			return
		}
		if found {
			s.replay(w, r, rec, fp)
			return
		}
	}

	now := s.now()
	id, err := s.newID(now)
	if err != nil {
		s.fail(w, r, "order id", err)
		return
	}

	rec := Record{
		OrderID:        id,
		IdempotencyKey: key,
		Fingerprint:    fp,
		Order:          o,
		PlacedAt:       now,
	}
	if err := s.Ledger.Put(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// lost a race with a concurrent submission of the same key
			if prev, found, lerr := s.Ledger.ByKey(ctx, key); lerr == nil && found {
				s.replay(w, r, prev, fp)
				return
			}
		}
		s.fail(w, r, "ledger put", err)
		return
	}

	notified := s.relay(r.Context(), Notification{
		OrderID:  id,
		Order:    o,
		Message:  FormatMessage(o, id, now),
		PlacedAt: now,
	})
	if notified {
		if err := s.markNotified(r.Context(), id); err != nil {
			s.log().Warn("ledger notified flag not stored", zap.String("order_id", id), zap.Error(err))
		}
	}

	s.Metrics.accepted()
	s.log().Info("order accepted",
		zap.String("order_id", id),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.Total.String()),
		zap.Bool("telegram_notified", notified),
	)

	kit.WriteJSON(w, http.StatusOK, Placed{
		Success:          true,
		OrderID:          id,
		TelegramNotified: notified,
		ReceiptToken:     s.issueReceipt(id),
	})
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request, rec Record, fp string) {
	if rec.Fingerprint != fp {
		kit.WriteError(w, r, http.StatusConflict, msgKeyConflict, map[string]any{"orderId": rec.OrderID})
		return
	}

	s.Metrics.replayed()
	w.Header().Set(HeaderReplayed, "true")
	kit.WriteJSON(w, http.StatusOK, Placed{
		Success:          true,
		OrderID:          rec.OrderID,
		TelegramNotified: rec.TelegramNotified,
		ReceiptToken:     s.issueReceipt(rec.OrderID),
	})
}

// relay fans the order out to every sink. Only the primary relay decides the
// reported outcome; the rest are fire and log.
func (s *Server) relay(parent context.Context, n Notification) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), relayTimeout)
	defer cancel()

	notified := false
	if s.Relay != nil {
		err := s.notify(ctx, s.Relay, n)
		notified = err == nil
		if err != nil {
			s.log().Warn("telegram notification failed",
				zap.String("order_id", n.OrderID),
				zap.Error(err),
			)
			s.log().Debug("undelivered order message", zap.String("order_id", n.OrderID), zap.String("message", n.Message))
		}
	}

	for _, sink := range s.Notifiers {
		if err := s.notify(ctx, sink, n); err != nil {
			s.log().Warn("order notification failed",
				zap.String("sink", sink.Name()),
				zap.String("order_id", n.OrderID),
				zap.Error(err),
			)
		}
	}
	return notified
}

func (s *Server) notify(ctx context.Context, sink Notifier, n Notification) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v", sink.Name(), rec)
		}
		s.Metrics.notified(sink.Name(), err)
	}()
	return sink.Notify(ctx, n)
}

func (s *Server) markNotified(parent context.Context, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), ledgerTimeout)
	defer cancel()
	return s.Ledger.SetNotified(ctx, id, true)
}

func (s *Server) receipt(w http.ResponseWriter, r *http.Request) {
	claims, ok := ReceiptFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if claims.OrderID != id {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	rec, found, err := s.Ledger.ByID(r.Context(), id)
	if err != nil {
		s.log().Error("ledger get order failed", zap.Error(err), zap.String("order_id", id))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}

	kit.WriteJSON(w, http.StatusOK, Receipt{
		OrderID:          rec.OrderID,
		Order:            rec.Order,
		TelegramNotified: rec.TelegramNotified,
		PlacedAt:         rec.PlacedAt,
	})
}

func (s *Server) issueReceipt(orderID string) string {
	if s.Receipts == nil {
		return ""
	}
	tok, err := s.Receipts.Issue(orderID)
	if err != nil {
		s.log().Warn("receipt not issued", zap.String("order_id", orderID), zap.Error(err))
		return ""
	}
	return tok
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, step string, err error) {
	s.log().Error("order submission failed", zap.String("step", step), zap.Error(err))
	kit.WriteError(w, r, http.StatusInternalServerError, msgProcessFailed, nil)
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) newID(t time.Time) (string, error) {
	if s.NewID != nil {
		return s.NewID(t)
	}
	return NewOrderID(t)
}

func (s *Server) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
