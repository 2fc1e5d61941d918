package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"SliceSizzle/pkg/kit"
)

type HTTPDeps = kit.HTTPDeps

type Deps struct {
	CatalogURL string
	OrdersURL  string
	Origins    []string

	OrderRateLimit  int
	OrderRateWindow time.Duration
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	if httpDeps.Log == nil {
		httpDeps.Log = zap.NewNop()
	}

	catalogProxy, ordersProxy, err := buildProxies(deps, httpDeps.Log)
	if err != nil {
		return nil, err
	}

	r := kit.NewRouter(httpDeps, cors.Handler(corsOptions(deps.Origins)))

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Route("/api", func(api chi.Router) {
		api.Use(StripClientHeaders)

		api.Handle("/products", catalogProxy)
		api.Handle("/products/*", catalogProxy)
		api.Handle("/categories", catalogProxy)

		api.Handle("/health", ordersProxy)
		api.Get("/orders/*", ordersProxy.ServeHTTP)

		if deps.OrderRateLimit > 0 {
			window := deps.OrderRateWindow
			if window <= 0 {
				window = time.Minute
			}
			limiter := kit.NewIPRateLimiter(deps.OrderRateLimit, window)
			api.With(limiter.Middleware).Post("/orders", ordersProxy.ServeHTTP)
		} else {
			api.Post("/orders", ordersProxy.ServeHTTP)
		}
	})

	return r, nil
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func buildProxies(deps Deps, log *zap.Logger) (catalogProxy, ordersProxy http.Handler, err error) {
	cp, err := NewReverseProxy(deps.CatalogURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog proxy: %w", err)
	}

	op, err := NewReverseProxy(deps.OrdersURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("orders proxy: %w", err)
	}

	return cp, op, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := checkReady(ctx, deps.CatalogURL+"/readyz"); err != nil {
			log.Warn("readyz failed: catalog", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog not ready", nil)
			return
		}

		if err := checkReady(ctx, deps.OrdersURL+"/readyz"); err != nil {
			log.Warn("readyz failed: orders", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "orders not ready", nil)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
