package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"SliceSizzle/internal/catalog"
	"SliceSizzle/internal/config"
	"SliceSizzle/pkg/kit"
)

func main() {
	service := "catalog"
	dotenv, dotenvErr := config.LoadDotEnv()

	cfg := config.LoadCatalog()
	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if dotenvErr != nil {
		log.Warn(".env not loaded", zap.Error(dotenvErr))
	} else if dotenv {
		log.Info(".env loaded")
	}

	menu, err := loadMenu(cfg.MenuPath)
	if err != nil {
		log.Fatal("menu", zap.Error(err))
	}

	var (
		store   catalog.Store = catalog.NewMemStore(menu)
		onClose []func(context.Context)
	)
	if cfg.DatabaseURL != "" {
		pool, err := openStore(cfg.DatabaseURL, menu, log)
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		store = catalog.NewPostgresStore(pool)
		onClose = append(onClose, func(context.Context) { pool.Close() })
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := catalog.NewHandler(&catalog.Server{Store: store, Log: log}, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   config.Getenv("METRICS_TOKEN", ""),
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log, onClose...); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func loadMenu(path string) (catalog.Menu, error) {
	if path == "" {
		return catalog.DefaultMenu()
	}
	return catalog.LoadMenu(path)
}

func openStore(dsn string, menu catalog.Menu, log *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	s := catalog.NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	seeded, err := s.SeedIfEmpty(ctx, menu)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if seeded {
		log.Info("menu seeded", zap.Int("products", len(menu.Products)))
	}
	return pool, nil
}
