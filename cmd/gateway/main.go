package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"SliceSizzle/internal/config"
	"SliceSizzle/internal/gateway"
	"SliceSizzle/pkg/kit"
)

func main() {
	service := "gateway"
	_, dotenvErr := config.LoadDotEnv()

	cfg, err := config.LoadGateway()
	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}
	if dotenvErr != nil {
		log.Warn(".env not loaded", zap.Error(dotenvErr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := gateway.NewHandler(
		gateway.Deps{
			CatalogURL:      cfg.CatalogURL,
			OrdersURL:       cfg.OrdersURL,
			Origins:         cfg.Origins,
			OrderRateLimit:  cfg.OrderRateLimit,
			OrderRateWindow: cfg.OrderRateWindow,
		},
		gateway.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: true,
			MetricsToken:   cfg.MetricsToken,
		},
	)
	if err != nil {
		log.Fatal("gateway init failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
