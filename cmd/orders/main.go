package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"SliceSizzle/internal/config"
	"SliceSizzle/internal/orders"
	"SliceSizzle/pkg/kit"
)

const purgeEvery = time.Hour

func main() {
	service := "orders"
	dotenv, dotenvErr := config.LoadDotEnv()

	cfg, err := config.LoadOrders()
	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	if dotenvErr != nil {
		log.Warn(".env not loaded", zap.Error(dotenvErr))
	} else if dotenv {
		log.Info(".env loaded")
	}

	var onClose []func(context.Context)

	ledger, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}
	onClose = append(onClose, closeLedger)

	var notifiers []orders.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kp := orders.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kp)
		onClose = append(onClose, func(context.Context) {
			if err := kp.Close(); err != nil {
				log.Warn("kafka writer close", zap.Error(err))
			}
		})
		log.Info("kitchen events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	secret := cfg.ReceiptSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("RECEIPT_SECRET not set, receipts will not survive a restart")
	}

	telegram := orders.NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID)
	log.Info("telegram", zap.Bool("configured", telegram.Configured()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &orders.Server{
		Ledger:    ledger,
		Relay:     telegram,
		Notifiers: notifiers,
		Receipts:  orders.NewReceiptSigner(secret, cfg.ReceiptTTL),
		Log:       log,
	}
	h := orders.NewHandler(s, orders.HTTPDeps{
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

func openLedger(cfg config.Orders, log *zap.Logger) (orders.Ledger, func(context.Context), error) {
	if cfg.DatabaseURL == "" {
		return orders.NewMemLedger(cfg.ReceiptTTL), func(context.Context) {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	l := orders.NewPostgresLedger(pool, cfg.ReceiptTTL)
	if err := l.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	stop := make(chan struct{})
	go purgeLoop(l, stop, log)

	return l, func(context.Context) {
		close(stop)
		pool.Close()
	}, nil
}

func purgeLoop(l *orders.PostgresLedger, stop <-chan struct{}, log *zap.Logger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n, err := l.Purge(context.Background())
			if err != nil {
				log.Warn("ledger purge failed", zap.Error(err))
				continue
			}
			log.Debug("ledger purged", zap.Int64("rows", n))
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
