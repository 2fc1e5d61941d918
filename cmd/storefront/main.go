package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"SliceSizzle/internal/cart"
	"SliceSizzle/internal/checkout"
	"SliceSizzle/internal/config"
	"SliceSizzle/internal/storefront"
	"SliceSizzle/pkg/kit"
)

func main() {
	os.Exit(run())
}

func run() int {
	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cfg, err := config.LoadStorefront()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := kit.NewLogger("storefront", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := cart.OpenSession(ctx, cart.NewFileStorage(cfg.Home), log)
	if err != nil {
		log.Error("open cart", zap.Error(err))
		return 1
	}

	app := &storefront.App{
		Catalog: storefront.NewCatalogClient(cfg.APIURL),
		Cart:    session,
		Orders:  checkout.NewOrderClient(cfg.APIURL),
		Keys:    checkout.NewFileKeyStore(cfg.Home),
		Log:     log,
		Out:     os.Stdout,
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, storefront.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
