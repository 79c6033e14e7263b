package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Aurum/internal/config/price-refresher"
	"github.com/NordCoder/Aurum/internal/obs"
	pricerefresher "github.com/NordCoder/Aurum/internal/services/price-refresher"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "../config/price-refresher.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting price-refresher",
		zap.Strings("instruments", cfg.Refresher.Instruments),
		zap.Duration("tick", cfg.Refresher.Tick),
		zap.String("api_base", cfg.Refresher.APIBase),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	ms := obs.BootstrapMetricsServer(cfg.Refresher.MetricsAddr, nil, l)

	uc := pricerefresher.NewUC(obs.HTTPClient(cfg.Refresher.Timeout), cfg.Refresher.APIBase, cfg.Refresher.Secret, l)
	runner := pricerefresher.New(l, uc, &cfg.Refresher)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
