package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veiloq/chart-datafeed/pkg/config"
	"github.com/veiloq/chart-datafeed/pkg/datafeed"
	"github.com/veiloq/chart-datafeed/pkg/exchanges/binance"
	"github.com/veiloq/chart-datafeed/pkg/exchanges/bybit"
	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
	"github.com/veiloq/chart-datafeed/pkg/exchanges/okx"
	"github.com/veiloq/chart-datafeed/pkg/logging"
	"github.com/veiloq/chart-datafeed/pkg/registry"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logging.NewLogger().Error("failed to load config", logging.Error(err))
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.NewLogger()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	// Build the manager and register the enabled adapters against its
	// shared registry
	manager := datafeed.NewManager(logger)
	reg := manager.Registry()

	type venue struct {
		id        string
		build     func(*registry.Registry, *interfaces.Options, logging.Logger) interfaces.Adapter
		isDefault bool
	}
	venues := []venue{
		{binance.IDSpot, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return binance.NewSpot(r, o, l)
		}, false},
		{binance.IDFutures, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return binance.NewFutures(r, o, l)
		}, false},
		{bybit.IDSpot, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return bybit.NewSpot(r, o, l)
		}, false},
		{bybit.IDFutures, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return bybit.NewFutures(r, o, l)
		}, false},
		{okx.IDSpot, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return okx.NewSpot(r, o, l)
		}, false},
		{okx.IDSwap, func(r *registry.Registry, o *interfaces.Options, l logging.Logger) interfaces.Adapter {
			return okx.NewSwap(r, o, l)
		}, false},
	}
	for i := range venues {
		if venues[i].id == cfg.DefaultAdapter {
			venues[i].isDefault = true
		}
	}

	for _, v := range venues {
		if !cfg.Venue(v.id).Enabled {
			continue
		}
		manager.Register(v.build(reg, cfg.Options(v.id), logger), v.isDefault)
	}
	defer manager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Discover symbols across all venues
	logger.Info("initializing datafeed")
	manager.Initialize(ctx)

	manager.OnReady(func(caps datafeed.Capabilities) {
		logger.Info("datafeed ready",
			logging.Int("exchanges", len(caps.Exchanges)),
			logging.Int("resolutions", len(caps.Resolutions)),
		)
	})

	// Search for BTC instruments across all venues
	results := manager.SearchSymbols(ctx, "BTC", "", "")
	for _, r := range results[:min(5, len(results))] {
		logger.Info("search result",
			logging.String("symbol", r.FullName),
			logging.String("exchange", r.Exchange),
		)
	}

	// Resolve and chart a symbol
	resolved, err := manager.ResolveSymbol(ctx, "BINANCE:BTCUSDT")
	if err != nil {
		logger.Error("failed to resolve symbol", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("resolved symbol",
		logging.String("name", resolved.Name),
		logging.String("description", resolved.Description),
		logging.Int("price_scale", resolved.PriceScale),
	)

	// Fetch an hour of 1-minute history
	history, err := manager.History(ctx, "BINANCE:BTCUSDT", "1",
		time.Now().Add(-1*time.Hour), time.Now())
	if err != nil {
		logger.Error("failed to fetch history", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("history fetched",
		logging.Int("bars", len(history.Bars)),
		logging.Bool("no_data", history.NoData),
	)

	// Stream live bars
	err = manager.SubscribeBars("BINANCE:BTCUSDT", "1", func(bar interfaces.Bar) {
		logger.Info("live bar",
			logging.Int64("time", bar.Time),
			logging.Float64("open", bar.Open),
			logging.Float64("close", bar.Close),
			logging.Bool("closed", bar.Closed),
		)
	}, "example-subscriber")
	if err != nil {
		logger.Error("failed to subscribe", logging.Error(err))
		os.Exit(1)
	}
	defer manager.UnsubscribeBars("example-subscriber")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	logger.Info("shutting down")
	cancel()
}
