// Package chart-datafeed provides a multi-exchange OHLCV datasource for
// charting front-ends.
//
// The library presents one datafeed contract over several cryptocurrency
// venues: it discovers tradable instruments, resolves qualified symbol names
// ("BINANCE:BTCUSDT"), serves historical candlestick bars, and streams live
// bar updates over websockets. A routing manager dispatches each request to
// the adapter owning the symbol's exchange prefix, so the front-end never
// sees venue-specific wire formats.
//
// Core Features:
//
//   - One datafeed API over Binance, Bybit and OKX, spot and perpetuals
//   - Qualified symbol routing with a configurable default venue
//   - Ranked cross-venue symbol search
//   - Paginated historical bar fetching normalized to ascending open time
//   - WebSocket bar streaming with reconnection and keep-alive handling
//   - Per-venue rate limiting on REST calls
//
// The entry point is datafeed.Manager. Adapters register against the
// manager's shared symbol registry; the manager routes by CanHandle and
// falls back to the default adapter for unprefixed names.
//
// # Standard Errors
//
// The interfaces package defines the errors shared across adapters:
//
//   - ErrSymbolNotFound: the venue does not list the requested instrument
//
//   - ErrNoAdapter: no adapter claims the symbol and no default is set
//
//   - ErrUnknownResolution: a resolution code outside the canonical set
//
//   - ErrSubscriptionFailed: a streaming connection could not be opened
//
//   - ErrManagerClosed: a request arrived after Close
//
// Transport and parse failures during discovery and history fetching are
// not surfaced as errors: adapters log them and return empty results, so a
// single venue outage degrades that venue only. Context cancellation is
// the exception and always propagates.
//
// # Examples
//
// Building and initializing a datafeed:
//
//	logger := logging.NewLogger()
//	manager := datafeed.NewManager(logger)
//
//	opts := interfaces.NewOptions()
//	manager.Register(binance.NewSpot(manager.Registry(), opts, logger), true)
//	manager.Register(bybit.NewSpot(manager.Registry(), opts, logger), false)
//	defer manager.Close()
//
//	ctx := context.Background()
//	manager.Initialize(ctx)
//
// Fetching history:
//
//	history, err := manager.History(ctx, "BINANCE:BTCUSDT", "60",
//	    time.Now().Add(-24*time.Hour), time.Now())
//	if err != nil {
//	    log.Fatalf("history: %v", err)
//	}
//	if history.NoData {
//	    fmt.Println("no bars in range")
//	}
//	for _, bar := range history.Bars {
//	    fmt.Printf("%d O:%.2f C:%.2f\n", bar.Time, bar.Open, bar.Close)
//	}
//
// Streaming live bars:
//
//	err = manager.SubscribeBars("BYBIT:ETHUSDT", "1", func(bar interfaces.Bar) {
//	    fmt.Printf("live %.2f closed=%v\n", bar.Close, bar.Closed)
//	}, "chart-1")
//	if err != nil {
//	    log.Fatalf("subscribe: %v", err)
//	}
//	defer manager.UnsubscribeBars("chart-1")
package chartdatafeed
