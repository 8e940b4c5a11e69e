// Package okx implements the datafeed adapters for OKX spot and linear
// perpetual swaps. OKX identifies instruments by dash-separated instIds
// ("BTC-USDT", "BTC-USDT-SWAP"); the adapters expose the familiar
// concatenated form as the chart symbol and keep the instId on the record
// to rebuild venue requests.
package okx

import (
	"context"
	"fmt"
	"time"

	"github.com/veiloq/chart-datafeed/pkg/common"
	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
	"github.com/veiloq/chart-datafeed/pkg/logging"
	"github.com/veiloq/chart-datafeed/pkg/ratelimit"
	"github.com/veiloq/chart-datafeed/pkg/registry"
	"github.com/veiloq/chart-datafeed/pkg/stream"
	"github.com/veiloq/chart-datafeed/pkg/symbols"
)

const (
	IDSpot = "OKX"
	IDSwap = "OKX_SWAP"

	restURL = "https://www.okx.com"
	wsURL   = "wss://ws.okx.com:8443"

	instTypeSpot = "SPOT"
	instTypeSwap = "SWAP"
)

// nativeIntervals maps canonical resolution codes to OKX bar strings:
// lowercase m for minutes, uppercase H/D/W/M above.
var nativeIntervals = map[string]string{
	interfaces.Res1:  "1m",
	interfaces.Res5:  "5m",
	interfaces.Res15: "15m",
	interfaces.Res30: "30m",
	interfaces.Res60: "1H",
	interfaces.Res4H: "4H",
	interfaces.Res1D: "1D",
	interfaces.Res1W: "1W",
	interfaces.Res1M: "1M",
}

// Adapter serves one OKX instrument type (SPOT or SWAP).
type Adapter struct {
	desc     interfaces.Descriptor
	opts     *interfaces.Options
	instType string

	http   common.HTTPClient
	reg    *registry.Registry
	table  *stream.Table
	logger logging.Logger
}

// NewSpot creates the OKX spot adapter.
func NewSpot(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDSpot,
		Name:             "OKX",
		Aliases:          []string{"OKEX"},
		RESTBaseURL:      restURL,
		WSBaseURL:        wsURL,
		Resolutions:      interfaces.AllResolutions(),
		MaxSearchResults: 30,
	}, reg, opts, logger, instTypeSpot)
}

// NewSwap creates the OKX linear perpetual adapter.
func NewSwap(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDSwap,
		Name:             "OKX Swap",
		Aliases:          []string{"OKXF"},
		RESTBaseURL:      restURL,
		WSBaseURL:        wsURL,
		Resolutions:      interfaces.AllResolutions(),
		MaxSearchResults: 30,
	}, reg, opts, logger, instTypeSwap)
}

func newAdapter(desc interfaces.Descriptor, reg *registry.Registry, opts *interfaces.Options, logger logging.Logger, instType string) *Adapter {
	if opts == nil {
		opts = interfaces.NewOptions()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = registry.New()
	}
	if opts.RESTBaseURL != "" {
		desc.RESTBaseURL = opts.RESTBaseURL
	}
	if opts.WSBaseURL != "" {
		desc.WSBaseURL = opts.WSBaseURL
	}

	return &Adapter{
		desc:     desc,
		opts:     opts,
		instType: instType,
		http: common.NewHTTPClient(&common.ClientConfig{
			Timeout: opts.HTTPTimeout,
			RateLimit: ratelimit.Rate{
				Limit:    opts.MaxRequestsPerSecond,
				Interval: time.Second,
			},
			MaxRetries: 3,
			RetryDelay: time.Second,
			Logger:     logger,
		}),
		reg:    reg,
		table:  stream.NewTable(),
		logger: logger.WithFields(logging.String("adapter", desc.ID)),
	}
}

// Descriptor implements interfaces.Adapter.
func (a *Adapter) Descriptor() interfaces.Descriptor { return a.desc }

// CanHandle implements interfaces.Adapter.
func (a *Adapter) CanHandle(qualified string) bool {
	return interfaces.MatchesPrefix(a.desc, qualified)
}

// FetchExchangeInfo implements interfaces.Adapter.
func (a *Adapter) FetchExchangeInfo(ctx context.Context) []interfaces.SymbolRecord {
	if a.reg.Fresh(a.desc.ID, a.opts.FreshnessWindow) {
		return a.reg.Records(a.desc.ID)
	}

	records, err := a.fetchInstruments(ctx)
	if err != nil {
		a.logger.Warn("exchange info fetch failed", logging.Error(err))
		return nil
	}

	a.reg.Replace(a.desc.ID, records)
	a.logger.Info("exchange info refreshed", logging.Int("symbols", len(records)))
	return records
}

// SearchSymbols implements interfaces.Adapter.
func (a *Adapter) SearchSymbols(query string) []interfaces.RankedSymbol {
	return interfaces.RankSymbols(a.desc, a.reg.Records(a.desc.ID), query, a.desc.MaxSearchResults)
}

// ResolveSymbol implements interfaces.Adapter.
func (a *Adapter) ResolveSymbol(ctx context.Context, symbol string) (*interfaces.ResolvedSymbol, error) {
	rec, ok := a.reg.Lookup(a.desc.ID, symbol)
	if !ok {
		a.FetchExchangeInfo(ctx)
		if rec, ok = a.reg.Lookup(a.desc.ID, symbol); !ok {
			return nil, interfaces.NewMarketError(symbol, "not listed on "+a.desc.ID, interfaces.ErrSymbolNotFound)
		}
	}

	scale := symbols.DefaultPriceScale
	if price, err := a.lastPrice(ctx, rec.Native()); err != nil {
		a.logger.Warn("price lookup failed, using default precision",
			logging.String("symbol", symbol),
			logging.Error(err),
		)
	} else {
		scale = symbols.PriceScale(price)
	}

	return &interfaces.ResolvedSymbol{
		Name:            rec.Symbol,
		FullName:        symbols.Qualify(a.desc.ID, rec.Symbol),
		Description:     rec.Base + "/" + rec.Quote,
		Exchange:        a.desc.Name,
		Type:            "crypto",
		Timezone:        "Etc/UTC",
		Session:         "24x7",
		PriceScale:      scale,
		MinMove:         1,
		TickSize:        symbols.TickSize(scale),
		Resolutions:     a.desc.Resolutions,
		VolumePrecision: 8,
	}, nil
}

// GetBars implements interfaces.Adapter. OKX pages newest-first with an
// "after" cursor; the fetch reverses to chronological order.
func (a *Adapter) GetBars(ctx context.Context, symbol, resolution string, from, to time.Time) ([]interfaces.Bar, error) {
	rec, ok := a.reg.Lookup(a.desc.ID, symbol)
	if !ok {
		// Fall back to treating the chart symbol as an instId; the venue
		// rejects it if it is neither.
		rec = interfaces.SymbolRecord{Symbol: symbol, NativeID: symbol}
	}

	native, mapErr := interfaces.MapResolution(nativeIntervals, resolution)
	if mapErr != nil {
		a.logger.Warn("falling back to default interval", logging.Error(mapErr))
	}
	fromMs, toMs := interfaces.ClampRange(from.UnixMilli(), to.UnixMilli())

	bars, err := a.fetchKlines(ctx, rec.Native(), native, fromMs, toMs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("history fetch failed",
			logging.String("symbol", symbol),
			logging.String("resolution", resolution),
			logging.Error(err),
		)
		return nil, nil
	}
	return interfaces.NormalizeBars(bars), nil
}

// SubscribeBars implements interfaces.Adapter. Candle channels live on the
// business endpoint; OKX expects an args-object subscribe request and a
// bare "ping" text frame as keep-alive.
func (a *Adapter) SubscribeBars(symbol, resolution string, onBar interfaces.BarHandler, subscriberID string) error {
	instID := symbol
	if rec, ok := a.reg.Lookup(a.desc.ID, symbol); ok {
		instID = rec.Native()
	}
	native, mapErr := interfaces.MapResolution(nativeIntervals, resolution)
	if mapErr != nil {
		a.logger.Warn("falling back to default interval", logging.Error(mapErr))
	}

	conn, err := stream.Dial(stream.Config{
		URL: a.desc.WSBaseURL + "/ws/v5/business",
		Handshake: []interface{}{
			map[string]interface{}{
				"op": "subscribe",
				"args": []map[string]string{{
					"channel": "candle" + native,
					"instId":  instID,
				}},
			},
		},
		PingMessage:       []byte("ping"),
		HeartbeatInterval: a.opts.WSHeartbeatInterval,
		ReconnectInterval: a.opts.WSReconnectInterval,
		MaxRetries:        5,
		Logger:            a.logger,
	}, func(message []byte) {
		bars, err := parseStreamMessage(message)
		if err != nil {
			a.logger.Warn("dropping malformed candle frame",
				logging.String("symbol", symbol),
				logging.Error(err),
			)
			return
		}
		for _, bar := range bars {
			onBar(bar)
		}
	})
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", a.desc.ID, symbol, resolution, interfaces.ErrSubscriptionFailed)
	}

	a.table.Put(subscriberID, conn)
	return nil
}

// UnsubscribeBars implements interfaces.Adapter.
func (a *Adapter) UnsubscribeBars(subscriberID string) {
	a.table.Remove(subscriberID)
}

// Close implements interfaces.Adapter.
func (a *Adapter) Close() error {
	a.table.CloseAll()
	return nil
}

// Subscriptions reports the number of live bar subscriptions.
func (a *Adapter) Subscriptions() int {
	return a.table.Len()
}
