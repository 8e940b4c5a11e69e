// Package binance implements the datafeed adapters for Binance spot and
// Binance perpetual futures (USD-M). Both markets share the same wire
// formats; only the hosts and REST path prefixes differ.
package binance

import (
	"context"
	"fmt"
	"strings"
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
	IDSpot    = "BINANCE"
	IDFutures = "BINANCE_FUTURES"

	spotRESTURL = "https://api.binance.com"
	spotWSURL   = "wss://stream.binance.com:9443"

	futuresRESTURL = "https://fapi.binance.com"
	futuresWSURL   = "wss://fstream.binance.com"
)

// nativeIntervals maps canonical resolution codes to Binance interval
// strings, identical for spot and futures.
var nativeIntervals = map[string]string{
	interfaces.Res1:  "1m",
	interfaces.Res5:  "5m",
	interfaces.Res15: "15m",
	interfaces.Res30: "30m",
	interfaces.Res60: "1h",
	interfaces.Res4H: "4h",
	interfaces.Res1D: "1d",
	interfaces.Res1W: "1w",
	interfaces.Res1M: "1M",
}

// Adapter serves one Binance market (spot or futures).
type Adapter struct {
	desc    interfaces.Descriptor
	opts    *interfaces.Options
	futures bool

	http   common.HTTPClient
	reg    *registry.Registry
	table  *stream.Table
	logger logging.Logger
}

// NewSpot creates the Binance spot adapter. The registry is injected by the
// owning manager; a nil registry gets a private one. The blacklist excludes
// Binance's leveraged tokens, which are not chartable spot instruments.
func NewSpot(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDSpot,
		Name:             "Binance",
		Aliases:          []string{"BINANCES"},
		RESTBaseURL:      spotRESTURL,
		WSBaseURL:        spotWSURL,
		Resolutions:      interfaces.AllResolutions(),
		Blacklist:        []string{"UP", "DOWN", "BULL", "BEAR"},
		MaxSearchResults: 30,
	}, reg, opts, logger, false)
}

// NewFutures creates the Binance USD-M perpetual adapter.
func NewFutures(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDFutures,
		Name:             "Binance Futures",
		Aliases:          []string{"BINANCEF"},
		RESTBaseURL:      futuresRESTURL,
		WSBaseURL:        futuresWSURL,
		Resolutions:      interfaces.AllResolutions(),
		MaxSearchResults: 30,
	}, reg, opts, logger, true)
}

func newAdapter(desc interfaces.Descriptor, reg *registry.Registry, opts *interfaces.Options, logger logging.Logger, futures bool) *Adapter {
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
		desc:    desc,
		opts:    opts,
		futures: futures,
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

// FetchExchangeInfo implements interfaces.Adapter. A fetch inside the
// freshness window is served from the registry without I/O; a failed fetch
// keeps the stale registry entry and returns nil.
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

// ResolveSymbol implements interfaces.Adapter. The price scale comes from a
// live ticker lookup; when that fails the symbol still resolves at the
// default scale.
func (a *Adapter) ResolveSymbol(ctx context.Context, symbol string) (*interfaces.ResolvedSymbol, error) {
	rec, ok := a.reg.Lookup(a.desc.ID, symbol)
	if !ok {
		// Cold registry: try one refresh before declaring the symbol gone.
		a.FetchExchangeInfo(ctx)
		if rec, ok = a.reg.Lookup(a.desc.ID, symbol); !ok {
			return nil, interfaces.NewMarketError(symbol, "not listed on "+a.desc.ID, interfaces.ErrSymbolNotFound)
		}
	}

	scale := symbols.DefaultPriceScale
	if price, err := a.lastPrice(ctx, rec.Symbol); err != nil {
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

// GetBars implements interfaces.Adapter. Venue outages are absorbed into an
// empty result; only context cancellation propagates.
func (a *Adapter) GetBars(ctx context.Context, symbol, resolution string, from, to time.Time) ([]interfaces.Bar, error) {
	native, mapErr := interfaces.MapResolution(nativeIntervals, resolution)
	if mapErr != nil {
		a.logger.Warn("falling back to default interval", logging.Error(mapErr))
	}
	fromMs, toMs := interfaces.ClampRange(from.UnixMilli(), to.UnixMilli())

	bars, err := a.fetchKlines(ctx, symbol, native, fromMs, toMs)
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

// SubscribeBars implements interfaces.Adapter. Binance encodes the
// subscription in the stream path, so no handshake message is needed; the
// server answers WebSocket control pings.
func (a *Adapter) SubscribeBars(symbol, resolution string, onBar interfaces.BarHandler, subscriberID string) error {
	native, mapErr := interfaces.MapResolution(nativeIntervals, resolution)
	if mapErr != nil {
		a.logger.Warn("falling back to default interval", logging.Error(mapErr))
	}
	url := a.desc.WSBaseURL + "/ws/" + strings.ToLower(symbol) + "@kline_" + native

	conn, err := stream.Dial(stream.Config{
		URL:               url,
		HeartbeatInterval: a.opts.WSHeartbeatInterval,
		ReconnectInterval: a.opts.WSReconnectInterval,
		MaxRetries:        5,
		Logger:            a.logger,
	}, func(message []byte) {
		bar, err := parseStreamKline(message)
		if err != nil {
			a.logger.Warn("dropping malformed kline frame",
				logging.String("symbol", symbol),
				logging.Error(err),
			)
			return
		}
		onBar(bar)
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
