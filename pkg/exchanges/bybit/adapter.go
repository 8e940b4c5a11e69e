// Package bybit implements the datafeed adapters for Bybit's v5 API. The
// spot and linear-perpetual markets share endpoints and wire formats,
// selected by the category request parameter and the public stream path.
package bybit

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
	IDSpot    = "BYBIT"
	IDFutures = "BYBIT_FUTURES"

	restURL = "https://api.bybit.com"
	wsURL   = "wss://stream.bybit.com"

	categorySpot   = "spot"
	categoryLinear = "linear"
)

// nativeIntervals maps canonical resolution codes to Bybit v5 interval
// strings: bare minute counts intraday, letters for daily and above.
var nativeIntervals = map[string]string{
	interfaces.Res1:  "1",
	interfaces.Res5:  "5",
	interfaces.Res15: "15",
	interfaces.Res30: "30",
	interfaces.Res60: "60",
	interfaces.Res4H: "240",
	interfaces.Res1D: "D",
	interfaces.Res1W: "W",
	interfaces.Res1M: "M",
}

// Adapter serves one Bybit category (spot or linear perpetual).
type Adapter struct {
	desc     interfaces.Descriptor
	opts     *interfaces.Options
	category string

	http   common.HTTPClient
	reg    *registry.Registry
	table  *stream.Table
	logger logging.Logger
}

// NewSpot creates the Bybit spot adapter.
func NewSpot(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDSpot,
		Name:             "Bybit",
		Aliases:          []string{"BYBITS"},
		RESTBaseURL:      restURL,
		WSBaseURL:        wsURL,
		Resolutions:      interfaces.AllResolutions(),
		Blacklist:        []string{"3L", "3S"},
		MaxSearchResults: 30,
	}, reg, opts, logger, categorySpot)
}

// NewFutures creates the Bybit linear perpetual adapter.
func NewFutures(reg *registry.Registry, opts *interfaces.Options, logger logging.Logger) *Adapter {
	return newAdapter(interfaces.Descriptor{
		ID:               IDFutures,
		Name:             "Bybit Futures",
		Aliases:          []string{"BYBITF"},
		RESTBaseURL:      restURL,
		WSBaseURL:        wsURL,
		Resolutions:      interfaces.AllResolutions(),
		MaxSearchResults: 30,
	}, reg, opts, logger, categoryLinear)
}

func newAdapter(desc interfaces.Descriptor, reg *registry.Registry, opts *interfaces.Options, logger logging.Logger, category string) *Adapter {
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
		category: category,
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

// GetBars implements interfaces.Adapter. Bybit returns rows newest-first;
// the fetch reverses them before normalization.
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

// SubscribeBars implements interfaces.Adapter. Bybit expects a subscribe
// request after dialing and an application-level ping every heartbeat, or
// it closes the connection.
func (a *Adapter) SubscribeBars(symbol, resolution string, onBar interfaces.BarHandler, subscriberID string) error {
	native, mapErr := interfaces.MapResolution(nativeIntervals, resolution)
	if mapErr != nil {
		a.logger.Warn("falling back to default interval", logging.Error(mapErr))
	}
	topic := fmt.Sprintf("kline.%s.%s", native, symbol)

	conn, err := stream.Dial(stream.Config{
		URL: a.desc.WSBaseURL + "/v5/public/" + a.category,
		Handshake: []interface{}{
			map[string]interface{}{"op": "subscribe", "args": []string{topic}},
		},
		PingMessage:       map[string]string{"op": "ping"},
		HeartbeatInterval: a.opts.WSHeartbeatInterval,
		ReconnectInterval: a.opts.WSReconnectInterval,
		MaxRetries:        5,
		Logger:            a.logger,
	}, func(message []byte) {
		bars, err := parseStreamMessage(message)
		if err != nil {
			a.logger.Warn("dropping malformed kline frame",
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
