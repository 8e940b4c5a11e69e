// Package interfaces defines the contract every exchange adapter must
// satisfy, together with the canonical data model shared by the datafeed
// manager and the venue implementations.
//
// An adapter translates one venue's REST and WebSocket protocol into this
// model: it discovers tradable instruments, searches and resolves symbols,
// fetches historical bars, and streams live bars to a handler. The manager
// in pkg/datafeed routes every symbol-bearing request to the adapter whose
// prefix matches, so implementations never see symbols that belong to
// another venue.
//
// Implementations should handle:
//   - Rate limiting according to exchange requirements
//   - Reconnection logic for streaming connections
//   - Normalization of venue payloads into Bars and SymbolRecords
//   - Absorbing transient transport errors into empty results
package interfaces

import (
	"context"
	"time"
)

// Adapter is the uniform contract implemented once per venue/market-type
// pair (e.g. Binance spot and Binance perpetual futures are two adapters).
type Adapter interface {
	// Descriptor returns the adapter's immutable configuration. No I/O.
	Descriptor() Descriptor

	// CanHandle reports whether a qualified symbol name ("BYBIT:BTCUSDT")
	// belongs to this adapter, by exact match of the prefix against the
	// adapter ID or one of its aliases. It is total: malformed input
	// returns false, it never panics.
	CanHandle(qualified string) bool

	// FetchExchangeInfo discovers the venue's actively tradable
	// instruments, applies the descriptor blacklist, stores the result in
	// the registry and returns it. Transport or parse failures are logged
	// and yield an empty slice so one venue outage never blocks others;
	// the previously cached records stay available. Repeated calls inside
	// the freshness window return the cached records without I/O.
	FetchExchangeInfo(ctx context.Context) []SymbolRecord

	// SearchSymbols filters the cached records by case-insensitive
	// substring match on symbol or base asset and returns them ranked,
	// truncated to the descriptor's MaxSearchResults. An empty query
	// returns the full cached set (truncated). Never fails: an empty or
	// unrefreshed cache yields an empty result.
	SearchSymbols(query string) []RankedSymbol

	// ResolveSymbol resolves a venue symbol (without adapter prefix) into
	// its full chart description. Returns ErrSymbolNotFound when the venue
	// has no such instrument. A failing live-price lookup degrades the
	// price scale to symbols.DefaultPriceScale instead of failing.
	ResolveSymbol(ctx context.Context, symbol string) (*ResolvedSymbol, error)

	// GetBars fetches historical bars for [from, to] at the canonical
	// resolution, in strictly ascending open-time order. Unknown
	// resolution codes fall back to the 15-minute native interval. An
	// empty range or a venue outage yields an empty slice, not an error;
	// only context cancellation is returned.
	GetBars(ctx context.Context, symbol, resolution string, from, to time.Time) ([]Bar, error)

	// SubscribeBars opens one streaming connection delivering live bars
	// for symbol/resolution to onBar, registered under subscriberID. A
	// prior subscription with the same ID is closed first, so exactly one
	// connection per subscriber ever exists. Malformed inbound frames are
	// logged and skipped.
	SubscribeBars(symbol, resolution string, onBar BarHandler, subscriberID string) error

	// UnsubscribeBars closes and forgets the connection registered under
	// subscriberID. Unknown IDs are a no-op.
	UnsubscribeBars(subscriberID string)

	// Close tears down every open subscription.
	Close() error
}

// BarHandler receives live bar updates. The bar may represent a still-forming
// candle; Closed marks the final update for its open time.
type BarHandler func(bar Bar)

// Descriptor is the immutable per-adapter configuration, created at
// construction and never mutated afterwards.
type Descriptor struct {
	// ID is the adapter identifier used as the qualified-name prefix,
	// e.g. "BINANCE_FUTURES".
	ID string

	// Name is the human-readable venue label shown in the chart UI.
	Name string

	// Aliases are alternative qualified-name prefixes recognized by
	// CanHandle, e.g. "BYBITF" for "BYBIT_FUTURES".
	Aliases []string

	// RESTBaseURL and WSBaseURL are the venue endpoints.
	RESTBaseURL string
	WSBaseURL   string

	// Resolutions is the ordered set of canonical resolution codes this
	// adapter supports.
	Resolutions []string

	// Blacklist contains substrings that exclude an instrument from
	// discovery (e.g. "UP"/"DOWN" leveraged tokens).
	Blacklist []string

	// MaxSearchResults caps SearchSymbols output.
	MaxSearchResults int
}

// SymbolRecord is one tradable instrument as known to one adapter. Records
// are owned by the registry entry for their adapter and replaced wholesale
// on each refresh.
type SymbolRecord struct {
	// Symbol is the raw venue symbol in the form used by REST and
	// WebSocket requests after normalization, e.g. "BTCUSDT".
	Symbol string

	// Base and Quote are the instrument's assets.
	Base  string
	Quote string

	// NativeID is the venue-native identifier when it differs from
	// Symbol, e.g. OKX's dash-separated "BTC-USDT-SWAP". Empty when the
	// venue uses Symbol directly.
	NativeID string
}

// Native returns the identifier to use in venue requests.
func (r SymbolRecord) Native() string {
	if r.NativeID != "" {
		return r.NativeID
	}
	return r.Symbol
}

// RankedSymbol is one search result with its relevance score.
type RankedSymbol struct {
	SymbolRecord

	// FullName is the qualified name "{ADAPTER}:{SYMBOL}".
	FullName string

	// Exchange is the adapter's display name.
	Exchange string

	// Score is the ranking weight; higher sorts first.
	Score int
}

// ResolvedSymbol is the canonical, adapter-agnostic symbol description
// returned to the charting front-end. It is derived on demand from a
// SymbolRecord plus a live price lookup and never cached, because the
// price-derived scale can change.
type ResolvedSymbol struct {
	// Name is the venue symbol, FullName the qualified name.
	Name     string
	FullName string

	// Description is the human-readable pair, e.g. "BTC/USDT".
	Description string

	// Exchange is the venue label, Type the instrument taxonomy entry.
	Exchange string
	Type     string

	// Timezone and Session are fixed for crypto venues: UTC and 24x7.
	Timezone string
	Session  string

	// PriceScale is a power of ten giving the display precision; MinMove
	// the smallest price increment in scale units. TickSize is the same
	// increment in absolute price terms (MinMove / PriceScale).
	PriceScale int
	MinMove    int
	TickSize   float64

	// Resolutions lists the canonical resolution codes the owning adapter
	// supports.
	Resolutions []string

	// VolumePrecision is the number of decimals for displayed volume.
	VolumePrecision int
}

// Bar is one OHLCV candle. Time is the candle open time in milliseconds
// since the Unix epoch. A sequence of bars for one symbol and resolution is
// strictly increasing in Time with no duplicates.
type Bar struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Closed reports whether the candle is final. Historical bars are
	// always closed; streamed bars flip to true on the last update for
	// their open time.
	Closed bool
}

// Options carries the construction-time configuration shared by all venue
// adapters.
type Options struct {
	// HTTPTimeout bounds every REST call.
	HTTPTimeout time.Duration

	// MaxRequestsPerSecond paces REST calls to the venue.
	MaxRequestsPerSecond int

	// WSReconnectInterval is the base delay between stream reconnection
	// attempts; WSHeartbeatInterval the keep-alive ping period.
	WSReconnectInterval time.Duration
	WSHeartbeatInterval time.Duration

	// FreshnessWindow is how long a discovery result stays fresh; a
	// FetchExchangeInfo call inside the window is served from cache.
	FreshnessWindow time.Duration

	// RESTBaseURL and WSBaseURL override the venue defaults, mainly for
	// tests pointed at local fixtures.
	RESTBaseURL string
	WSBaseURL   string
}

// NewOptions returns the default adapter options.
//
// Defaults: 15s HTTP timeout, 10 requests/second, 5s reconnect interval,
// 20s heartbeat, 10 minute discovery freshness window.
func NewOptions() *Options {
	return &Options{
		HTTPTimeout:          15 * time.Second,
		MaxRequestsPerSecond: 10,
		WSReconnectInterval:  5 * time.Second,
		WSHeartbeatInterval:  20 * time.Second,
		FreshnessWindow:      10 * time.Minute,
	}
}
