// Package datafeed provides the Manager, the single object a charting
// front-end talks to. The Manager owns the symbol registry, holds the
// ordered set of registered exchange adapters (one marked default), routes
// every symbol-bearing request to the adapter whose prefix matches, and
// aggregates search results across adapters.
package datafeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
	"github.com/veiloq/chart-datafeed/pkg/logging"
	"github.com/veiloq/chart-datafeed/pkg/registry"
	"github.com/veiloq/chart-datafeed/pkg/symbols"
)

// Manager states. Routing methods work in every state: before readiness
// adapters simply answer from an empty registry.
const (
	stateUninitialized int32 = iota
	stateInitializing
	stateReady
)

// Capabilities is the static metadata handed to the front-end before any
// symbol request.
type Capabilities struct {
	// Resolutions lists the canonical resolution codes, Exchanges the
	// registered venue labels, SymbolTypes the instrument taxonomy.
	Resolutions []string
	Exchanges   []string
	SymbolTypes []string

	// Marks and timescale marks are not served by this datafeed; server
	// time is.
	SupportsMarks          bool
	SupportsTimescaleMarks bool
	SupportsTime           bool
}

// HistoryResult is the outcome of a history request. NoData distinguishes
// "venue has nothing for this range" from an error.
type HistoryResult struct {
	Bars   []interfaces.Bar
	NoData bool
}

// Manager routes front-end requests to the matching adapter.
type Manager struct {
	mu             sync.RWMutex
	adapters       []interfaces.Adapter
	defaultAdapter interfaces.Adapter
	closed         bool

	state  int32
	reg    *registry.Registry
	logger logging.Logger
}

// NewManager creates a manager owning a fresh registry. Pass the returned
// manager's Registry to every adapter constructor so all discovery results
// land in one place.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{
		reg:    registry.New(),
		logger: logger,
	}
}

// Registry exposes the symbol registry for adapter construction.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// Register appends an adapter to the routing order. The adapter marked
// default receives requests whose symbol carries no recognizable prefix;
// marking a second default replaces the first.
func (m *Manager) Register(adapter interfaces.Adapter, isDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adapters = append(m.adapters, adapter)
	if isDefault || m.defaultAdapter == nil {
		m.defaultAdapter = adapter
	}
	m.logger.Info("adapter registered",
		logging.String("adapter", adapter.Descriptor().ID),
		logging.Bool("default", isDefault),
	)
}

// Initialize triggers symbol discovery on every registered adapter
// concurrently. Adapters share no mutable state, so the fan-out needs no
// ordering. Partial availability is success: a venue outage leaves that
// adapter's registry entry empty (or stale) without failing the others.
func (m *Manager) Initialize(ctx context.Context) {
	atomic.StoreInt32(&m.state, stateInitializing)

	var wg sync.WaitGroup
	for _, adapter := range m.snapshot() {
		wg.Add(1)
		go func(a interfaces.Adapter) {
			defer wg.Done()
			a.FetchExchangeInfo(ctx)
		}(adapter)
	}
	wg.Wait()

	atomic.StoreInt32(&m.state, stateReady)
	m.logger.Info("datafeed initialized", logging.Int("adapters", len(m.snapshot())))
}

// Ready reports whether Initialize has completed at least once.
func (m *Manager) Ready() bool {
	return atomic.LoadInt32(&m.state) == stateReady
}

// Capabilities returns the static capability metadata.
func (m *Manager) Capabilities() Capabilities {
	exchanges := make([]string, 0)
	for _, adapter := range m.snapshot() {
		exchanges = append(exchanges, adapter.Descriptor().Name)
	}
	return Capabilities{
		Resolutions:  interfaces.AllResolutions(),
		Exchanges:    exchanges,
		SymbolTypes:  []string{"crypto"},
		SupportsTime: true,
	}
}

// OnReady delivers the capability metadata to the front-end callback.
func (m *Manager) OnReady(callback func(Capabilities)) {
	callback(m.Capabilities())
}

// ServerTime returns the datafeed's notion of current time, in UTC.
func (m *Manager) ServerTime() time.Time {
	return time.Now().UTC()
}

// SearchSymbols fans the query out to every adapter and concatenates the
// per-adapter ranked results in registration order; adapters are not
// re-ranked against each other. exchangeFilter narrows to adapters whose ID
// or display name matches; symbolType other than "crypto" yields nothing.
func (m *Manager) SearchSymbols(ctx context.Context, query, exchangeFilter, symbolType string) []interfaces.RankedSymbol {
	if m.isClosed() || ctx.Err() != nil {
		return nil
	}
	if symbolType != "" && symbolType != "crypto" {
		return nil
	}

	var results []interfaces.RankedSymbol
	for _, adapter := range m.snapshot() {
		d := adapter.Descriptor()
		if exchangeFilter != "" && exchangeFilter != d.ID && exchangeFilter != d.Name {
			continue
		}
		results = append(results, adapter.SearchSymbols(query)...)
	}
	return results
}

// ResolveSymbol resolves a qualified name through the matching adapter,
// falling back to the default adapter for unprefixed names. A missing
// instrument surfaces as interfaces.ErrSymbolNotFound; no other adapter's
// state is touched.
func (m *Manager) ResolveSymbol(ctx context.Context, qualified string) (*interfaces.ResolvedSymbol, error) {
	adapter, symbol, err := m.route(qualified)
	if err != nil {
		return nil, err
	}
	return adapter.ResolveSymbol(ctx, symbol)
}

// History fetches bars for a qualified name. An empty result reports
// NoData so the chart shows its explicit empty state instead of an error.
func (m *Manager) History(ctx context.Context, qualified, resolution string, from, to time.Time) (HistoryResult, error) {
	adapter, symbol, err := m.route(qualified)
	if err != nil {
		return HistoryResult{NoData: true}, err
	}

	bars, err := adapter.GetBars(ctx, symbol, resolution, from, to)
	if err != nil {
		return HistoryResult{NoData: true}, err
	}
	return HistoryResult{Bars: bars, NoData: len(bars) == 0}, nil
}

// SubscribeBars opens a live bar subscription through the matching
// adapter, registered under subscriberID.
func (m *Manager) SubscribeBars(qualified, resolution string, onBar interfaces.BarHandler, subscriberID string) error {
	adapter, symbol, err := m.route(qualified)
	if err != nil {
		return err
	}
	return adapter.SubscribeBars(symbol, resolution, onBar, subscriberID)
}

// UnsubscribeBars cancels the subscription registered under subscriberID.
// The subscriber ID does not encode its adapter, so the call fans out to
// every adapter; unknown IDs are a no-op everywhere, which makes repeated
// calls safe from any goroutine.
func (m *Manager) UnsubscribeBars(subscriberID string) {
	for _, adapter := range m.snapshot() {
		adapter.UnsubscribeBars(subscriberID)
	}
}

// Close tears down every adapter's open subscriptions. Requests after
// Close fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	adapters := make([]interfaces.Adapter, len(m.adapters))
	copy(adapters, m.adapters)
	m.mu.Unlock()

	for _, adapter := range adapters {
		adapter.Close()
	}
	return nil
}

// route finds the adapter responsible for a qualified name: the first
// adapter whose CanHandle accepts it, else the default adapter. The venue
// symbol (the part after the prefix) is returned alongside.
func (m *Manager) route(qualified string) (interfaces.Adapter, string, error) {
	if m.isClosed() {
		return nil, "", interfaces.ErrManagerClosed
	}

	_, symbol := symbols.SplitQualified(qualified)
	for _, adapter := range m.snapshot() {
		if adapter.CanHandle(qualified) {
			return adapter, symbol, nil
		}
	}

	m.mu.RLock()
	def := m.defaultAdapter
	m.mu.RUnlock()
	if def == nil {
		return nil, "", interfaces.ErrNoAdapter
	}
	return def, symbol, nil
}

func (m *Manager) snapshot() []interfaces.Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interfaces.Adapter, len(m.adapters))
	copy(out, m.adapters)
	return out
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
