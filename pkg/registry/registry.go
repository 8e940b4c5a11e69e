// Package registry holds the process-wide cache of discovered symbols, one
// entry per adapter. Entries are replaced wholesale: readers always observe
// either the previous complete list or the new one, never a partial state.
package registry

import (
	"sync"
	"time"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

type entry struct {
	records   []interfaces.SymbolRecord
	refreshed time.Time
}

// Registry stores the last successfully fetched SymbolRecord list per
// adapter ID. The zero value is not usable; call New. Safe for concurrent
// use; entries for different adapters never contend beyond the shared map
// lock held only for the map operation itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Replace atomically swaps the record list for adapterID. The slice is
// stored as-is and treated as immutable from then on; callers must not
// mutate it afterwards. Last write wins for concurrent refreshes.
func (r *Registry) Replace(adapterID string, records []interfaces.SymbolRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[adapterID] = entry{
		records:   records,
		refreshed: time.Now(),
	}
}

// Records returns the cached list for adapterID, or nil when the adapter
// has never completed a refresh. The returned slice must not be mutated.
func (r *Registry) Records(adapterID string) []interfaces.SymbolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[adapterID].records
}

// Lookup finds the record for a venue symbol under adapterID.
func (r *Registry) Lookup(adapterID, symbol string) (interfaces.SymbolRecord, bool) {
	for _, rec := range r.Records(adapterID) {
		if rec.Symbol == symbol {
			return rec, true
		}
	}
	return interfaces.SymbolRecord{}, false
}

// Fresh reports whether adapterID has an entry refreshed within window. A
// non-positive window always reports false, forcing a refetch.
func (r *Registry) Fresh(adapterID string, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[adapterID]
	return ok && time.Since(e.refreshed) < window
}

// Age returns how long ago adapterID's entry was refreshed, or a negative
// duration when the adapter has never completed a refresh.
func (r *Registry) Age(adapterID string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[adapterID]
	if !ok {
		return -1
	}
	return time.Since(e.refreshed)
}

// Len returns the number of cached records for adapterID.
func (r *Registry) Len(adapterID string) int {
	return len(r.Records(adapterID))
}
