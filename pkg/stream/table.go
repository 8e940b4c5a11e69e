package stream

import (
	"io"
	"sync"
)

// Table maps subscriber IDs to their open streaming connections. Each
// adapter owns one Table, so subscribers on different adapters never
// contend. Put displaces (and closes) any prior connection under the same
// ID, which makes subscribe-then-resubscribe idempotent; Remove is a no-op
// for unknown IDs.
type Table struct {
	mu    sync.Mutex
	conns map[string]io.Closer
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{
		conns: make(map[string]io.Closer),
	}
}

// Put registers conn under id, closing any connection it displaces.
func (t *Table) Put(id string, conn io.Closer) {
	t.mu.Lock()
	prev := t.conns[id]
	t.conns[id] = conn
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Remove closes and forgets the connection under id, if any.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	conn := t.conns[id]
	delete(t.conns, id)
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Len returns the number of live connections.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// CloseAll closes every connection and empties the table.
func (t *Table) CloseAll() {
	t.mu.Lock()
	conns := t.conns
	t.conns = make(map[string]io.Closer)
	t.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
