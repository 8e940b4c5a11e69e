package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCloser struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeCloser) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeCloser) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestTablePutAndRemove(t *testing.T) {
	table := NewTable()
	conn := &fakeCloser{}

	table.Put("sub-1", conn)
	assert.Equal(t, 1, table.Len())

	table.Remove("sub-1")
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 1, conn.closeCount())
}

func TestTablePutDisplacesPrior(t *testing.T) {
	table := NewTable()
	first := &fakeCloser{}
	second := &fakeCloser{}

	table.Put("sub-1", first)
	table.Put("sub-1", second)

	// Resubscribing under the same ID closes the old connection and
	// keeps exactly one live entry.
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, first.closeCount())
	assert.Equal(t, 0, second.closeCount())
}

func TestTableRemoveUnknownIsNoop(t *testing.T) {
	table := NewTable()
	table.Remove("never-seen")
	assert.Equal(t, 0, table.Len())

	// Double remove is equally harmless.
	conn := &fakeCloser{}
	table.Put("sub-1", conn)
	table.Remove("sub-1")
	table.Remove("sub-1")
	assert.Equal(t, 1, conn.closeCount())
}

func TestTableCloseAll(t *testing.T) {
	table := NewTable()
	conns := []*fakeCloser{{}, {}, {}}
	for i, conn := range conns {
		table.Put(string(rune('a'+i)), conn)
	}

	table.CloseAll()
	assert.Equal(t, 0, table.Len())
	for _, conn := range conns {
		assert.Equal(t, 1, conn.closeCount())
	}

	// The table stays usable after CloseAll.
	table.Put("sub-x", &fakeCloser{})
	assert.Equal(t, 1, table.Len())
}
