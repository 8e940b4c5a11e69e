package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process WebSocket endpoint for tests: it records every
// message clients send (handshakes, pings) and can broadcast frames to all
// connected clients to simulate venue pushes.
type MockServer struct {
	server *httptest.Server
	url    string

	mu            sync.RWMutex
	connections   map[*websocket.Conn]bool
	messageBuffer [][]byte
	onMessage     func(*websocket.Conn, []byte)

	rejectConnections bool
	dropConnections   bool
}

// NewMockServer starts a mock server; callers must Close it.
func NewMockServer() *MockServer {
	m := &MockServer{
		connections: make(map[*websocket.Conn]bool),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handleConnection))
	m.url = "ws" + strings.TrimPrefix(m.server.URL, "http")
	return m
}

// URL returns the ws:// endpoint of the server.
func (m *MockServer) URL() string { return m.url }

// Close shuts the server down.
func (m *MockServer) Close() { m.server.Close() }

// SetRejectConnections makes the server refuse new upgrades.
func (m *MockServer) SetRejectConnections(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnections = reject
}

// SetDropConnections makes the server drop clients after the next frame.
func (m *MockServer) SetDropConnections(drop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropConnections = drop
}

// OnMessage registers a callback invoked for every inbound text frame.
func (m *MockServer) OnMessage(callback func(*websocket.Conn, []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = callback
}

// Broadcast sends a text frame to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for conn := range m.connections {
		conn.WriteMessage(websocket.TextMessage, message)
	}
}

// ConnectionCount reports the number of currently connected clients.
func (m *MockServer) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Messages returns a copy of every frame received so far.
func (m *MockServer) Messages() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.messageBuffer))
	copy(out, m.messageBuffer)
	return out
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	reject := m.rejectConnections
	m.mu.RUnlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		m.mu.RLock()
		drop := m.dropConnections
		onMessage := m.onMessage
		m.mu.RUnlock()
		if drop {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		m.mu.Lock()
		m.messageBuffer = append(m.messageBuffer, message)
		m.mu.Unlock()

		if onMessage != nil {
			onMessage(conn, message)
		}
	}
}

// setupMockServer is the shared test helper for this package.
func setupMockServer(t *testing.T) *MockServer {
	t.Helper()
	mock := NewMockServer()
	t.Cleanup(mock.Close)
	return mock
}
