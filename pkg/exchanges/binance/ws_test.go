package binance

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
	"github.com/veiloq/chart-datafeed/pkg/stream"
)

func TestParseStreamKline(t *testing.T) {
	frame := []byte(`{
		"e": "kline", "s": "BTCUSDT",
		"k": {
			"t": 1700000000000, "i": "1m",
			"o": "35000.1", "h": "35010.0", "l": "34980.0", "c": "35005.5",
			"v": "12.5", "x": false
		}
	}`)

	bar, err := parseStreamKline(frame)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), bar.Time)
	assert.Equal(t, 35000.1, bar.Open)
	assert.Equal(t, 35005.5, bar.Close)
	assert.Equal(t, 12.5, bar.Volume)
	assert.False(t, bar.Closed)
}

func TestParseStreamKlineRejectsOtherEvents(t *testing.T) {
	_, err := parseStreamKline([]byte(`{"e": "aggTrade", "s": "BTCUSDT"}`))
	assert.Error(t, err)

	_, err = parseStreamKline([]byte(`{"result": null, "id": 1}`))
	assert.Error(t, err, "subscription acks carry no kline event")

	_, err = parseStreamKline([]byte(`not json`))
	assert.Error(t, err)
}

func TestSubscribeBarsDeliversAndDisplaces(t *testing.T) {
	mock := stream.NewMockServer()
	defer mock.Close()

	opts := interfaces.NewOptions()
	opts.WSBaseURL = mock.URL()
	a := NewSpot(nil, opts, nil)
	defer a.Close()

	var received int64
	err := a.SubscribeBars("BTCUSDT", "1", func(bar interfaces.Bar) {
		atomic.AddInt64(&received, 1)
		assert.Equal(t, 35005.5, bar.Close)
	}, "chart-1")
	require.NoError(t, err)
	require.Equal(t, 1, a.Subscriptions())

	// Resubscribing under the same ID keeps exactly one live connection.
	err = a.SubscribeBars("BTCUSDT", "5", func(interfaces.Bar) {
		atomic.AddInt64(&received, 1)
	}, "chart-1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Subscriptions())

	deadline := time.Now().Add(2 * time.Second)
	for mock.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	mock.Broadcast([]byte(`{
		"e": "kline", "s": "BTCUSDT",
		"k": {"t": 1700000000000, "i": "5m", "o": "35000.1", "h": "35010.0",
		      "l": "34980.0", "c": "35005.5", "v": "12.5", "x": true}
	}`))

	deadline = time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&received) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Positive(t, atomic.LoadInt64(&received))

	// Malformed frames are dropped without killing the stream.
	mock.Broadcast([]byte(`{"result": null, "id": 1}`))

	a.UnsubscribeBars("chart-1")
	assert.Equal(t, 0, a.Subscriptions())
	a.UnsubscribeBars("chart-1") // idempotent
	assert.Equal(t, 0, a.Subscriptions())
}
