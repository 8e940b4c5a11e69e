package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// newFixture serves canned Bybit v5 spot responses. Kline rows arrive
// newest-first, as the real venue sends them.
func newFixture(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		w.Write([]byte(`{
			"retCode": 0, "retMsg": "OK",
			"result": {"list": [
				{"symbol": "BTCUSDT", "status": "Trading", "baseCoin": "BTC", "quoteCoin": "USDT"},
				{"symbol": "ETHUSDT", "status": "Trading", "baseCoin": "ETH", "quoteCoin": "USDT"},
				{"symbol": "XYZUSDT", "status": "Closed", "baseCoin": "XYZ", "quoteCoin": "USDT"},
				{"symbol": "DOGE3LUSDT", "status": "Trading", "baseCoin": "DOGE3L", "quoteCoin": "USDT"}
			]}
		}`))
	})
	mux.HandleFunc("/v5/market/kline", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"retCode": 0, "retMsg": "OK",
			"result": {"list": [
				["1700000120000", "35010", "35030", "35000.5", "35020", "11.5", "402000"],
				["1700000060000", "35005", "35015", "34990", "35010", "10.2", "357000"],
				["1700000000000", "35000", "35010", "34980", "35005", "12.0", "420000"]
			]}
		}`))
	})
	mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"retCode": 0, "retMsg": "OK",
			"result": {"list": [{"symbol": "BTCUSDT", "lastPrice": "0.5"}]}
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestAdapter(t *testing.T, server *httptest.Server) *Adapter {
	t.Helper()
	opts := interfaces.NewOptions()
	opts.RESTBaseURL = server.URL
	a := NewSpot(nil, opts, nil)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCanHandle(t *testing.T) {
	spot := NewSpot(nil, nil, nil)
	futures := NewFutures(nil, nil, nil)

	assert.True(t, spot.CanHandle("BYBIT:BTCUSDT"))
	assert.True(t, spot.CanHandle("BYBITS:BTCUSDT"))
	assert.False(t, spot.CanHandle("BYBIT_FUTURES:BTCUSDT"))

	assert.True(t, futures.CanHandle("BYBIT_FUTURES:BTCUSDT"))
	assert.True(t, futures.CanHandle("BYBITF:BTCUSDT"))
	assert.False(t, futures.CanHandle("BYBIT:BTCUSDT"))
}

func TestFetchExchangeInfoFilters(t *testing.T) {
	a := newTestAdapter(t, newFixture(t))

	records := a.FetchExchangeInfo(context.Background())
	require.Len(t, records, 2, "closed instruments and leveraged tokens are excluded")
	assert.Equal(t, "BTCUSDT", records[0].Symbol)
	assert.Equal(t, "BTC", records[0].Base)
	assert.Equal(t, "USDT", records[0].Quote)
}

func TestFetchExchangeInfoAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 with a non-zero retCode is still a venue failure.
		w.Write([]byte(`{"retCode": 10001, "retMsg": "params error", "result": {}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	opts := interfaces.NewOptions()
	opts.RESTBaseURL = server.URL
	a := NewSpot(nil, opts, nil)
	defer a.Close()

	assert.Nil(t, a.FetchExchangeInfo(context.Background()))
}

func TestGetBarsReversesToAscending(t *testing.T) {
	a := newTestAdapter(t, newFixture(t))

	bars, err := a.GetBars(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(1700000000000), time.UnixMilli(1700000180000))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	// The newest-first wire order comes back chronological.
	assert.Equal(t, int64(1700000000000), bars[0].Time)
	assert.Equal(t, int64(1700000120000), bars[2].Time)
	assert.Equal(t, 35000.0, bars[0].Open)
	assert.True(t, bars[0].Closed)
}

func TestGetBarsPaginatesBackwardsAcrossRowCap(t *testing.T) {
	const (
		step  = int64(60_000)
		total = 2*maxKlineLimit + 50
		start = int64(1700000000000)
	)
	var requests int64

	// Serves newest-first pages bounded by the venue row cap, so the
	// backward end-cursor has to walk the window in several requests.
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/kline", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		q := r.URL.Query()
		from, err := strconv.ParseInt(q.Get("start"), 10, 64)
		require.NoError(t, err)
		end, err := strconv.ParseInt(q.Get("end"), 10, 64)
		require.NoError(t, err)

		fmt.Fprint(w, `{"retCode": 0, "retMsg": "OK", "result": {"list": [`)
		n := 0
		for ts := (end / step) * step; ts >= from && n < maxKlineLimit; ts -= step {
			if n > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `["%d", "1.0", "2.0", "0.5", "1.5", "10.0", "15.0"]`, ts)
			n++
		}
		fmt.Fprint(w, "]}}")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	opts := interfaces.NewOptions()
	opts.RESTBaseURL = server.URL
	a := NewSpot(nil, opts, nil)
	t.Cleanup(func() { a.Close() })

	bars, err := a.GetBars(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(start), time.UnixMilli(start+int64(total-1)*step))
	require.NoError(t, err)
	require.Len(t, bars, total)

	// 200 + 200 + 50 rows.
	assert.EqualValues(t, 3, atomic.LoadInt64(&requests))
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, start+int64(total-1)*step, bars[len(bars)-1].Time)
	for i := 1; i < len(bars); i++ {
		assert.Greater(t, bars[i].Time, bars[i-1].Time)
	}
}

func TestResolveSymbolUsesTickerPrecision(t *testing.T) {
	a := newTestAdapter(t, newFixture(t))

	resolved, err := a.ResolveSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BYBIT:BTCUSDT", resolved.FullName)
	assert.Equal(t, "BTC/USDT", resolved.Description)
	assert.Equal(t, 10_000, resolved.PriceScale, "lastPrice 0.5 needs four decimals")
	assert.Equal(t, 0.0001, resolved.TickSize)
}

func TestResolveSymbolNotFound(t *testing.T) {
	a := newTestAdapter(t, newFixture(t))

	_, err := a.ResolveSymbol(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, interfaces.ErrSymbolNotFound)
}

func TestParseStreamMessage(t *testing.T) {
	frame := []byte(`{
		"topic": "kline.1.BTCUSDT",
		"data": [{
			"start": 1700000000000,
			"interval": "1",
			"open": "35000", "high": "35010", "low": "34980", "close": "35005",
			"volume": "12.0",
			"confirm": true
		}]
	}`)

	bars, err := parseStreamMessage(frame)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int64(1700000000000), bars[0].Time)
	assert.Equal(t, 35005.0, bars[0].Close)
	assert.True(t, bars[0].Closed)
}

func TestParseStreamMessageControlFrames(t *testing.T) {
	// Pong and subscription acks carry no topic and must be ignored
	// without error.
	for _, frame := range []string{
		`{"op": "pong", "success": true}`,
		`{"op": "subscribe", "success": true, "conn_id": "abc"}`,
	} {
		bars, err := parseStreamMessage([]byte(frame))
		require.NoError(t, err, "frame %s", frame)
		assert.Empty(t, bars)
	}
}

func TestParseStreamMessageMalformed(t *testing.T) {
	_, err := parseStreamMessage([]byte(`{"topic": "kline.1.BTCUSDT", "data": [{"start": 1, "open": "not-a-number"}]}`))
	assert.Error(t, err)

	_, err = parseStreamMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseKlinesRowTooShort(t *testing.T) {
	_, err := parseKlines([][]string{{"1700000000000", "35000"}})
	assert.Error(t, err)
}
