package okx

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

// newSwapFixture serves canned OKX swap responses. Candle rows arrive
// newest-first with a string confirm flag, as the real venue sends them.
func newSwapFixture(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		w.Write([]byte(`{
			"code": "0", "msg": "",
			"data": [
				{"instId": "BTC-USDT-SWAP", "state": "live", "uly": "BTC-USDT", "ctType": "linear", "settleCcy": "USDT"},
				{"instId": "BTC-USD-SWAP", "state": "live", "uly": "BTC-USD", "ctType": "inverse", "settleCcy": "BTC"},
				{"instId": "XYZ-USDT-SWAP", "state": "suspend", "uly": "XYZ-USDT", "ctType": "linear", "settleCcy": "USDT"}
			]
		}`))
	})
	mux.HandleFunc("/api/v5/market/candles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		w.Write([]byte(`{
			"code": "0", "msg": "",
			"data": [
				["1700000120000", "35010", "35030", "35000.5", "35020", "11.5", "0", "0", "0"],
				["1700000060000", "35005", "35015", "34990", "35010", "10.2", "0", "0", "1"],
				["1700000000000", "35000", "35010", "34980", "35005", "12.0", "0", "0", "1"]
			]
		}`))
	})
	mux.HandleFunc("/api/v5/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"code": "0", "msg": "",
			"data": [{"instId": "BTC-USDT-SWAP", "last": "35020.5"}]
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSwapAdapter(t *testing.T, server *httptest.Server) *Adapter {
	t.Helper()
	opts := interfaces.NewOptions()
	opts.RESTBaseURL = server.URL
	a := NewSwap(nil, opts, nil)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCanHandle(t *testing.T) {
	spot := NewSpot(nil, nil, nil)
	swap := NewSwap(nil, nil, nil)

	assert.True(t, spot.CanHandle("OKX:BTCUSDT"))
	assert.True(t, spot.CanHandle("OKEX:BTCUSDT"), "legacy prefix stays routable")
	assert.False(t, spot.CanHandle("OKX_SWAP:BTCUSDT"))

	assert.True(t, swap.CanHandle("OKX_SWAP:BTCUSDT"))
	assert.True(t, swap.CanHandle("OKXF:BTCUSDT"))
	assert.False(t, swap.CanHandle("OKX:BTCUSDT"))
}

func TestFetchExchangeInfoKeepsInstID(t *testing.T) {
	a := newTestSwapAdapter(t, newSwapFixture(t))

	records := a.FetchExchangeInfo(context.Background())
	require.Len(t, records, 1, "inverse and suspended contracts are excluded")

	// The chart symbol is the concatenated pair; the dash-separated
	// instId survives on the record for venue requests.
	assert.Equal(t, "BTCUSDT", records[0].Symbol)
	assert.Equal(t, "BTC", records[0].Base)
	assert.Equal(t, "USDT", records[0].Quote)
	assert.Equal(t, "BTC-USDT-SWAP", records[0].NativeID)
	assert.Equal(t, "BTC-USDT-SWAP", records[0].Native())
}

func TestGetBarsUsesInstIDAndReverses(t *testing.T) {
	a := newTestSwapAdapter(t, newSwapFixture(t))
	a.FetchExchangeInfo(context.Background())

	bars, err := a.GetBars(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(1700000000000), time.UnixMilli(1700000180000))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, int64(1700000000000), bars[0].Time)
	assert.Equal(t, int64(1700000120000), bars[2].Time)
	assert.True(t, bars[0].Closed)
	assert.False(t, bars[2].Closed, "confirm \"0\" marks a forming candle")
}

func TestGetBarsPaginatesWithAfterCursor(t *testing.T) {
	const (
		step  = int64(60_000)
		total = 2*maxKlineLimit + 150
		start = int64(1700000000000)
	)
	var requests int64

	// Serves full newest-first pages strictly before the after cursor,
	// with history extending past the requested window; the fetch must
	// stop once it crosses below the lower bound.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/market/candles", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		require.NoError(t, err)

		fmt.Fprint(w, `{"code": "0", "msg": "", "data": [`)
		ts := ((after - 1) / step) * step
		for n := 0; n < maxKlineLimit; n++ {
			if n > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `["%d", "1.0", "2.0", "0.5", "1.5", "10.0", "0", "0", "1"]`, ts)
			ts -= step
		}
		fmt.Fprint(w, "]}")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	opts := interfaces.NewOptions()
	opts.RESTBaseURL = server.URL
	a := NewSwap(nil, opts, nil)
	t.Cleanup(func() { a.Close() })

	// A cold registry passes the chart symbol through as the instId.
	bars, err := a.GetBars(context.Background(), "BTC-USDT-SWAP", "1",
		time.UnixMilli(start), time.UnixMilli(start+int64(total-1)*step))
	require.NoError(t, err)
	require.Len(t, bars, total)

	// 300 + 300 + 150 rows kept from three full pages.
	assert.EqualValues(t, 3, atomic.LoadInt64(&requests))
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, start+int64(total-1)*step, bars[len(bars)-1].Time)
	for i := 1; i < len(bars); i++ {
		assert.Greater(t, bars[i].Time, bars[i-1].Time)
	}
}

func TestResolveSymbol(t *testing.T) {
	a := newTestSwapAdapter(t, newSwapFixture(t))

	resolved, err := a.ResolveSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", resolved.Name)
	assert.Equal(t, "OKX_SWAP:BTCUSDT", resolved.FullName)
	assert.Equal(t, "BTC/USDT", resolved.Description)
	assert.Equal(t, 100, resolved.PriceScale)
	assert.Equal(t, 0.01, resolved.TickSize)
}

func TestResolveSymbolNotFound(t *testing.T) {
	a := newTestSwapAdapter(t, newSwapFixture(t))

	_, err := a.ResolveSymbol(context.Background(), "DOGEUSDT")
	assert.ErrorIs(t, err, interfaces.ErrSymbolNotFound)
}

func TestSplitUnderlying(t *testing.T) {
	base, quote := splitUnderlying("BTC-USDT")
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	base, quote = splitUnderlying("malformed")
	assert.Empty(t, base)
	assert.Empty(t, quote)
}

func TestParseStreamMessage(t *testing.T) {
	frame := []byte(`{
		"arg": {"channel": "candle1m", "instId": "BTC-USDT-SWAP"},
		"data": [["1700000000000", "35000", "35010", "34980", "35005", "12.0", "0", "0", "1"]]
	}`)

	bars, err := parseStreamMessage(frame)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int64(1700000000000), bars[0].Time)
	assert.Equal(t, 35005.0, bars[0].Close)
	assert.True(t, bars[0].Closed)
}

func TestParseStreamMessageControlFrames(t *testing.T) {
	for _, frame := range []string{
		"pong",
		` pong `,
		`{"event": "subscribe", "arg": {"channel": "candle1m", "instId": "BTC-USDT-SWAP"}}`,
		`{"event": "error", "code": "60012", "msg": "invalid request"}`,
		`{"arg": {"channel": "tickers", "instId": "BTC-USDT-SWAP"}, "data": []}`,
	} {
		bars, err := parseStreamMessage([]byte(frame))
		require.NoError(t, err, "frame %q", frame)
		assert.Empty(t, bars)
	}
}

func TestParseKlinesConfirmFlag(t *testing.T) {
	// A short row without the confirm column parses as a forming candle.
	bars, err := parseKlines([][]string{{"1700000000000", "1", "2", "0.5", "1.5", "10"}})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.False(t, bars[0].Closed)

	_, err = parseKlines([][]string{{"1700000000000", "1"}})
	assert.Error(t, err)
}
