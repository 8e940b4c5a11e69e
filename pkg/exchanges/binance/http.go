package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// maxKlineLimit is the row cap Binance enforces per klines request, shared
// by spot and futures.
const maxKlineLimit = 1000

func (a *Adapter) restPath(spotPath, futuresPath string) string {
	if a.futures {
		return a.desc.RESTBaseURL + futuresPath
	}
	return a.desc.RESTBaseURL + spotPath
}

// exchangeInfoResponse covers both /api/v3/exchangeInfo and
// /fapi/v1/exchangeInfo; futures-only fields are empty on spot.
type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		BaseAsset    string `json:"baseAsset"`
		QuoteAsset   string `json:"quoteAsset"`
		ContractType string `json:"contractType"`
	} `json:"symbols"`
}

// fetchInstruments lists the actively tradable instruments for this market,
// with the descriptor blacklist applied.
func (a *Adapter) fetchInstruments(ctx context.Context) ([]interfaces.SymbolRecord, error) {
	endpoint := a.restPath("/api/v3/exchangeInfo", "/fapi/v1/exchangeInfo")

	var info exchangeInfoResponse
	if err := a.http.GetJSON(ctx, endpoint, &info); err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	records := make([]interfaces.SymbolRecord, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		if a.futures && s.ContractType != "PERPETUAL" {
			continue
		}
		if blacklisted(a.desc.Blacklist, s.Symbol) {
			continue
		}
		records = append(records, interfaces.SymbolRecord{
			Symbol: s.Symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
		})
	}
	return records, nil
}

func blacklisted(patterns []string, symbol string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(symbol, p) {
			return true
		}
	}
	return false
}

// fetchKlines requests historical klines, paginating until the requested
// [fromMs, toMs] range is covered. Binance returns rows oldest-first.
func (a *Adapter) fetchKlines(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]interfaces.Bar, error) {
	var out []interfaces.Bar

	for {
		batch, err := a.fetchKlineBatch(ctx, symbol, interval, fromMs, toMs)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)

		// Fewer than the cap means the range is exhausted.
		if len(batch) < maxKlineLimit {
			break
		}

		fromMs = batch[len(batch)-1].Time + 1
		if fromMs > toMs {
			break
		}
	}
	return out, nil
}

func (a *Adapter) fetchKlineBatch(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]interfaces.Bar, error) {
	endpoint := a.restPath("/api/v3/klines", "/fapi/v1/klines")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("binance: parse url: %w", err)
	}

	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(fromMs, 10))
	q.Set("endTime", strconv.FormatInt(toMs, 10))
	q.Set("limit", strconv.Itoa(maxKlineLimit))
	u.RawQuery = q.Encode()

	// Each kline is a heterogeneous JSON array.
	var raw [][]json.RawMessage
	if err := a.http.GetJSON(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("binance: klines: %w", err)
	}
	return parseKlines(raw)
}

// parseKlines converts the raw Binance wire format into Bars.
//
// Binance kline array layout:
//
//	[0] open time (int64, Unix ms)
//	[1] open      (string)
//	[2] high      (string)
//	[3] low       (string)
//	[4] close     (string)
//	[5] volume    (string, base asset)
//	[6] close time (int64, Unix ms)
//	remaining fields unused
func parseKlines(raw [][]json.RawMessage) ([]interfaces.Bar, error) {
	out := make([]interfaces.Bar, 0, len(raw))
	for i, row := range raw {
		if len(row) < 7 {
			return nil, fmt.Errorf("binance: kline[%d] has %d fields, want at least 7", i, len(row))
		}

		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("binance: kline[%d] open time: %w", i, err)
		}

		bar := interfaces.Bar{Time: openTime, Closed: true}
		for j, dst := range []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			v, err := parseQuotedFloat(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("binance: kline[%d] field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		out = append(out, bar)
	}
	return out, nil
}

// parseQuotedFloat decodes a JSON string token holding a decimal number.
func parseQuotedFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// lastPrice fetches the most recent trade price for symbol.
func (a *Adapter) lastPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := a.restPath("/api/v3/ticker/price", "/fapi/v1/ticker/price")

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := a.http.GetJSON(ctx, endpoint+"?symbol="+url.QueryEscape(symbol), &ticker); err != nil {
		return 0, fmt.Errorf("binance: ticker price: %w", err)
	}
	return strconv.ParseFloat(ticker.Price, 64)
}
