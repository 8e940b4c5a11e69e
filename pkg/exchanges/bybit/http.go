package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// maxKlineLimit is the row cap Bybit enforces per kline request.
const maxKlineLimit = 200

// v5Envelope is the Bybit v5 response wrapper.
type v5Envelope struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

// fetchInstruments lists the category's tradable instruments with the
// descriptor blacklist applied.
func (a *Adapter) fetchInstruments(ctx context.Context) ([]interfaces.SymbolRecord, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/v5/market/instruments-info")
	if err != nil {
		return nil, fmt.Errorf("bybit: parse url: %w", err)
	}
	q := u.Query()
	q.Set("category", a.category)
	q.Set("limit", "1000")
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Result struct {
			List []struct {
				Symbol       string `json:"symbol"`
				Status       string `json:"status"`
				BaseCoin     string `json:"baseCoin"`
				QuoteCoin    string `json:"quoteCoin"`
				ContractType string `json:"contractType"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("bybit: instruments: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit: api error %d: %s", resp.RetCode, resp.RetMsg)
	}

	records := make([]interfaces.SymbolRecord, 0, len(resp.Result.List))
	for _, s := range resp.Result.List {
		if s.Status != "Trading" {
			continue
		}
		if a.category == categoryLinear && s.ContractType != "LinearPerpetual" {
			continue
		}
		if blacklisted(a.desc.Blacklist, s.Symbol) {
			continue
		}
		records = append(records, interfaces.SymbolRecord{
			Symbol: s.Symbol,
			Base:   s.BaseCoin,
			Quote:  s.QuoteCoin,
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

// fetchKlines pages backwards through the kline endpoint until [fromMs,
// toMs] is covered. Bybit returns rows newest-first; the result is reversed
// to chronological order before returning.
func (a *Adapter) fetchKlines(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]interfaces.Bar, error) {
	var all []interfaces.Bar
	end := toMs

	for {
		batch, err := a.fetchKlineBatch(ctx, symbol, interval, fromMs, end)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		if len(batch) < maxKlineLimit {
			break
		}

		// Newest-first rows: the oldest open time so far is the last entry.
		end = all[len(all)-1].Time - 1
		if end < fromMs {
			break
		}
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (a *Adapter) fetchKlineBatch(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]interfaces.Bar, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/v5/market/kline")
	if err != nil {
		return nil, fmt.Errorf("bybit: parse url: %w", err)
	}
	q := u.Query()
	q.Set("category", a.category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", strconv.FormatInt(fromMs, 10))
	q.Set("end", strconv.FormatInt(toMs, 10))
	q.Set("limit", strconv.Itoa(maxKlineLimit))
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("bybit: klines: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit: api error %d: %s", resp.RetCode, resp.RetMsg)
	}
	return parseKlines(resp.Result.List)
}

// parseKlines converts the Bybit wire format into Bars.
//
// Bybit kline row layout:
//
//	[0] start time (ms, string)
//	[1] open  [2] high  [3] low  [4] close
//	[5] volume (base coin)
//	[6] turnover — unused
func parseKlines(rows [][]string) ([]interfaces.Bar, error) {
	out := make([]interfaces.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("bybit: kline[%d] has %d fields, want at least 6", i, len(row))
		}

		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline[%d] start time: %w", i, err)
		}

		bar := interfaces.Bar{Time: openTime, Closed: true}
		for j, dst := range []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bybit: kline[%d] field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		out = append(out, bar)
	}
	return out, nil
}

// lastPrice fetches the latest trade price via the tickers endpoint.
func (a *Adapter) lastPrice(ctx context.Context, symbol string) (float64, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/v5/market/tickers")
	if err != nil {
		return 0, fmt.Errorf("bybit: parse url: %w", err)
	}
	q := u.Query()
	q.Set("category", a.category)
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Result struct {
			List []struct {
				Symbol    string `json:"symbol"`
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return 0, fmt.Errorf("bybit: tickers: %w", err)
	}
	if resp.RetCode != 0 {
		return 0, fmt.Errorf("bybit: api error %d: %s", resp.RetCode, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return 0, fmt.Errorf("bybit: no ticker for %s", symbol)
	}
	return strconv.ParseFloat(resp.Result.List[0].LastPrice, 64)
}
