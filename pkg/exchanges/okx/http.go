package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// maxKlineLimit is the row cap OKX enforces on /api/v5/market/candles.
const maxKlineLimit = 300

// v5Envelope is the OKX response wrapper; code "0" means success.
type v5Envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// fetchInstruments lists live instruments for this instType. The chart
// symbol is the concatenated base+quote; the dash-separated instId stays on
// the record for venue requests.
func (a *Adapter) fetchInstruments(ctx context.Context) ([]interfaces.SymbolRecord, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/api/v5/public/instruments")
	if err != nil {
		return nil, fmt.Errorf("okx: parse url: %w", err)
	}
	q := u.Query()
	q.Set("instType", a.instType)
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Data []struct {
			InstID    string `json:"instId"`
			State     string `json:"state"`
			BaseCcy   string `json:"baseCcy"`   // spot only
			QuoteCcy  string `json:"quoteCcy"`  // spot only
			Uly       string `json:"uly"`       // swap underlying, "BTC-USDT"
			SettleCcy string `json:"settleCcy"` // swap only
			CtType    string `json:"ctType"`    // "linear" | "inverse"
		} `json:"data"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("okx: instruments: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", resp.Code, resp.Msg)
	}

	records := make([]interfaces.SymbolRecord, 0, len(resp.Data))
	for _, inst := range resp.Data {
		if inst.State != "live" {
			continue
		}

		base, quote := inst.BaseCcy, inst.QuoteCcy
		if a.instType == instTypeSwap {
			if inst.CtType != "linear" {
				continue
			}
			base, quote = splitUnderlying(inst.Uly)
			if base == "" {
				continue
			}
		}

		symbol := base + quote
		if blacklisted(a.desc.Blacklist, symbol) {
			continue
		}
		records = append(records, interfaces.SymbolRecord{
			Symbol:   symbol,
			Base:     base,
			Quote:    quote,
			NativeID: inst.InstID,
		})
	}
	return records, nil
}

// splitUnderlying splits an OKX underlying like "BTC-USDT" into its assets.
func splitUnderlying(uly string) (base, quote string) {
	parts := strings.SplitN(uly, "-", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func blacklisted(patterns []string, symbol string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(symbol, p) {
			return true
		}
	}
	return false
}

// fetchKlines pages backwards through the candles endpoint using the
// "after" cursor (rows with ts strictly before it) until [fromMs, toMs] is
// covered, then reverses to chronological order.
func (a *Adapter) fetchKlines(ctx context.Context, instID, bar string, fromMs, toMs int64) ([]interfaces.Bar, error) {
	var all []interfaces.Bar
	after := strconv.FormatInt(toMs+1, 10)

	for {
		batch, err := a.fetchKlineBatch(ctx, instID, bar, after)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		// Rows are newest-first; stop once we cross below fromMs.
		done := false
		for _, b := range batch {
			if b.Time < fromMs {
				done = true
				break
			}
			all = append(all, b)
		}
		if done || len(batch) < maxKlineLimit {
			break
		}

		after = strconv.FormatInt(all[len(all)-1].Time, 10)
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (a *Adapter) fetchKlineBatch(ctx context.Context, instID, bar, after string) ([]interfaces.Bar, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/api/v5/market/candles")
	if err != nil {
		return nil, fmt.Errorf("okx: parse url: %w", err)
	}
	q := u.Query()
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("after", after)
	q.Set("limit", strconv.Itoa(maxKlineLimit))
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Data [][]string `json:"data"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("okx: candles: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", resp.Code, resp.Msg)
	}
	return parseKlines(resp.Data)
}

// parseKlines converts the OKX wire format into Bars.
//
// OKX candle row layout:
//
//	[0] ts (open time, ms, string)
//	[1] open  [2] high  [3] low  [4] close
//	[5] volume (base currency)
//	[6] volCcy  [7] volCcyQuote — unused
//	[8] confirm ("1" = closed)
func parseKlines(rows [][]string) ([]interfaces.Bar, error) {
	out := make([]interfaces.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("okx: candle[%d] has %d fields, want at least 6", i, len(row))
		}

		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx: candle[%d] ts: %w", i, err)
		}

		bar := interfaces.Bar{
			Time:   openTime,
			Closed: len(row) > 8 && row[8] == "1",
		}
		for j, dst := range []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("okx: candle[%d] field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		out = append(out, bar)
	}
	return out, nil
}

// lastPrice fetches the latest trade price for an instId.
func (a *Adapter) lastPrice(ctx context.Context, instID string) (float64, error) {
	u, err := url.Parse(a.desc.RESTBaseURL + "/api/v5/market/ticker")
	if err != nil {
		return 0, fmt.Errorf("okx: parse url: %w", err)
	}
	q := u.Query()
	q.Set("instId", instID)
	u.RawQuery = q.Encode()

	var resp struct {
		v5Envelope
		Data []struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
		} `json:"data"`
	}
	if err := a.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return 0, fmt.Errorf("okx: ticker: %w", err)
	}
	if resp.Code != "0" {
		return 0, fmt.Errorf("okx: api error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("okx: no ticker for %s", instID)
	}
	return strconv.ParseFloat(resp.Data[0].Last, 64)
}
