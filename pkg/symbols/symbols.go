// Package symbols contains the pure symbol utilities shared by all exchange
// adapters: qualified-name parsing, base-asset derivation for venues that
// report only a concatenated pair, and price-derived display precision.
// Everything here is stateless and performs no I/O.
package symbols

import (
	"math"
	"strings"
)

// Separator joins an adapter ID and a venue symbol into a qualified name,
// e.g. "BINANCE_FUTURES:BTCUSDT".
const Separator = ":"

// quoteSuffixes lists the quote assets stripped when deriving a base asset
// from a concatenated pair. Order matters: longer suffixes are tried first so
// that "BTCUSDT" yields "BTC" rather than "BTCUSD" + "T".
var quoteSuffixes = []string{
	"USDT", "USDC", "BUSD", "TUSD", "FDUSD", "DAI",
	"USD", "EUR", "GBP", "TRY", "BTC", "ETH", "BNB",
}

// SplitQualified splits a qualified symbol name into its adapter prefix and
// venue symbol. A name without a separator yields an empty prefix and the
// input as the symbol. The function is total: it never fails, whatever the
// input shape.
func SplitQualified(name string) (prefix, symbol string) {
	i := strings.Index(name, Separator)
	if i < 0 {
		return "", name
	}
	return strings.ToUpper(strings.TrimSpace(name[:i])), strings.TrimSpace(name[i+1:])
}

// Qualify builds the canonical qualified name for an adapter/symbol pair.
func Qualify(adapterID, symbol string) string {
	return adapterID + Separator + symbol
}

// BaseAsset derives the base asset from a concatenated venue pair, e.g.
// "BTCUSDT" -> "BTC". Dash-separated identifiers ("BTC-USDT-SWAP") use their
// first segment. When no known quote suffix matches, the symbol is returned
// unchanged.
func BaseAsset(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	if i := strings.Index(sym, "-"); i > 0 {
		return sym[:i]
	}
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(sym, suffix) && len(sym) > len(suffix) {
			return strings.TrimSuffix(sym, suffix)
		}
	}
	return sym
}

// DefaultPriceScale is used when a live price lookup fails during symbol
// resolution: the instrument stays resolvable, scaled to two decimals.
const DefaultPriceScale = 100

// PriceScale derives the chart price scale (a power of ten) from a reference
// price. Cheap instruments need more decimals than expensive ones:
//
//	price >= 1       -> 100         (2 decimals)
//	price >= 0.01    -> 10_000      (4 decimals)
//	price >= 0.0001  -> 1_000_000   (6 decimals)
//	otherwise        -> 100_000_000 (8 decimals)
//
// Non-positive prices fall back to DefaultPriceScale.
func PriceScale(price float64) int {
	switch {
	case price <= 0 || math.IsNaN(price) || math.IsInf(price, 0):
		return DefaultPriceScale
	case price >= 1:
		return 100
	case price >= 0.01:
		return 10_000
	case price >= 0.0001:
		return 1_000_000
	default:
		return 100_000_000
	}
}

// TickSize returns the minimal price increment for a given price scale.
func TickSize(priceScale int) float64 {
	if priceScale <= 0 {
		return 1
	}
	return 1 / float64(priceScale)
}
