package interfaces

import (
	"sort"
	"strings"

	"github.com/veiloq/chart-datafeed/pkg/symbols"
)

// Ranking weights. Exact symbol matches dominate, then symbol prefixes,
// then base-asset matches; quote and base bonuses nudge ties toward the
// most-referenced instruments.
const (
	scoreExactSymbol  = 1000
	scorePrefixSymbol = 500
	scoreExactBase    = 300
	scorePrefixBase   = 150
	scoreSubstring    = 10

	bonusUSDTQuote = 50
	bonusMajorBase = 25
)

// RankSymbols filters records by case-insensitive substring match on symbol
// or base asset and orders them by descending score, with ties broken by the
// original discovery order. An empty query matches every record. The result
// is truncated to max (non-positive max means no truncation).
func RankSymbols(d Descriptor, records []SymbolRecord, query string, max int) []RankedSymbol {
	q := strings.ToUpper(strings.TrimSpace(query))

	ranked := make([]RankedSymbol, 0, len(records))
	for _, rec := range records {
		score, ok := scoreRecord(rec, q)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedSymbol{
			SymbolRecord: rec,
			FullName:     symbols.Qualify(d.ID, rec.Symbol),
			Exchange:     d.Name,
			Score:        score,
		})
	}

	// Stable keeps discovery order for equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// scoreRecord computes the ranking score for one record, reporting false
// when the record does not match the query at all.
func scoreRecord(rec SymbolRecord, q string) (int, bool) {
	sym := strings.ToUpper(rec.Symbol)
	base := strings.ToUpper(rec.Base)

	var score int
	switch {
	case q == "":
		// Empty query matches everything; only the quote and base
		// bonuses below order the set, ties keep discovery order.
	case sym == q:
		score = scoreExactSymbol
	case strings.HasPrefix(sym, q):
		score = scorePrefixSymbol
	case base == q:
		score = scoreExactBase
	case strings.HasPrefix(base, q):
		score = scorePrefixBase
	case strings.Contains(sym, q) || strings.Contains(base, q):
		score = scoreSubstring
	default:
		return 0, false
	}

	if strings.EqualFold(rec.Quote, "USDT") {
		score += bonusUSDTQuote
	}
	if base == "BTC" || base == "ETH" {
		score += bonusMajorBase
	}
	return score, true
}

// MatchesPrefix reports whether a qualified name's prefix equals the adapter
// ID or one of its aliases. Used by every adapter's CanHandle.
func MatchesPrefix(d Descriptor, qualified string) bool {
	prefix, _ := symbols.SplitQualified(qualified)
	if prefix == "" {
		return false
	}
	if prefix == d.ID {
		return true
	}
	for _, alias := range d.Aliases {
		if prefix == alias {
			return true
		}
	}
	return false
}
