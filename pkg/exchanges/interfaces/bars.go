package interfaces

import "sort"

// NormalizeBars enforces the series invariant on a freshly parsed history
// batch: bars sorted by ascending open time with duplicate timestamps
// collapsed (last occurrence wins, matching last-write-wins pagination).
// The input slice is modified in place and the normalized prefix returned.
func NormalizeBars(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time < bars[j].Time
	})

	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Time == out[len(out)-1].Time {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// ClampRange trims a [from, to] request in milliseconds so from never
// exceeds to. Used by adapters before issuing venue requests.
func ClampRange(fromMs, toMs int64) (int64, int64) {
	if fromMs > toMs {
		return toMs, toMs
	}
	return fromMs, toMs
}
