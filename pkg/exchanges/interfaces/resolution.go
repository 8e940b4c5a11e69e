package interfaces

import "fmt"

// Canonical resolution codes: minute counts for intraday, letter-suffixed
// codes for daily and above. Each adapter maps these to its venue's native
// interval vocabulary.
const (
	Res1  = "1"
	Res5  = "5"
	Res15 = "15"
	Res30 = "30"
	Res60 = "60"
	Res4H = "240"
	Res1D = "1D"
	Res1W = "1W"
	Res1M = "1M"
)

// DefaultResolution is the fallback for unrecognized resolution codes.
const DefaultResolution = Res15

// AllResolutions lists every canonical code, in display order.
func AllResolutions() []string {
	return []string{Res1, Res5, Res15, Res30, Res60, Res4H, Res1D, Res1W, Res1M}
}

// ResolutionMillis returns the nominal duration of one canonical resolution
// in milliseconds. Monthly bars use a 30-day approximation. Unknown codes
// report the 15-minute default.
func ResolutionMillis(resolution string) int64 {
	const min = 60_000
	switch resolution {
	case Res1:
		return min
	case Res5:
		return 5 * min
	case Res15:
		return 15 * min
	case Res30:
		return 30 * min
	case Res60:
		return 60 * min
	case Res4H:
		return 240 * min
	case Res1D:
		return 24 * 60 * min
	case Res1W:
		return 7 * 24 * 60 * min
	case Res1M:
		return 30 * 24 * 60 * min
	default:
		return 15 * min
	}
}

// MapResolution translates a canonical code through a venue mapping table.
// Unknown codes report ErrUnknownResolution alongside the mapped
// DefaultResolution, so the result is always usable: callers log the
// substitution and carry on with the default.
func MapResolution(native map[string]string, resolution string) (string, error) {
	if code, ok := native[resolution]; ok {
		return code, nil
	}
	return native[DefaultResolution], fmt.Errorf("%q: %w", resolution, ErrUnknownResolution)
}
