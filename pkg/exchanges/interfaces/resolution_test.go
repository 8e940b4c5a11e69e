package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapResolutionTotal(t *testing.T) {
	native := map[string]string{
		"1": "1m", "5": "5m", "15": "15m", "30": "30m",
		"60": "1h", "240": "4h", "1D": "1d", "1W": "1w", "1M": "1M",
	}

	// Every canonical code maps to its native counterpart.
	for _, res := range AllResolutions() {
		code, err := MapResolution(native, res)
		assert.NoError(t, err, "resolution %s", res)
		assert.Equal(t, native[res], code, "resolution %s", res)
	}

	// Unknown codes still yield the mapped default, flagged by the
	// sentinel so adapters can log the substitution.
	for _, bad := range []string{"", "2", "7", "1Y", "banana"} {
		code, err := MapResolution(native, bad)
		assert.ErrorIs(t, err, ErrUnknownResolution, "input %q", bad)
		assert.Equal(t, "15m", code, "input %q", bad)
	}
}

func TestResolutionMillis(t *testing.T) {
	assert.Equal(t, int64(60_000), ResolutionMillis(Res1))
	assert.Equal(t, int64(3_600_000), ResolutionMillis(Res60))
	assert.Equal(t, int64(86_400_000), ResolutionMillis(Res1D))
	assert.Equal(t, int64(7*86_400_000), ResolutionMillis(Res1W))

	// Unknown codes report the 15-minute default.
	assert.Equal(t, int64(900_000), ResolutionMillis("nope"))
}

func TestAllResolutionsOrder(t *testing.T) {
	all := AllResolutions()
	assert.Equal(t, []string{"1", "5", "15", "30", "60", "240", "1D", "1W", "1M"}, all)
}
