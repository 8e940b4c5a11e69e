package binance

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// streamKline is the Binance kline stream envelope, identical on spot and
// futures streams.
type streamKline struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		IsClosed bool   `json:"x"`
	} `json:"k"`
}

// parseStreamKline converts one inbound frame into a Bar. Non-kline events
// (subscription acks and the like) are reported as errors and dropped by
// the caller.
func parseStreamKline(message []byte) (interfaces.Bar, error) {
	var m streamKline
	if err := json.Unmarshal(message, &m); err != nil {
		return interfaces.Bar{}, err
	}
	if m.EventType != "kline" {
		return interfaces.Bar{}, fmt.Errorf("unexpected event type %q", m.EventType)
	}

	k := m.Kline
	bar := interfaces.Bar{Time: k.OpenTime, Closed: k.IsClosed}

	for _, f := range []struct {
		src string
		dst *float64
	}{
		{k.Open, &bar.Open},
		{k.High, &bar.High},
		{k.Low, &bar.Low},
		{k.Close, &bar.Close},
		{k.Volume, &bar.Volume},
	} {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return interfaces.Bar{}, fmt.Errorf("kline field %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return bar, nil
}
