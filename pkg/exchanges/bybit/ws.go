package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// streamEnvelope is the Bybit v5 public stream message wrapper. Control
// messages (pong, subscribe acks) carry no topic.
type streamEnvelope struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// streamKline is one kline object inside the data array.
type streamKline struct {
	Start    int64  `json:"start"`
	Interval string `json:"interval"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Confirm  bool   `json:"confirm"`
}

// parseStreamMessage converts one inbound frame into Bars. Control frames
// yield an empty slice and no error.
func parseStreamMessage(message []byte) ([]interfaces.Bar, error) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, err
	}
	if env.Topic == "" {
		// pong or subscription ack
		return nil, nil
	}

	var entries []streamKline
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("kline data: %w", err)
	}

	out := make([]interfaces.Bar, 0, len(entries))
	for _, e := range entries {
		bar := interfaces.Bar{Time: e.Start, Closed: e.Confirm}
		for _, f := range []struct {
			src string
			dst *float64
		}{
			{e.Open, &bar.Open},
			{e.High, &bar.High},
			{e.Low, &bar.Low},
			{e.Close, &bar.Close},
			{e.Volume, &bar.Volume},
		} {
			v, err := strconv.ParseFloat(f.src, 64)
			if err != nil {
				return nil, fmt.Errorf("kline field %q: %w", f.src, err)
			}
			*f.dst = v
		}
		out = append(out, bar)
	}
	return out, nil
}
