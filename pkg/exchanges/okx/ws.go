package okx

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// streamEnvelope is the OKX public stream message wrapper. Event messages
// (subscribe acks, errors) and pong frames carry no data rows.
type streamEnvelope struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// parseStreamMessage converts one inbound frame into Bars. Pong frames and
// event messages yield an empty slice and no error; candle rows reuse the
// REST row layout.
func parseStreamMessage(message []byte) ([]interfaces.Bar, error) {
	// OKX answers the keep-alive with a bare "pong" text frame.
	if bytes.Equal(bytes.TrimSpace(message), []byte("pong")) {
		return nil, nil
	}

	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, err
	}
	if env.Event != "" || !strings.HasPrefix(env.Arg.Channel, "candle") {
		return nil, nil
	}
	return parseKlines(env.Data)
}
