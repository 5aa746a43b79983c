package protocol

import (
	"encoding/json"
	"fmt"
)

type wireEntry struct {
	V string `json:"v"`
	A string `json:"a,omitempty"`
	S int    `json:"s,omitempty"`
}

// Encode renders a message as one wire record terminated by '\n'.
// Values are written as hex strings.
func Encode(m Message) ([]byte, error) {
	var out any
	switch msg := m.(type) {
	case Hello:
		out = struct {
			Type      Kind   `json:"type"`
			Version   string `json:"version"`
			Addresses int    `json:"addresses"`
		}{KindHello, msg.Version, msg.Addresses}
	case Full:
		out = struct {
			Type Kind                 `json:"type"`
			Data map[string]wireEntry `json:"data"`
		}{KindFull, wireData(msg.Data, true)}
	case Delta:
		out = struct {
			Type Kind                 `json:"type"`
			Data map[string]wireEntry `json:"data"`
		}{KindDelta, wireData(msg.Data, false)}
	case Status:
		out = struct {
			Type       Kind   `json:"type"`
			Connected  bool   `json:"connected"`
			GameActive bool   `json:"gameActive"`
			Mainram    string `json:"mainram,omitempty"`
		}{KindStatus, msg.Connected, msg.GameActive, msg.Mainram}
	case Error:
		out = struct {
			Type Kind   `json:"type"`
			Code string `json:"code"`
			Msg  string `json:"msg"`
		}{KindError, msg.Code, msg.Msg}
	case Pong:
		out = struct {
			Type Kind  `json:"type"`
			TS   int64 `json:"ts"`
		}{KindPong, msg.TS}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", m, err)
	}
	return append(b, '\n'), nil
}

func wireData(data map[string]Entry, full bool) map[string]wireEntry {
	out := make(map[string]wireEntry, len(data))
	for k, e := range data {
		w := wireEntry{V: e.Value}
		if full {
			w.A = e.Address
			w.S = e.Size
		}
		out[k] = w
	}
	return out
}
