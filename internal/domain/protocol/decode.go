package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// envelope is the union of every field any inbound kind may carry.
type envelope struct {
	Type       string              `json:"type"`
	KindAlias  string              `json:"kind"`
	Version    *string             `json:"version"`
	Addresses  *int                `json:"addresses"`
	Data       map[string]rawEntry `json:"data"`
	Connected  *bool               `json:"connected"`
	GameActive *bool               `json:"gameActive"`
	Mainram    *string             `json:"mainram"`
	Code       *string             `json:"code"`
	Msg        *string             `json:"msg"`
	TS         *int64              `json:"ts"`
}

type rawEntry struct {
	V json.RawMessage `json:"v"`
	A string          `json:"a"`
	S int             `json:"s"`
}

// Decode parses one framed record. Unrecognised kinds yield ErrUnknownKind,
// structurally invalid records ErrMalformed.
func Decode(line []byte) (Message, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind := env.Type
	if kind == "" {
		kind = env.KindAlias
	}

	switch Kind(kind) {
	case KindHello:
		if env.Version == nil {
			return nil, fmt.Errorf("%w: hello without version", ErrMalformed)
		}
		h := Hello{Version: *env.Version}
		if env.Addresses != nil {
			h.Addresses = *env.Addresses
		}
		return h, nil
	case KindFull:
		data, err := decodeData(env.Data, true)
		if err != nil {
			return nil, err
		}
		return Full{Data: data}, nil
	case KindDelta:
		data, err := decodeData(env.Data, false)
		if err != nil {
			return nil, err
		}
		return Delta{Data: data}, nil
	case KindStatus:
		if env.GameActive == nil {
			return nil, fmt.Errorf("%w: status without gameActive", ErrMalformed)
		}
		s := Status{GameActive: *env.GameActive}
		if env.Connected != nil {
			s.Connected = *env.Connected
		}
		if env.Mainram != nil {
			s.Mainram = *env.Mainram
		}
		return s, nil
	case KindError:
		if env.Code == nil || env.Msg == nil {
			return nil, fmt.Errorf("%w: error without code or msg", ErrMalformed)
		}
		return Error{Code: *env.Code, Msg: *env.Msg}, nil
	case KindPong:
		p := Pong{}
		if env.TS != nil {
			p.TS = *env.TS
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeData(raw map[string]rawEntry, full bool) (map[string]Entry, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	data := make(map[string]Entry, len(raw))
	for key, e := range raw {
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrMalformed)
		}
		if full && e.S < 0 {
			return nil, fmt.Errorf("%w: negative size for %s", ErrMalformed, key)
		}
		v, err := NormalizeValue(e.V, e.S)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		size := e.S
		if size <= 0 {
			size = len(v) / 2
		}
		data[key] = Entry{Value: v, Address: e.A, Size: size}
	}
	return data, nil
}

// NormalizeValue converts a wire value (hex string or non-negative JSON
// number) into upper-case hex. With size > 0 the result is exactly 2*size
// digits; otherwise it is the shortest even-width form.
func NormalizeValue(raw json.RawMessage, size int) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing value")
	}

	var digits string
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		if s == "" {
			return "", fmt.Errorf("empty hex value")
		}
		for _, c := range s {
			if !isHex(c) {
				return "", fmt.Errorf("invalid hex digit %q", c)
			}
		}
		digits = strings.ToUpper(s)
	} else {
		n, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid numeric value %s", raw)
		}
		digits = strconv.FormatUint(n, 16)
		digits = strings.ToUpper(digits)
	}

	return fitWidth(digits, size)
}

// FormatValue renders n as upper-case hex 2*size digits wide.
func FormatValue(n uint64, size int) string {
	v, err := fitWidth(strings.ToUpper(strconv.FormatUint(n, 16)), size)
	if err != nil {
		// n does not fit; keep the low-order bytes.
		s := strings.ToUpper(strconv.FormatUint(n, 16))
		return s[len(s)-2*size:]
	}
	return v
}

func fitWidth(digits string, size int) (string, error) {
	trimmed := strings.TrimLeft(digits, "0")
	if size <= 0 {
		if len(trimmed)%2 == 1 {
			trimmed = "0" + trimmed
		}
		if trimmed == "" {
			trimmed = "00"
		}
		return trimmed, nil
	}
	width := 2 * size
	if len(trimmed) > width {
		return "", fmt.Errorf("value %s exceeds %d bytes", digits, size)
	}
	return strings.Repeat("0", width-len(trimmed)) + trimmed, nil
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Refit re-renders a normalised hex value at 2*size digits. A value that
// does not fit, or a non-positive size, leaves hex unchanged.
func Refit(hex string, size int) string {
	if size <= 0 {
		return hex
	}
	v, err := fitWidth(hex, size)
	if err != nil {
		return hex
	}
	return v
}
