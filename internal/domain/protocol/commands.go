package protocol

import (
	"encoding/json"
	"fmt"
)

// Command names as they appear in the cmd field.
const (
	CmdWrite      = "write"
	CmdRefresh    = "refresh"
	CmdSetVersion = "setVersion"
	CmdPing       = "ping"
)

// Command is an outbound, fire-and-forget instruction to the producer.
type Command interface {
	Name() string
}

// Write asks the producer to poke value into the named target.
type Write struct {
	Target string
	Value  int64
}

// Refresh asks for a fresh full snapshot.
type Refresh struct{}

// SetVersion selects the game version whose address table the producer uses.
type SetVersion struct {
	Target string
}

// Ping asks for a pong.
type Ping struct{}

func (Write) Name() string      { return CmdWrite }
func (Refresh) Name() string    { return CmdRefresh }
func (SetVersion) Name() string { return CmdSetVersion }
func (Ping) Name() string       { return CmdPing }

type wireCommand struct {
	Cmd    string `json:"cmd"`
	Target string `json:"target,omitempty"`
	Value  *int64 `json:"value,omitempty"`
}

// EncodeCommand renders cmd as one wire record terminated by '\n'.
func EncodeCommand(cmd Command) ([]byte, error) {
	var w wireCommand
	switch c := cmd.(type) {
	case Write:
		v := c.Value
		w = wireCommand{Cmd: CmdWrite, Target: c.Target, Value: &v}
	case Refresh:
		w = wireCommand{Cmd: CmdRefresh}
	case SetVersion:
		w = wireCommand{Cmd: CmdSetVersion, Target: c.Target}
	case Ping:
		w = wireCommand{Cmd: CmdPing}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", cmd.Name(), err)
	}
	return append(b, '\n'), nil
}

// DecodeCommand parses a command record, as received by a producer or
// submitted through the HTTP API.
func DecodeCommand(line []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch w.Cmd {
	case CmdWrite:
		if w.Target == "" || w.Value == nil {
			return nil, fmt.Errorf("%w: write needs target and value", ErrMalformed)
		}
		return Write{Target: w.Target, Value: *w.Value}, nil
	case CmdRefresh:
		return Refresh{}, nil
	case CmdSetVersion:
		if w.Target == "" {
			return nil, fmt.Errorf("%w: setVersion needs target", ErrMalformed)
		}
		return SetVersion{Target: w.Target}, nil
	case CmdPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Cmd)
	}
}
