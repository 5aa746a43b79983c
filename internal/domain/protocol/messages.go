// Package protocol defines the newline-delimited JSON records exchanged with
// the emulator-side producer: inbound messages and outbound commands.
package protocol

// Kind discriminates inbound messages.
type Kind string

// Recognised message kinds.
const (
	KindHello  Kind = "hello"
	KindFull   Kind = "full"
	KindDelta  Kind = "delta"
	KindStatus Kind = "status"
	KindError  Kind = "error"
	KindPong   Kind = "pong"
)

// Kinds lists every recognised kind in declaration order.
var Kinds = []Kind{KindHello, KindFull, KindDelta, KindStatus, KindError, KindPong}

// Message is the closed set of inbound records. Only the types in this
// package implement it.
type Message interface {
	Kind() Kind
	isMessage()
}

// Entry is one named value carried by a full or delta message.
// Value is upper-case hex, 2*Size digits wide when Size is known.
type Entry struct {
	Value   string
	Address string
	Size    int
}

// Hello is sent once by the producer after accepting a connection.
type Hello struct {
	Version   string
	Addresses int
}

// Full is a complete snapshot of every tracked value.
type Full struct {
	Data map[string]Entry
}

// Delta carries only the values that changed since the last report.
// Address and Size are usually empty.
type Delta struct {
	Data map[string]Entry
}

// Status reports whether the producer sees an instrumented target.
type Status struct {
	Connected  bool
	GameActive bool
	Mainram    string
}

// Error is a producer-reported failure.
type Error struct {
	Code string
	Msg  string
}

// Pong answers a ping.
type Pong struct {
	TS int64
}

func (Hello) Kind() Kind  { return KindHello }
func (Full) Kind() Kind   { return KindFull }
func (Delta) Kind() Kind  { return KindDelta }
func (Status) Kind() Kind { return KindStatus }
func (Error) Kind() Kind  { return KindError }
func (Pong) Kind() Kind   { return KindPong }

func (Hello) isMessage()  {}
func (Full) isMessage()   {}
func (Delta) isMessage()  {}
func (Status) isMessage() {}
func (Error) isMessage()  {}
func (Pong) isMessage()   {}

// Keys returns the keys carried by a full or delta message, nil otherwise.
func Keys(m Message) []string {
	var data map[string]Entry
	switch msg := m.(type) {
	case Full:
		data = msg.Data
	case Delta:
		data = msg.Data
	default:
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}
