// Package model contains the envelope passed from the transport to the store.
package model

import (
	"time"

	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

// EventKind classifies a transport event.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one item of the ordered stream the transport hands to the store.
type Event struct {
	Kind       EventKind
	ConnID     string           // id of the connection that produced it
	Message    protocol.Message // set for EventMessage only
	ReceivedAt time.Time
}

// Connected builds a connection-established event.
func Connected(connID string, at time.Time) Event {
	return Event{Kind: EventConnected, ConnID: connID, ReceivedAt: at}
}

// Disconnected builds a connection-closed event.
func Disconnected(connID string, at time.Time) Event {
	return Event{Kind: EventDisconnected, ConnID: connID, ReceivedAt: at}
}

// Received wraps a decoded message.
func Received(connID string, m protocol.Message, at time.Time) Event {
	return Event{Kind: EventMessage, ConnID: connID, Message: m, ReceivedAt: at}
}
