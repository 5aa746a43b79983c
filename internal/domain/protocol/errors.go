package protocol

import "errors"

// Sentinel errors returned by Decode and DecodeCommand.
var (
	ErrUnknownKind    = errors.New("unknown message kind")
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownCommand = errors.New("unknown command")
)
