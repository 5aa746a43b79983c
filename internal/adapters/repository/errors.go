package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("value not found")
	ErrUnknownEvent = errors.New("unknown event")
)
