package catalog

import "errors"

// ErrLoad is returned when a catalog file cannot be read or is invalid.
var ErrLoad = errors.New("load catalog")
