package ledger

import "errors"

// ErrDenied is returned by Reserve when granting the amount would exceed
// the counter's bound.
var ErrDenied = errors.New("capacity bound would be exceeded")

// ErrUnknownKey is returned when the addressed counter does not exist.
var ErrUnknownKey = errors.New("unknown capacity key")
