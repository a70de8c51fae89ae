// Package ledger owns the capacity-bounded counters: event seats and
// merchandise variant stock. Callers never mutate the counters directly;
// reserve and release are the only operations, and both are atomic
// conditional updates so concurrent requests cannot jointly overshoot a
// bound.
package ledger

import "context"

// Key addresses a single bounded counter. An empty VariantID addresses the
// event's seat counter; otherwise the variant's stock.
type Key struct {
	EventID   string
	VariantID string
}

// SeatKey addresses the registration counter of an event.
func SeatKey(eventID string) Key {
	return Key{EventID: eventID}
}

// StockKey addresses a merch variant's stock.
func StockKey(eventID, variantID string) Key {
	return Key{EventID: eventID, VariantID: variantID}
}

// Ledger reserves and releases capacity. Reserve returns ErrDenied when
// the bound would be exceeded; that is an expected business outcome, not
// a fault. A successful reservation is durable before Reserve returns
// (reservation happens-before any dependent record is created).
type Ledger interface {
	Reserve(ctx context.Context, key Key, amount int) error
	Release(ctx context.Context, key Key, amount int) error
}
