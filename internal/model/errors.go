package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Business rejections: expected outcomes of the admission and review rules.
// Handlers map these to 4xx responses; they are never treated as faults.
var (
	ErrRegistrationClosed = errors.New("registration is not open for this event")
	ErrDeadlinePassed     = errors.New("registration deadline has passed")
	ErrNotEligible        = errors.New("participant is not eligible for this event")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrCapacityFull       = errors.New("registration limit reached")
	ErrOutOfStock         = errors.New("selected variant is out of stock")
	ErrVariantRequired    = errors.New("a merchandise variant must be selected")
	ErrInvalidVariant     = errors.New("invalid variant selected")
	ErrPurchaseLimit      = errors.New("quantity exceeds the variant purchase limit")
	ErrPaymentNotPending  = errors.New("payment is not pending review")
	ErrAlreadyIssued      = errors.New("a ticket was already issued for this registration")
	ErrNotCancellable     = errors.New("registration cannot be cancelled in its current status")
	ErrNotAdmitted        = errors.New("registration has been cancelled or rejected")
	ErrForbidden          = errors.New("caller is not allowed to perform this action")
	ErrEventClosed        = errors.New("closed events cannot be edited")
)

// FieldError reports a gated-edit or creation validation failure, naming
// the offending field. The whole update is rejected when any field fails.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// NewFieldError builds a FieldError for the given field.
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

// IsBusinessRejection reports whether err is one of the expected admission
// or review outcomes rather than an infrastructure fault.
func IsBusinessRejection(err error) bool {
	for _, target := range []error{
		ErrRegistrationClosed, ErrDeadlinePassed, ErrNotEligible,
		ErrAlreadyRegistered, ErrCapacityFull, ErrOutOfStock,
		ErrVariantRequired, ErrInvalidVariant, ErrPurchaseLimit,
		ErrPaymentNotPending, ErrAlreadyIssued, ErrNotCancellable, ErrNotAdmitted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var fieldErr *FieldError
	return errors.As(err, &fieldErr)
}
