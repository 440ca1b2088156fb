package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the business error taxonomy. Conflict errors
// (ErrRequestAlreadyProcessed, ErrInsufficientInventory) are detected inside
// the transaction boundary and abort it with no partial state; validation
// errors are rejected before any read or write.
var (
	// ErrInvalidBloodType reports a malformed or unsupported blood type input.
	ErrInvalidBloodType = errors.New("invalid blood type")
	// ErrInvalidQuantity reports a zero or negative unit count.
	ErrInvalidQuantity = errors.New("units must be positive")
	// ErrRequestNotFound reports an unknown blood request ID.
	ErrRequestNotFound = errors.New("blood request not found")
	// ErrRequestAlreadyProcessed reports an attempted transition from a
	// non-pending state.
	ErrRequestAlreadyProcessed = errors.New("blood request already processed")
	// ErrInsufficientInventory reports that the chosen bank cannot cover the
	// requested units at transaction time.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrInventoryLineNotFound reports a missing stock record for a
	// bank/type pair.
	ErrInventoryLineNotFound = errors.New("inventory line not found")
	// ErrFacilityNotFound reports an unknown facility reference.
	ErrFacilityNotFound = errors.New("facility not found")
	// ErrBankNotFound reports an unknown blood bank reference.
	ErrBankNotFound = errors.New("blood bank not found")
	// ErrInvalidUrgency reports an urgency value outside the closed set.
	ErrInvalidUrgency = errors.New("invalid urgency level")
	// ErrCancelReasonRequired reports a cancellation attempted without a reason.
	ErrCancelReasonRequired = errors.New("cancellation reason required")
)

// InvalidBloodTypeError carries the rejected input alongside
// ErrInvalidBloodType for errors.Is matching.
type InvalidBloodTypeError struct {
	Input string
}

func (e InvalidBloodTypeError) Error() string {
	return fmt.Sprintf("invalid blood type %q", e.Input)
}

// Is lets errors.Is treat any InvalidBloodTypeError as ErrInvalidBloodType.
func (e InvalidBloodTypeError) Is(target error) bool {
	return target == ErrInvalidBloodType
}

// InvalidUrgencyError carries the rejected input alongside ErrInvalidUrgency
// for errors.Is matching.
type InvalidUrgencyError struct {
	Input string
}

func (e InvalidUrgencyError) Error() string {
	return fmt.Sprintf("invalid urgency level %q", e.Input)
}

// Is lets errors.Is treat any InvalidUrgencyError as ErrInvalidUrgency.
func (e InvalidUrgencyError) Is(target error) bool {
	return target == ErrInvalidUrgency
}

// TransientError wraps infrastructure-level failures (storage unavailable,
// snapshot write failed) so callers can distinguish retry-later conditions
// from invalid allocations.
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err originates from infrastructure rather than
// business validation or conflict.
func IsTransient(err error) bool {
	var t TransientError
	return errors.As(err, &t)
}
