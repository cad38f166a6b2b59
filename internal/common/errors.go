package common

import "errors"

// Validation errors: malformed inputs. Surfaced to the caller; the
// offending operation has no effect.
var (
	ErrInvalidOrderID    = errors.New("invalid order id")
	ErrInvalidCreator    = errors.New("invalid creator id")
	ErrInvalidInstrument = errors.New("invalid instrument")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidSide       = errors.New("invalid side")
)

// Lookup errors: the referenced entity does not exist. Surfaced; no effect.
var (
	ErrUnknownOrder      = errors.New("unknown order")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// Conflict errors: the operation would violate a uniqueness or
// lifecycle constraint. Surfaced; no effect.
var (
	ErrDuplicateInstrument = errors.New("duplicate instrument")
	ErrInstrumentInUse     = errors.New("instrument in use")
)

// ErrQueueEmpty is the internal sentinel marking inbox exhaustion. It
// is never surfaced above drain().
var ErrQueueEmpty = errors.New("queue empty")

const MaxOrderQuantity = 1_000_000
