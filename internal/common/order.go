package common

import (
	"time"

	"github.com/google/uuid"
)

// Instrument is the immutable (save for an explicit modify) descriptor
// for a tradeable asset.
type Instrument struct {
	InstrumentID      uuid.UUID
	Name              string
	Ticker            string
	TotalIssued       *uint64
	OutstandingShares *uint64
	CreatedAt         *int64
}

// Validate checks the required, non-optional attributes.
func (i Instrument) Validate() error {
	if i.InstrumentID == uuid.Nil {
		return ErrInvalidInstrument
	}
	if i.Name == "" || i.Ticker == "" {
		return ErrInvalidInstrument
	}
	if i.TotalIssued != nil && *i.TotalIssued == 0 {
		return ErrInvalidInstrument
	}
	if i.OutstandingShares != nil && *i.OutstandingShares == 0 {
		return ErrInvalidInstrument
	}
	if i.CreatedAt != nil && *i.CreatedAt <= 0 {
		return ErrInvalidInstrument
	}
	return nil
}

// Participant is a registered exchange member.
type Participant struct {
	ParticipantID  uuid.UUID
	DisplayName    string
	ContactHandle  string
	CredentialHash string
	CashBalance    *Price
}

// Holding is a participant's inventory of one instrument. A Holding
// with Quantity 0 is equivalent to absence.
type Holding struct {
	ParticipantID uuid.UUID
	InstrumentID  uuid.UUID
	Quantity      uint64
}

// Order is the mutable unit of work flowing through an OrderBook.
// Quantity tracks what remains unfilled; TotalQuantity records the
// originally requested size for audit/reporting.
type Order struct {
	OrderID       uuid.UUID
	CreatorID     uuid.UUID
	Instrument    Instrument
	Side          Side
	Type          OrderType
	Quantity      uint64
	TotalQuantity uint64
	CreatedAt     int64
	Price         *Price // nil for an unpriced MARKET order on input
}

// Validate enforces the per-field checks the enqueue contract requires.
// It does not check cross-book invariants (those are the OrderBook's
// responsibility).
func (o Order) Validate() error {
	if o.OrderID == uuid.Nil {
		return ErrInvalidOrderID
	}
	if o.CreatorID == uuid.Nil {
		return ErrInvalidCreator
	}
	if o.Instrument.InstrumentID == uuid.Nil {
		return ErrInvalidInstrument
	}
	if o.Side != Buy && o.Side != Sell {
		return ErrInvalidSide
	}
	if o.Quantity == 0 || o.Quantity > MaxOrderQuantity {
		return ErrInvalidQuantity
	}
	if o.CreatedAt <= 0 {
		return ErrInvalidTimestamp
	}
	if o.Type == LimitOrder {
		if o.Price == nil || !o.Price.IsPositive() {
			return ErrInvalidPrice
		}
	}
	return nil
}

// Clone returns a value copy safe to mutate independently of the
// caller's order (e.g. before enqueueing).
func (o Order) Clone() Order {
	clone := o
	if o.Price != nil {
		p := *o.Price
		clone.Price = &p
	}
	return clone
}

// ExecutionEvent is emitted by the matcher. For EventMatch, Counterparty
// is populated; it is nil for ADD/MODIFY/DELETE.
type ExecutionEvent struct {
	Kind          EventKind
	ActorID       uuid.UUID
	Timestamp     time.Time
	Order         Order
	Counterparty  *Order
	MatchQuantity uint64 // populated only for EventMatch
	MatchPrice    Price  // populated only for EventMatch
}
