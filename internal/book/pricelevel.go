// Package book implements the order book subsystem: the FIFO price
// ladders and the price-time-priority matching engine that walks them.
package book

import (
	"github.com/google/uuid"

	"github.com/saiputravu/ledgerline/internal/common"
)

// PriceLevel is a FIFO queue of resting order ids sharing one limit
// price, with a cached aggregate quantity. The canonical Order record
// lives in the OrderBook's index; PriceLevel stores only ids, so the
// ladder and the index never hold competing pointers to the same order.
type PriceLevel struct {
	Price    common.Price
	Quantity uint64
	OrderIDs []uuid.UUID
}

func newPriceLevel(price common.Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

// append pushes id to the tail of the FIFO sequence and adds qty to the
// aggregate. No error path.
func (l *PriceLevel) append(id uuid.UUID, qty uint64) {
	l.OrderIDs = append(l.OrderIDs, id)
	l.Quantity += qty
}

// remove deletes the first matching id from the sequence and subtracts
// qty from the aggregate. Fails with ErrUnknownOrder if absent.
func (l *PriceLevel) remove(id uuid.UUID, qty uint64) error {
	for i, candidate := range l.OrderIDs {
		if candidate == id {
			l.OrderIDs = append(l.OrderIDs[:i], l.OrderIDs[i+1:]...)
			if qty > l.Quantity {
				l.Quantity = 0
			} else {
				l.Quantity -= qty
			}
			return nil
		}
	}
	return common.ErrUnknownOrder
}

// decrementHead reduces the aggregate by `by` without changing queue
// position: used both for a partial fill of the head order and for a
// same-price quantity decrease via Modify. Clamped at zero.
func (l *PriceLevel) decrementHead(by uint64) {
	if by > l.Quantity {
		by = l.Quantity
	}
	l.Quantity -= by
}

// head returns the id at the front of the FIFO sequence, if any.
func (l *PriceLevel) head() (uuid.UUID, bool) {
	if len(l.OrderIDs) == 0 {
		return uuid.Nil, false
	}
	return l.OrderIDs[0], true
}

// isEmpty reports whether the level's aggregate quantity has reached
// zero or it holds no order ids, making it eligible for removal from
// the ladder.
func (l *PriceLevel) isEmpty() bool {
	return l.Quantity == 0 || len(l.OrderIDs) == 0
}
