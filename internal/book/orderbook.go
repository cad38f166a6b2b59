package book

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/saiputravu/ledgerline/internal/common"
)

// Ladder is a price-sorted collection of PriceLevels, ascending in the
// tree's own comparator order — for asks that is lowest-price-first,
// for bids it is highest-price-first, so "best" is always Min().
type Ladder = btree.BTreeG[*PriceLevel]

// OrderBook is the authoritative state for a single instrument: the
// two ladders, the order-id index, the inbound queue, and the matcher.
// All mutating operations serialize on mu — only one goroutine writes
// to a given OrderBook at a time.
type OrderBook struct {
	mu sync.Mutex

	InstrumentID uuid.UUID
	Instrument   common.Instrument

	Bids *Ladder
	Asks *Ladder

	index          map[uuid.UUID]*common.Order
	inbox          []common.Order
	LastTradePrice *common.Price
}

// New creates an empty OrderBook for instrument.
func New(instrument common.Instrument) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price) // highest first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price) // lowest first
	})
	return &OrderBook{
		InstrumentID: instrument.InstrumentID,
		Instrument:   instrument,
		Bids:         bids,
		Asks:         asks,
		index:        make(map[uuid.UUID]*common.Order),
	}
}

func (book *OrderBook) ladderFor(side common.Side) *Ladder {
	if side == common.Buy {
		return book.Bids
	}
	return book.Asks
}

func (book *OrderBook) oppositeLadder(side common.Side) *Ladder {
	if side == common.Buy {
		return book.Asks
	}
	return book.Bids
}

// Enqueue validates order and pushes it onto the inbox. Returns
// immediately; matching happens on a subsequent Step/Drain.
func (book *OrderBook) Enqueue(order common.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	book.mu.Lock()
	defer book.mu.Unlock()
	book.inbox = append(book.inbox, order.Clone())
	return nil
}

// Step pops one order from the inbox and attempts to match it,
// returning the resulting execution events. The matcher emits one
// MATCH event per (incoming, resting) pair rather than a single
// aggregate event, so the returned slice may hold several MATCH events
// plus, if the incoming order rests, one trailing ADD. Returns
// common.ErrQueueEmpty — never surfaced above Drain — when the inbox
// is empty.
func (book *OrderBook) Step() ([]common.ExecutionEvent, error) {
	book.mu.Lock()
	defer book.mu.Unlock()

	if len(book.inbox) == 0 {
		return nil, common.ErrQueueEmpty
	}
	incoming := book.inbox[0]
	book.inbox = book.inbox[1:]

	return book.match(incoming)
}

// Drain repeatedly steps until the inbox is empty, returning the
// ordered concatenation of all emitted events.
func (book *OrderBook) Drain() []common.ExecutionEvent {
	var events []common.ExecutionEvent
	for {
		batch, err := book.Step()
		if err != nil {
			return events
		}
		events = append(events, batch...)
	}
}

// match runs the price-time-priority sweep for incoming against the
// opposite ladder, mutating both sides atomically, and returns the
// events produced.
func (book *OrderBook) match(incoming common.Order) ([]common.ExecutionEvent, error) {
	var events []common.ExecutionEvent
	opposite := book.oppositeLadder(incoming.Side)

	for incoming.Quantity > 0 {
		level, ok := opposite.MinMut()
		if !ok {
			break
		}
		if incoming.Type == common.LimitOrder && crossesBeyond(incoming, level.Price) {
			break
		}

		for incoming.Quantity > 0 && len(level.OrderIDs) > 0 {
			restingID, _ := level.head()
			resting := book.index[restingID]
			if resting == nil {
				// Index/ladder desync would be a programming bug, not a
				// user-visible error; drop the dangling id defensively.
				level.OrderIDs = level.OrderIDs[1:]
				continue
			}

			tradeQty := min(incoming.Quantity, resting.Quantity)
			incoming.Quantity -= tradeQty
			resting.Quantity -= tradeQty
			tradePrice := level.Price
			book.LastTradePrice = &tradePrice

			level.decrementHead(tradeQty)

			restingSnapshot := *resting
			events = append(events, common.ExecutionEvent{
				Kind:          common.EventMatch,
				ActorID:       incoming.CreatorID,
				Timestamp:     time.Now(),
				Order:         incoming,
				Counterparty:  &restingSnapshot,
				MatchQuantity: tradeQty,
				MatchPrice:    tradePrice,
			})

			if resting.Quantity == 0 {
				level.OrderIDs = level.OrderIDs[1:]
				delete(book.index, restingID)
			}
		}

		if level.isEmpty() {
			opposite.Delete(level)
		}
	}

	if incoming.Quantity > 0 {
		if err := book.insert(incoming); err != nil {
			return events, err
		}
		// Report the stored record, which carries a MARKET remainder's
		// working price.
		incoming = *book.index[incoming.OrderID]
		events = append(events, common.ExecutionEvent{
			Kind:      common.EventAdd,
			ActorID:   incoming.CreatorID,
			Timestamp: time.Now(),
			Order:     incoming,
		})
	}

	return events, nil
}

// crossesBeyond reports whether a resting level at levelPrice is
// beyond the reach of incoming's limit price: for a BID, the level
// must not price above the bid; for an ASK, not below it.
func crossesBeyond(incoming common.Order, levelPrice common.Price) bool {
	if incoming.Side == common.Buy {
		return levelPrice.GreaterThan(*incoming.Price)
	}
	return levelPrice.LessThan(*incoming.Price)
}

// insert lands order on its resting side, creating the PriceLevel
// lazily if needed, and records it in the index. MARKET orders are
// assigned a working price equal to LastTradePrice; with none
// recorded, the insertion is rejected.
func (book *OrderBook) insert(order common.Order) error {
	price := order.Price
	if order.Type == common.MarketOrder {
		if book.LastTradePrice == nil {
			return common.ErrInvalidPrice
		}
		working := *book.LastTradePrice
		price = &working
	}
	if price == nil || !price.IsPositive() {
		return common.ErrInvalidPrice
	}
	order.Price = price

	ladder := book.ladderFor(order.Side)
	key := newPriceLevel(*price)
	level, ok := ladder.GetMut(key)
	if !ok {
		level = key
		ladder.Set(level)
	}
	level.append(order.OrderID, order.Quantity)

	stored := order
	book.index[order.OrderID] = &stored
	return nil
}

// Modify adjusts a resting order: a new quantity of zero or less is
// equivalent to Delete. A same-price quantity decrease keeps the
// order's place in its PriceLevel's FIFO sequence — only the cached
// aggregate and the index entry change. Any other change (a different
// price, or a quantity increase) removes the order from its current
// PriceLevel and reinserts it at the tail of the new one, since both
// cases hand the order a fresh claim on liquidity it didn't have
// before.
func (book *OrderBook) Modify(orderID uuid.UUID, newQuantity uint64, newPrice *common.Price) (common.ExecutionEvent, error) {
	book.mu.Lock()
	defer book.mu.Unlock()

	resting, ok := book.index[orderID]
	if !ok {
		return common.ExecutionEvent{}, common.ErrUnknownOrder
	}

	if newQuantity == 0 {
		return book.deleteLocked(orderID)
	}
	if newPrice == nil || !newPrice.IsPositive() {
		return common.ExecutionEvent{}, common.ErrInvalidPrice
	}

	ladder := book.ladderFor(resting.Side)

	if newPrice.Equal(*resting.Price) && newQuantity <= resting.Quantity {
		if level, ok := ladder.GetMut(newPriceLevel(*resting.Price)); ok {
			level.decrementHead(resting.Quantity - newQuantity)
		}
		resting.Quantity = newQuantity
		resting.TotalQuantity = newQuantity

		return common.ExecutionEvent{
			Kind:      common.EventModify,
			ActorID:   resting.CreatorID,
			Timestamp: time.Now(),
			Order:     *resting,
		}, nil
	}

	oldLevel, ok := ladder.GetMut(newPriceLevel(*resting.Price))
	if ok {
		_ = oldLevel.remove(orderID, resting.Quantity)
		if oldLevel.isEmpty() {
			ladder.Delete(oldLevel)
		}
	}

	resting.Quantity = newQuantity
	resting.TotalQuantity = newQuantity
	resting.Price = newPrice

	newLevel, ok := ladder.GetMut(newPriceLevel(*newPrice))
	if !ok {
		newLevel = newPriceLevel(*newPrice)
		ladder.Set(newLevel)
	}
	newLevel.append(orderID, newQuantity)

	return common.ExecutionEvent{
		Kind:      common.EventModify,
		ActorID:   resting.CreatorID,
		Timestamp: time.Now(),
		Order:     *resting,
	}, nil
}

// Delete removes a resting order from its PriceLevel and the index.
func (book *OrderBook) Delete(orderID uuid.UUID) (common.ExecutionEvent, error) {
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.deleteLocked(orderID)
}

func (book *OrderBook) deleteLocked(orderID uuid.UUID) (common.ExecutionEvent, error) {
	resting, ok := book.index[orderID]
	if !ok {
		return common.ExecutionEvent{}, common.ErrUnknownOrder
	}

	ladder := book.ladderFor(resting.Side)
	level, ok := ladder.GetMut(newPriceLevel(*resting.Price))
	if ok {
		_ = level.remove(orderID, resting.Quantity)
		if level.isEmpty() {
			ladder.Delete(level)
		}
	}
	snapshot := *resting
	delete(book.index, orderID)

	return common.ExecutionEvent{
		Kind:      common.EventDelete,
		ActorID:   snapshot.CreatorID,
		Timestamp: time.Now(),
		Order:     snapshot,
	}, nil
}

// BestBid peeks the top of the bid ladder.
func (book *OrderBook) BestBid() (*PriceLevel, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.Bids.MinMut()
}

// BestAsk peeks the top of the ask ladder.
func (book *OrderBook) BestAsk() (*PriceLevel, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.Asks.MinMut()
}

// IsEmpty reports whether the book has no resting orders and no
// pending inbox entries; an instrument can only be removed while this
// holds.
func (book *OrderBook) IsEmpty() bool {
	book.mu.Lock()
	defer book.mu.Unlock()
	return len(book.index) == 0 && len(book.inbox) == 0
}

// SetInstrument updates the cached Instrument metadata (name/ticker),
// guarded by the same mutex as the matching path.
func (book *OrderBook) SetInstrument(instrument common.Instrument) {
	book.mu.Lock()
	defer book.mu.Unlock()
	book.Instrument = instrument
}

// RestingOrderCount returns the number of orders currently resting on
// the book, for gauge-style instrumentation.
func (book *OrderBook) RestingOrderCount() int {
	book.mu.Lock()
	defer book.mu.Unlock()
	return len(book.index)
}

// OrderByID returns a snapshot of a resting order, if any.
func (book *OrderBook) OrderByID(orderID uuid.UUID) (common.Order, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	o, ok := book.index[orderID]
	if !ok {
		return common.Order{}, false
	}
	return *o, true
}
