// Package exchange is the multi-instrument coordinator: a registry of
// instruments and participants, their holdings, and a map from
// instrument id to order book, routing submissions to the right book
// and running its matching loop.
package exchange

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/ledgerline/internal/book"
	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/metrics"
	"github.com/saiputravu/ledgerline/internal/publish"
)

// IterationOrder controls the deterministic instrument ordering used by
// DrainAll.
type IterationOrder int

const (
	IterationByID IterationOrder = iota
	IterationByTicker
)

// Exchange owns the participants, instruments, holdings, and order
// book registries. Each OrderBook is held by pointer and serializes
// its own mutations under its internal mutex.
type Exchange struct {
	mu sync.RWMutex

	instruments map[uuid.UUID]common.Instrument
	participants map[uuid.UUID]common.Participant
	holdings     map[uuid.UUID]map[uuid.UUID]uint64 // participantID -> instrumentID -> qty
	books        map[uuid.UUID]*book.OrderBook
	writers      map[uuid.UUID]*InstrumentWriter

	iteration IterationOrder
	metrics   *metrics.Collector
	publisher publish.ExecutionPublisher
	tomb      *tomb.Tomb
}

// New creates an empty Exchange. collector may be nil — instrumentation
// is optional observability, never load-bearing for correctness.
// publisher must not be nil; pass publish.NewLogPublisher() if no
// external sink is configured.
func New(iteration IterationOrder, collector *metrics.Collector, publisher publish.ExecutionPublisher) *Exchange {
	return &Exchange{
		instruments:  make(map[uuid.UUID]common.Instrument),
		participants: make(map[uuid.UUID]common.Participant),
		holdings:     make(map[uuid.UUID]map[uuid.UUID]uint64),
		books:        make(map[uuid.UUID]*book.OrderBook),
		writers:      make(map[uuid.UUID]*InstrumentWriter),
		iteration:    iteration,
		metrics:      collector,
		publisher:    publisher,
	}
}

// Start attaches a supervising tomb and launches a single-writer
// goroutine for every currently-registered instrument, plus any
// registered afterward. Must be called once before SubmitQueued is
// used; Submit/ModifyOrder/CancelOrder/DrainAll work without it.
func (ex *Exchange) Start(t *tomb.Tomb) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.tomb = t
	for id := range ex.instruments {
		ex.startWriterLocked(id)
	}
}

// startWriterLocked must be called with ex.mu held.
func (ex *Exchange) startWriterLocked(id uuid.UUID) {
	if ex.tomb == nil {
		return
	}
	if _, exists := ex.writers[id]; exists {
		return
	}
	w := NewInstrumentWriter(id, ex, ex.publisher)
	ex.writers[id] = w
	ex.tomb.Go(func() error { return w.Run(ex.tomb) })
}

// RegisterParticipant inserts or replaces the record for
// p.ParticipantID. Safe to call repeatedly with the same id (upsert),
// since participants are never destroyed by the core.
func (ex *Exchange) RegisterParticipant(p common.Participant) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.participants[p.ParticipantID] = p
}

// RegisterInstrument inserts instrument, creates its OrderBook, ensures
// the issuer is registered, and credits the issuer with a holding
// equal to OutstandingShares.
func (ex *Exchange) RegisterInstrument(instrument common.Instrument, issuer common.Participant) error {
	if err := instrument.Validate(); err != nil {
		return err
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if _, exists := ex.instruments[instrument.InstrumentID]; exists {
		return common.ErrDuplicateInstrument
	}

	ex.instruments[instrument.InstrumentID] = instrument
	ex.books[instrument.InstrumentID] = book.New(instrument)

	if _, known := ex.participants[issuer.ParticipantID]; !known {
		ex.participants[issuer.ParticipantID] = issuer
	}

	if instrument.OutstandingShares != nil {
		if ex.holdings[issuer.ParticipantID] == nil {
			ex.holdings[issuer.ParticipantID] = make(map[uuid.UUID]uint64)
		}
		ex.holdings[issuer.ParticipantID][instrument.InstrumentID] = *instrument.OutstandingShares
	}

	if ex.metrics != nil {
		ex.metrics.InstrumentsRegistered.Inc()
	}
	ex.startWriterLocked(instrument.InstrumentID)
	return nil
}

// ModifyInstrument rewrites the cached name and/or ticker.
func (ex *Exchange) ModifyInstrument(id uuid.UUID, newName, newTicker string) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	instrument, ok := ex.instruments[id]
	if !ok {
		return common.ErrUnknownInstrument
	}
	if newName != "" {
		instrument.Name = newName
	}
	if newTicker != "" {
		instrument.Ticker = newTicker
	}
	ex.instruments[id] = instrument

	if b, ok := ex.books[id]; ok {
		b.SetInstrument(instrument)
	}
	return nil
}

// RemoveInstrument drops the instrument, its OrderBook, and associated
// holdings. Allowed only when the OrderBook is empty (no resting
// orders, no pending inbox).
func (ex *Exchange) RemoveInstrument(id uuid.UUID) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if _, ok := ex.instruments[id]; !ok {
		return common.ErrUnknownInstrument
	}
	b, ok := ex.books[id]
	if ok && !b.IsEmpty() {
		return common.ErrInstrumentInUse
	}

	delete(ex.instruments, id)
	delete(ex.books, id)
	for participant := range ex.holdings {
		delete(ex.holdings[participant], id)
	}
	return nil
}

// GetInstrument returns a read-only view of a registered instrument.
func (ex *Exchange) GetInstrument(id uuid.UUID) (common.Instrument, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	instrument, ok := ex.instruments[id]
	if !ok {
		return common.Instrument{}, common.ErrUnknownInstrument
	}
	return instrument, nil
}

// GetHolding returns a participant's holding of an instrument. A
// missing entry is equivalent to a zero-quantity Holding.
func (ex *Exchange) GetHolding(participantID, instrumentID uuid.UUID) common.Holding {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	qty := ex.holdings[participantID][instrumentID]
	return common.Holding{ParticipantID: participantID, InstrumentID: instrumentID, Quantity: qty}
}

// GetBookSnapshot returns a read-only pointer to the instrument's
// OrderBook. Callers must use the OrderBook's own accessors, which
// serialize internally.
func (ex *Exchange) GetBookSnapshot(id uuid.UUID) (*book.OrderBook, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	b, ok := ex.books[id]
	if !ok {
		return nil, common.ErrUnknownInstrument
	}
	return b, nil
}

// Submit routes order to its instrument's OrderBook, enqueues it, and
// steps the matcher once, returning the resulting events.
func (ex *Exchange) Submit(order common.Order) ([]common.ExecutionEvent, error) {
	b, err := ex.bookFor(order.Instrument.InstrumentID)
	if err != nil {
		return nil, err
	}

	if err := b.Enqueue(order); err != nil {
		if ex.metrics != nil {
			ex.metrics.OrdersRejected.WithLabelValues(err.Error()).Inc()
		}
		return nil, err
	}
	events, err := b.Step()
	if err != nil {
		return nil, err
	}
	if ex.metrics != nil {
		ex.recordEvents(order.Instrument.InstrumentID, events)
	}
	return events, nil
}

// SubmitQueued is the front door external callers (the TCP server)
// should use: it hands order to the instrument's single-writer
// goroutine, which serializes it against other submissions for the
// same instrument and publishes the resulting events. Submit remains
// available for callers (the writer itself, tests) that want direct,
// unserialized access to the book.
func (ex *Exchange) SubmitQueued(order common.Order) ([]common.ExecutionEvent, error) {
	ex.mu.RLock()
	w, ok := ex.writers[order.Instrument.InstrumentID]
	ex.mu.RUnlock()
	if !ok {
		return nil, common.ErrUnknownInstrument
	}
	return w.Submit(order)
}

// DrainAll calls Drain on each instrument's OrderBook in deterministic
// order and concatenates the resulting events.
func (ex *Exchange) DrainAll() []common.ExecutionEvent {
	ex.mu.RLock()
	ids := ex.orderedInstrumentIDsLocked()
	books := make([]*book.OrderBook, 0, len(ids))
	for _, id := range ids {
		books = append(books, ex.books[id])
	}
	ex.mu.RUnlock()

	var all []common.ExecutionEvent
	for i, b := range books {
		events := b.Drain()
		if ex.metrics != nil {
			ex.recordEvents(ids[i], events)
		}
		ex.publishEvents(events)
		all = append(all, events...)
	}
	return all
}

// ModifyOrder delegates to the routed OrderBook's Modify and publishes
// the resulting event.
func (ex *Exchange) ModifyOrder(instrumentID, orderID uuid.UUID, newQuantity uint64, newPrice *common.Price) (common.ExecutionEvent, error) {
	b, err := ex.bookFor(instrumentID)
	if err != nil {
		return common.ExecutionEvent{}, err
	}
	event, err := b.Modify(orderID, newQuantity, newPrice)
	if err != nil {
		return common.ExecutionEvent{}, err
	}
	ex.publishEvents([]common.ExecutionEvent{event})
	return event, nil
}

// CancelOrder delegates to the routed OrderBook's Delete and publishes
// the resulting event.
func (ex *Exchange) CancelOrder(instrumentID, orderID uuid.UUID) (common.ExecutionEvent, error) {
	b, err := ex.bookFor(instrumentID)
	if err != nil {
		return common.ExecutionEvent{}, err
	}
	event, err := b.Delete(orderID)
	if err != nil {
		return common.ExecutionEvent{}, err
	}
	if ex.metrics != nil {
		ex.metrics.OrdersCancelled.Inc()
	}
	ex.publishEvents([]common.ExecutionEvent{event})
	return event, nil
}

func (ex *Exchange) publishEvents(events []common.ExecutionEvent) {
	if ex.publisher == nil {
		return
	}
	for _, event := range events {
		if err := ex.publisher.Publish(event); err != nil {
			log.Error().Err(err).Str("orderID", event.Order.OrderID.String()).Msg("execution event publish failed")
		}
	}
}

func (ex *Exchange) bookFor(instrumentID uuid.UUID) (*book.OrderBook, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	b, ok := ex.books[instrumentID]
	if !ok {
		return nil, common.ErrUnknownInstrument
	}
	return b, nil
}

func (ex *Exchange) orderedInstrumentIDsLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(ex.instruments))
	for id := range ex.instruments {
		ids = append(ids, id)
	}
	switch ex.iteration {
	case IterationByTicker:
		sort.Slice(ids, func(i, j int) bool {
			return ex.instruments[ids[i]].Ticker < ex.instruments[ids[j]].Ticker
		})
	default:
		sort.Slice(ids, func(i, j int) bool {
			return ids[i].String() < ids[j].String()
		})
	}
	return ids
}

func (ex *Exchange) recordEvents(instrumentID uuid.UUID, events []common.ExecutionEvent) {
	for _, e := range events {
		switch e.Kind {
		case common.EventMatch:
			ex.metrics.MatchesExecuted.Inc()
		case common.EventAdd:
			ex.metrics.OrdersAdded.Inc()
		case common.EventDelete:
			ex.metrics.OrdersCancelled.Inc()
		}
	}
	if len(events) == 0 {
		return
	}
	ex.mu.RLock()
	ticker := ex.instruments[instrumentID].Ticker
	b := ex.books[instrumentID]
	ex.mu.RUnlock()
	if b != nil {
		ex.metrics.RestingOrders.WithLabelValues(ticker).Set(float64(b.RestingOrderCount()))
	}
}
