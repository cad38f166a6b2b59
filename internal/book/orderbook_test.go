package book

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiputravu/ledgerline/internal/common"
)

func testInstrument() common.Instrument {
	return common.Instrument{
		InstrumentID: uuid.New(),
		Name:         "Acme Corp",
		Ticker:       "ACME",
	}
}

func newTestOrder(side common.Side, orderType common.OrderType, qty uint64, price *common.Price) common.Order {
	return common.Order{
		OrderID:       uuid.New(),
		CreatorID:     uuid.New(),
		Instrument:    testInstrument(),
		Side:          side,
		Type:          orderType,
		Quantity:      qty,
		TotalQuantity: qty,
		CreatedAt:     1,
		Price:         price,
	}
}

func limitAt(v float64) *common.Price {
	p := common.NewPrice(v)
	return &p
}

func submit(t *testing.T, book *OrderBook, order common.Order) []common.ExecutionEvent {
	t.Helper()
	require.NoError(t, book.Enqueue(order))
	events, err := book.Step()
	require.NoError(t, err)
	return events
}

// Scenario 1: limit cross, single fill.
func TestMatch_LimitCrossSingleFill(t *testing.T) {
	b := New(testInstrument())

	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 100, limitAt(90.00)))
	events := submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 100, limitAt(90.00)))

	require.Len(t, events, 1)
	assert.Equal(t, common.EventMatch, events[0].Kind)
	assert.Equal(t, uint64(100), events[0].MatchQuantity)
	assert.True(t, events[0].MatchPrice.Equal(common.NewPrice(90.00)))
	assert.True(t, b.IsEmpty())
	require.NotNil(t, b.LastTradePrice)
	assert.True(t, b.LastTradePrice.Equal(common.NewPrice(90.00)))
}

// Scenario 2: limit cross, partial fill.
func TestMatch_LimitCrossPartialFill(t *testing.T) {
	b := New(testInstrument())

	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 100, limitAt(90.00)))
	events := submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 40, limitAt(90.00)))

	require.Len(t, events, 1)
	assert.Equal(t, uint64(40), events[0].MatchQuantity)

	level, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(60), level.Quantity)
	assert.True(t, level.Price.Equal(common.NewPrice(90.00)))
}

// Scenario 3: price-time priority across two resting orders at the
// same level.
func TestMatch_PriceTimePriority(t *testing.T) {
	b := New(testInstrument())

	askA := newTestOrder(common.Sell, common.LimitOrder, 50, limitAt(90.00))
	askA.CreatedAt = 1
	submit(t, b, askA)

	askB := newTestOrder(common.Sell, common.LimitOrder, 50, limitAt(90.00))
	askB.CreatedAt = 2
	submit(t, b, askB)

	events := submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 60, limitAt(90.00)))

	require.Len(t, events, 2)
	assert.Equal(t, askA.OrderID, events[0].Counterparty.OrderID)
	assert.Equal(t, uint64(50), events[0].MatchQuantity)
	assert.Equal(t, askB.OrderID, events[1].Counterparty.OrderID)
	assert.Equal(t, uint64(10), events[1].MatchQuantity)

	level, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(40), level.Quantity)
	require.Len(t, level.OrderIDs, 1)
	assert.Equal(t, askB.OrderID, level.OrderIDs[0])
}

// Scenario 4: best-price selection sweeps the nearer level first and
// leaves the far level untouched.
func TestMatch_BestPriceSelection(t *testing.T) {
	b := New(testInstrument())

	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 100, limitAt(90.50)))
	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 100, limitAt(90.00)))

	events := submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 100, limitAt(91.00)))

	require.Len(t, events, 1)
	assert.True(t, events[0].MatchPrice.Equal(common.NewPrice(90.00)))

	level, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, level.Price.Equal(common.NewPrice(90.50)))
	assert.Equal(t, uint64(100), level.Quantity)
}

// Scenario 5: a non-crossing limit order simply rests.
func TestMatch_LimitNonCrossRests(t *testing.T) {
	b := New(testInstrument())

	events := submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 10, limitAt(89.00)))

	require.Len(t, events, 1)
	assert.Equal(t, common.EventAdd, events[0].Kind)

	level, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, level.Price.Equal(common.NewPrice(89.00)))
}

// Scenario 6: a market order with an empty opposite book and no
// last-trade price is rejected, leaving the book unchanged.
func TestMatch_MarketOrderNoLiquidityNoLastTrade(t *testing.T) {
	b := New(testInstrument())

	order := newTestOrder(common.Buy, common.MarketOrder, 10, nil)
	require.NoError(t, b.Enqueue(order))
	_, err := b.Step()

	assert.ErrorIs(t, err, common.ErrInvalidPrice)
	assert.True(t, b.IsEmpty())
	assert.Nil(t, b.LastTradePrice)
}

// A market order with some existing liquidity first sweeps it, then
// rests any remainder at the last traded price.
func TestMatch_MarketOrderRestsAtLastTradePrice(t *testing.T) {
	b := New(testInstrument())

	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 50, limitAt(90.00)))
	events := submit(t, b, newTestOrder(common.Buy, common.MarketOrder, 80, nil))

	require.Len(t, events, 2)
	assert.Equal(t, common.EventMatch, events[0].Kind)
	assert.Equal(t, uint64(50), events[0].MatchQuantity)
	assert.Equal(t, common.EventAdd, events[1].Kind)
	assert.True(t, events[1].Order.Price.Equal(common.NewPrice(90.00)))

	level, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(30), level.Quantity)
}

func TestModify_DecreaseQuantityKeepsPriceLevel(t *testing.T) {
	b := New(testInstrument())

	order := newTestOrder(common.Buy, common.LimitOrder, 100, limitAt(50.00))
	submit(t, b, order)

	event, err := b.Modify(order.OrderID, 40, limitAt(50.00))
	require.NoError(t, err)
	assert.Equal(t, common.EventModify, event.Kind)

	level, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(40), level.Quantity)
}

func TestModify_ZeroQuantityActsAsDelete(t *testing.T) {
	b := New(testInstrument())

	order := newTestOrder(common.Sell, common.LimitOrder, 30, limitAt(10.00))
	submit(t, b, order)

	event, err := b.Modify(order.OrderID, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, common.EventDelete, event.Kind)
	assert.True(t, b.IsEmpty())
}

func TestModify_UnknownOrder(t *testing.T) {
	b := New(testInstrument())
	_, err := b.Modify(uuid.New(), 10, limitAt(1.00))
	assert.ErrorIs(t, err, common.ErrUnknownOrder)
}

func TestDelete_RoundTripRestoresEmptyBook(t *testing.T) {
	b := New(testInstrument())

	order := newTestOrder(common.Buy, common.LimitOrder, 10, limitAt(5.00))
	submit(t, b, order)
	assert.False(t, b.IsEmpty())

	_, err := b.Delete(order.OrderID)
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())

	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestDelete_UnknownOrder(t *testing.T) {
	b := New(testInstrument())
	_, err := b.Delete(uuid.New())
	assert.ErrorIs(t, err, common.ErrUnknownOrder)
}

func TestDrain_ProcessesEntireInbox(t *testing.T) {
	b := New(testInstrument())

	require.NoError(t, b.Enqueue(newTestOrder(common.Sell, common.LimitOrder, 100, limitAt(90.00))))
	require.NoError(t, b.Enqueue(newTestOrder(common.Buy, common.LimitOrder, 40, limitAt(90.00))))
	require.NoError(t, b.Enqueue(newTestOrder(common.Buy, common.LimitOrder, 60, limitAt(90.00))))

	events := b.Drain()
	require.Len(t, events, 3)
	assert.Equal(t, common.EventAdd, events[0].Kind)
	assert.Equal(t, common.EventMatch, events[1].Kind)
	assert.Equal(t, common.EventMatch, events[2].Kind)
	assert.True(t, b.IsEmpty())
}

func TestEnqueue_RejectsInvalidOrder(t *testing.T) {
	b := New(testInstrument())

	order := newTestOrder(common.Buy, common.LimitOrder, 0, limitAt(10.00))
	err := b.Enqueue(order)
	assert.ErrorIs(t, err, common.ErrInvalidQuantity)
}

func TestEnqueue_LimitOrderWithoutPriceIsInvalid(t *testing.T) {
	b := New(testInstrument())
	order := newTestOrder(common.Buy, common.LimitOrder, 10, nil)
	err := b.Enqueue(order)
	assert.ErrorIs(t, err, common.ErrInvalidPrice)
}

func TestNoCrossedBookInvariant(t *testing.T) {
	b := New(testInstrument())

	submit(t, b, newTestOrder(common.Sell, common.LimitOrder, 10, limitAt(95.00)))
	submit(t, b, newTestOrder(common.Buy, common.LimitOrder, 10, limitAt(90.00)))

	bid, bidOk := b.BestBid()
	ask, askOk := b.BestAsk()
	require.True(t, bidOk)
	require.True(t, askOk)
	assert.True(t, bid.Price.LessThan(ask.Price))
}
