package exchange

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/publish"
)

func newInstrument(ticker string) common.Instrument {
	outstanding := uint64(1_000_000)
	return common.Instrument{
		InstrumentID:      uuid.New(),
		Name:              "Test " + ticker,
		Ticker:            ticker,
		OutstandingShares: &outstanding,
	}
}

func newParticipant() common.Participant {
	return common.Participant{ParticipantID: uuid.New(), DisplayName: "issuer"}
}

func limitAt(v float64) *common.Price {
	p := common.NewPrice(v)
	return &p
}

func TestRegisterInstrument_CreatesBookAndIssuerHolding(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	instrument := newInstrument("ACME")
	issuer := newParticipant()

	require.NoError(t, ex.RegisterInstrument(instrument, issuer))

	got, err := ex.GetInstrument(instrument.InstrumentID)
	require.NoError(t, err)
	assert.Equal(t, instrument.Ticker, got.Ticker)

	holding := ex.GetHolding(issuer.ParticipantID, instrument.InstrumentID)
	assert.Equal(t, *instrument.OutstandingShares, holding.Quantity)
}

func TestRegisterInstrument_RejectsDuplicate(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	instrument := newInstrument("ACME")
	issuer := newParticipant()

	require.NoError(t, ex.RegisterInstrument(instrument, issuer))
	err := ex.RegisterInstrument(instrument, issuer)
	assert.ErrorIs(t, err, common.ErrDuplicateInstrument)
}

func TestRemoveInstrument_FailsWhileBookInUse(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	instrument := newInstrument("ACME")
	issuer := newParticipant()
	require.NoError(t, ex.RegisterInstrument(instrument, issuer))

	order := common.Order{
		OrderID:    uuid.New(),
		CreatorID:  uuid.New(),
		Instrument: instrument,
		Side:       common.Buy,
		Type:       common.LimitOrder,
		Quantity:   10,
		CreatedAt:  1,
		Price:      limitAt(10.0),
	}
	_, err := ex.Submit(order)
	require.NoError(t, err)

	err = ex.RemoveInstrument(instrument.InstrumentID)
	assert.ErrorIs(t, err, common.ErrInstrumentInUse)

	_, err = ex.CancelOrder(instrument.InstrumentID, order.OrderID)
	require.NoError(t, err)

	require.NoError(t, ex.RemoveInstrument(instrument.InstrumentID))
	_, err = ex.GetInstrument(instrument.InstrumentID)
	assert.ErrorIs(t, err, common.ErrUnknownInstrument)
}

func TestSubmit_UnknownInstrument(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	order := common.Order{
		OrderID:    uuid.New(),
		CreatorID:  uuid.New(),
		Instrument: newInstrument("NOPE"),
		Side:       common.Buy,
		Type:       common.LimitOrder,
		Quantity:   10,
		CreatedAt:  1,
		Price:      limitAt(10.0),
	}
	_, err := ex.Submit(order)
	assert.ErrorIs(t, err, common.ErrUnknownInstrument)
}

func TestDrainAll_DeterministicByInstrumentID(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	a := newInstrument("AAA")
	b := newInstrument("BBB")
	issuer := newParticipant()
	require.NoError(t, ex.RegisterInstrument(a, issuer))
	require.NoError(t, ex.RegisterInstrument(b, issuer))

	bookA, err := ex.GetBookSnapshot(a.InstrumentID)
	require.NoError(t, err)
	bookB, err := ex.GetBookSnapshot(b.InstrumentID)
	require.NoError(t, err)
	require.NoError(t, bookB.Enqueue(common.Order{
		OrderID: uuid.New(), CreatorID: uuid.New(), Instrument: b,
		Side: common.Buy, Type: common.LimitOrder, Quantity: 5, CreatedAt: 1, Price: limitAt(1.0),
	}))
	require.NoError(t, bookA.Enqueue(common.Order{
		OrderID: uuid.New(), CreatorID: uuid.New(), Instrument: a,
		Side: common.Buy, Type: common.LimitOrder, Quantity: 5, CreatedAt: 1, Price: limitAt(1.0),
	}))

	first, second := a, b
	if b.InstrumentID.String() < a.InstrumentID.String() {
		first, second = b, a
	}

	events := ex.DrainAll()
	require.Len(t, events, 2)
	assert.Equal(t, common.EventAdd, events[0].Kind)
	assert.Equal(t, first.InstrumentID, events[0].Order.Instrument.InstrumentID)
	assert.Equal(t, second.InstrumentID, events[1].Order.Instrument.InstrumentID)
}

func TestModifyAndCancelOrder_Delegate(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	instrument := newInstrument("ACME")
	issuer := newParticipant()
	require.NoError(t, ex.RegisterInstrument(instrument, issuer))

	order := common.Order{
		OrderID: uuid.New(), CreatorID: uuid.New(), Instrument: instrument,
		Side: common.Sell, Type: common.LimitOrder, Quantity: 20, CreatedAt: 1, Price: limitAt(5.0),
	}
	_, err := ex.Submit(order)
	require.NoError(t, err)

	event, err := ex.ModifyOrder(instrument.InstrumentID, order.OrderID, 10, limitAt(5.0))
	require.NoError(t, err)
	assert.Equal(t, common.EventModify, event.Kind)

	event, err = ex.CancelOrder(instrument.InstrumentID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, common.EventDelete, event.Kind)
}
