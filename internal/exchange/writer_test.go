package exchange

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/publish"
)

func TestSubmitQueued_RoutesThroughInstrumentWriter(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())

	tb, _ := tomb.WithContext(context.Background())
	ex.Start(tb)
	defer func() {
		tb.Kill(nil)
		tb.Wait()
	}()

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

	events, err := ex.SubmitQueued(order)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, common.EventAdd, events[0].Kind)
}

func TestSubmitQueued_UnknownInstrumentWithoutWriter(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	_, err := ex.SubmitQueued(common.Order{Instrument: common.Instrument{InstrumentID: uuid.New()}})
	assert.ErrorIs(t, err, common.ErrUnknownInstrument)
}

func TestStart_LaunchesWriterForPreregisteredInstrument(t *testing.T) {
	ex := New(IterationByID, nil, publish.NewLogPublisher())
	instrument := newInstrument("PRE")
	require.NoError(t, ex.RegisterInstrument(instrument, newParticipant()))

	tb, _ := tomb.WithContext(context.Background())
	// Start is called after registration here to exercise the
	// "already registered, writer launched on Start" branch; the
	// RegisterInstrument-after-Start branch is covered by
	// TestSubmitQueued_RoutesThroughInstrumentWriter.
	ex.Start(tb)
	defer func() {
		tb.Kill(nil)
		tb.Wait()
	}()

	order := common.Order{
		OrderID: uuid.New(), CreatorID: uuid.New(), Instrument: instrument,
		Side: common.Sell, Type: common.LimitOrder, Quantity: 3, CreatedAt: 1, Price: limitAt(2.0),
	}
	events, err := ex.SubmitQueued(order)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
