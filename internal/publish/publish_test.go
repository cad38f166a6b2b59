package publish

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/saiputravu/ledgerline/internal/common"
)

func TestChannelFor_UsesTickerPrefix(t *testing.T) {
	event := common.ExecutionEvent{
		Order: common.Order{
			Instrument: common.Instrument{Ticker: "ACME"},
		},
	}
	assert.Equal(t, "stock:ACME", channelFor(event))
}

func TestLogPublisher_NeverErrors(t *testing.T) {
	p := NewLogPublisher()
	price := common.NewPrice(10.5)
	event := common.ExecutionEvent{
		Kind:      common.EventMatch,
		ActorID:   uuid.New(),
		Timestamp: time.Now(),
		Order: common.Order{
			OrderID:    uuid.New(),
			Instrument: common.Instrument{Ticker: "ACME"},
			Price:      &price,
		},
		Counterparty: &common.Order{OrderID: uuid.New()},
	}
	assert.NoError(t, p.Publish(event))
}
