// Package publish implements the ExecutionPublisher output port: an
// observer of execution events, decoupled from the matching core by a
// transport-agnostic interface so transport failures are never fatal
// to book state.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/saiputravu/ledgerline/internal/common"
)

// ExecutionPublisher observes every execution event the matcher
// emits. Publish failures are non-fatal: the authoritative book state
// is already mutated by the time Publish is called.
type ExecutionPublisher interface {
	Publish(event common.ExecutionEvent) error
}

// wireEvent is the JSON-serializable execution event shape published
// to subscribers.
type wireEvent struct {
	Kind         common.EventKind `json:"kind"`
	ActorID      string           `json:"actor_id"`
	Timestamp    int64            `json:"timestamp"`
	Order        wireOrder        `json:"order"`
	Counterparty *wireOrder       `json:"counterparty"`
}

type wireOrder struct {
	OrderID    string         `json:"order_id"`
	CreatorID  string         `json:"creator_id"`
	Instrument wireInstrument `json:"instrument"`
	Side       string         `json:"side"`
	Type       string         `json:"type"`
	Quantity   uint64         `json:"quantity"`
	CreatedAt  int64          `json:"created_at"`
	Price      *float64       `json:"price"`
}

type wireInstrument struct {
	InstrumentID string `json:"instrument_id"`
	Name         string `json:"name"`
	Ticker       string `json:"ticker"`
}

func toWireOrder(o common.Order) wireOrder {
	var price *float64
	if o.Price != nil {
		f := o.Price.Float64()
		price = &f
	}
	orderType := "LIMIT"
	if o.Type == common.MarketOrder {
		orderType = "MARKET"
	}
	return wireOrder{
		OrderID:   o.OrderID.String(),
		CreatorID: o.CreatorID.String(),
		Instrument: wireInstrument{
			InstrumentID: o.Instrument.InstrumentID.String(),
			Name:         o.Instrument.Name,
			Ticker:       o.Instrument.Ticker,
		},
		Side:      o.Side.String(),
		Type:      orderType,
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt,
		Price:     price,
	}
}

func toWireEvent(e common.ExecutionEvent) wireEvent {
	w := wireEvent{
		Kind:      e.Kind,
		ActorID:   e.ActorID.String(),
		Timestamp: e.Timestamp.Unix(),
		Order:     toWireOrder(e.Order),
	}
	if e.Counterparty != nil {
		cp := toWireOrder(*e.Counterparty)
		w.Counterparty = &cp
	}
	return w
}

// channelFor builds the "stock:<TICKER>" logical channel name.
func channelFor(event common.ExecutionEvent) string {
	return fmt.Sprintf("stock:%s", event.Order.Instrument.Ticker)
}

// RedisPublisher fans execution events out over Redis pub/sub, one
// channel per instrument ticker. Multiple subscribers may listen on
// the same channel with no required retention.
type RedisPublisher struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPublisher dials addr (e.g. "localhost:6379").
func NewRedisPublisher(ctx context.Context, addr string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ctx:    ctx,
	}
}

func (p *RedisPublisher) Publish(event common.ExecutionEvent) error {
	payload, err := json.Marshal(toWireEvent(event))
	if err != nil {
		return fmt.Errorf("marshal execution event: %w", err)
	}
	return p.client.Publish(p.ctx, channelFor(event), payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher writes execution events to the structured logger. Used
// for local development and as the fallback when no Redis endpoint is
// configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(event common.ExecutionEvent) error {
	logEvent := log.Info().
		Str("kind", event.Kind.String()).
		Str("channel", channelFor(event)).
		Str("actorID", event.ActorID.String()).
		Str("orderID", event.Order.OrderID.String()).
		Str("ticker", event.Order.Instrument.Ticker).
		Uint64("quantity", event.MatchQuantity)
	if event.Counterparty != nil {
		logEvent = logEvent.Str("counterpartyOrderID", event.Counterparty.OrderID.String())
	}
	logEvent.Time("timestamp", timestampOrNow(event.Timestamp)).Msg("execution event")
	return nil
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
