package exchange

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/publish"
)

// submission is one unit of work handed to a per-instrument writer.
type submission struct {
	order  common.Order
	result chan<- submissionResult
}

type submissionResult struct {
	events []common.ExecutionEvent
	err    error
}

// InstrumentWriter is the single-writer goroutine for one instrument's
// OrderBook: a tomb-supervised goroutine draining a per-instrument
// submission queue, so concurrent callers never race on the same book.
type InstrumentWriter struct {
	instrumentID uuid.UUID
	exchange     *Exchange
	publisher    publish.ExecutionPublisher
	submissions  chan submission
}

// NewInstrumentWriter returns a writer for instrumentID. Run must be
// called (typically via t.Go) to start consuming submissions.
func NewInstrumentWriter(instrumentID uuid.UUID, ex *Exchange, publisher publish.ExecutionPublisher) *InstrumentWriter {
	return &InstrumentWriter{
		instrumentID: instrumentID,
		exchange:     ex,
		publisher:    publisher,
		submissions:  make(chan submission, 256),
	}
}

// Submit enqueues order for this writer and blocks until it has been
// stepped, returning the resulting execution events.
func (w *InstrumentWriter) Submit(order common.Order) ([]common.ExecutionEvent, error) {
	result := make(chan submissionResult, 1)
	w.submissions <- submission{order: order, result: result}
	r := <-result
	return r.events, r.err
}

// Run drains submissions until the tomb is dying. The submitter gets
// its result before publication; the events are then published inline
// on this goroutine, so a slow publisher delays the next submission
// for this instrument. Publish failures are logged and do not roll
// back the already-mutated book state.
func (w *InstrumentWriter) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case s := <-w.submissions:
			events, err := w.exchange.Submit(s.order)
			s.result <- submissionResult{events: events, err: err}
			if err != nil {
				continue
			}
			for _, event := range events {
				if pubErr := w.publisher.Publish(event); pubErr != nil {
					log.Error().
						Err(pubErr).
						Str("instrumentID", w.instrumentID.String()).
						Msg("execution event publish failed")
				}
			}
		}
	}
}
