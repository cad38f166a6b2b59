package netproto

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/exchange"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Second
	taskChanSize       = 100
)

// workerFunc is one unit of connection work, run by a fixed pool of
// tomb-supervised goroutines reading from a shared connection channel.
type workerFunc func(t *tomb.Tomb, conn net.Conn) error

type workerPool struct {
	n     int
	tasks chan net.Conn
	work  workerFunc
}

func newWorkerPool(size int) workerPool {
	return workerPool{tasks: make(chan net.Conn, taskChanSize), n: size}
}

func (pool *workerPool) addTask(conn net.Conn) {
	pool.tasks <- conn
}

func (pool *workerPool) setup(t *tomb.Tomb, work workerFunc) {
	pool.work = work
	log.Info().Int("workers", pool.n).Msg("starting connection worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error { return pool.loop(t) })
	}
}

func (pool *workerPool) loop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case conn := <-pool.tasks:
			if err := pool.work(t, conn); err != nil {
				log.Error().Err(err).Msg("connection worker exiting")
				return err
			}
		}
	}
}

// clientSession tracks one connected TCP client, keyed in
// Server.sessions by the connection's remote address (the wire
// protocol carries no separate login step).
type clientSession struct {
	conn net.Conn
}

// Server is the TCP front end over internal/exchange.Exchange: it
// accepts connections, decodes frames, and routes each one through
// the full Exchange registry — order submission, modification,
// cancellation, and instrument registration.
type Server struct {
	address string
	port    int
	ex      *exchange.Exchange
	pool    workerPool

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	cancel context.CancelFunc
}

// New constructs a Server bound to ex, listening on address:port.
func New(address string, port int, ex *exchange.Exchange) *Server {
	return &Server{
		address:  address,
		port:     port,
		ex:       ex,
		pool:     newWorkerPool(defaultNWorkers),
		sessions: make(map[string]clientSession),
	}
}

// Shutdown cancels the server's listen/accept loop.
func (s *Server) Shutdown() {
	log.Info().Msg("netproto server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens and accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("error closing listener")
		}
	}()

	t.Go(func() error {
		s.pool.setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("address", listener.Addr().String()).Msg("netproto server listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					log.Error().Err(err).Msg("error accepting connection")
					continue
				}
			}
			s.addSession(conn)
			s.pool.addTask(conn)
		}
	}
}

// handleConnection reads one frame off conn, decodes and dispatches
// it, writes back any report, and re-queues the connection for its
// next message. Any returned error is fatal to the worker.
func (s *Server) handleConnection(t *tomb.Tomb, conn net.Conn) error {
	select {
	case <-t.Dying():
		return nil
	default:
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		return nil
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		s.removeSession(conn.RemoteAddr().String())
		return nil
	}

	decoded, err := Decode(buf[:n])
	if err != nil {
		s.writeError(conn, err)
		s.pool.addTask(conn)
		return nil
	}

	s.dispatch(conn, decoded)
	s.pool.addTask(conn)
	return nil
}

func (s *Server) dispatch(conn net.Conn, msg DecodedMessage) {
	switch msg.Type {
	case NewOrder:
		order := msg.NewOrder.Order()
		events, err := s.ex.SubmitQueued(order)
		if err != nil {
			log.Error().Err(err).Str("orderID", order.OrderID.String()).Msg("order rejected")
			s.writeError(conn, err)
			return
		}
		s.writeEvents(conn, events)
	case ModifyOrder:
		var newPrice *common.Price
		if msg.ModifyOrder.NewPrice.IsPositive() {
			p := msg.ModifyOrder.NewPrice
			newPrice = &p
		}
		event, err := s.ex.ModifyOrder(msg.ModifyOrder.InstrumentID, msg.ModifyOrder.OrderID, msg.ModifyOrder.NewQuantity, newPrice)
		if err != nil {
			log.Error().Err(err).Msg("modify rejected")
			s.writeError(conn, err)
			return
		}
		s.writeEvents(conn, []common.ExecutionEvent{event})
	case CancelOrder:
		event, err := s.ex.CancelOrder(msg.CancelOrder.InstrumentID, msg.CancelOrder.OrderID)
		if err != nil {
			log.Error().Err(err).Msg("cancel rejected")
			s.writeError(conn, err)
			return
		}
		s.writeEvents(conn, []common.ExecutionEvent{event})
	case RegisterInstrument:
		instrument := common.Instrument{
			InstrumentID: msg.RegisterInstrum.InstrumentID,
			Name:         msg.RegisterInstrum.Name,
			Ticker:       msg.RegisterInstrum.Ticker,
		}
		issuer := common.Participant{ParticipantID: msg.RegisterInstrum.IssuerID}
		if err := s.ex.RegisterInstrument(instrument, issuer); err != nil {
			log.Error().Err(err).Str("ticker", instrument.Ticker).Msg("registration rejected")
			s.writeError(conn, err)
		}
	case Heartbeat:
		// no-op liveness probe
	case LogBook:
		log.Info().Msg("log book requested (unimplemented over wire; use metrics/exchange introspection)")
	}
}

func (s *Server) writeEvents(conn net.Conn, events []common.ExecutionEvent) {
	for _, event := range events {
		report := encodeReport(reportKindFor(event.Kind), event, nil)
		if _, err := conn.Write(report); err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed writing report")
			s.removeSession(conn.RemoteAddr().String())
			return
		}
	}
}

func (s *Server) writeError(conn net.Conn, cause error) {
	report := encodeReport(ReportError, common.ExecutionEvent{}, cause)
	if _, err := conn.Write(report); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed writing error report")
		s.removeSession(conn.RemoteAddr().String())
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) removeSession(address string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, address)
}

// encodeReport builds an outbound report frame. Report frames are a
// distinct wire direction from the inbound messages Decode parses, so
// they carry their own 1-byte ReportKind rather than the inbound
// 2-byte MessageType header: a 16-byte order id, then either a
// length-prefixed error message (ReportError) or the event's match
// quantities.
func encodeReport(kind ReportKind, event common.ExecutionEvent, cause error) []byte {
	if kind == ReportError {
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		buf := make([]byte, 1+16+1+len(msg))
		buf[0] = byte(kind)
		// order id left zero: a bare error report is not tied to one order
		buf[17] = byte(len(msg))
		copy(buf[18:], msg)
		return buf
	}

	orderID := event.Order.OrderID
	buf := make([]byte, 1+16+8+8)
	off := 0
	buf[off] = byte(kind)
	off++
	copy(buf[off:off+16], orderID[:])
	off += 16
	binary.BigEndian.PutUint64(buf[off:off+8], event.Order.Quantity)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], event.MatchQuantity)
	return buf
}
