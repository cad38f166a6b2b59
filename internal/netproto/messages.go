// Package netproto implements the TCP wire protocol for the order
// submission/query API: a fixed big-endian binary framing with
// NewOrder, ModifyOrder, CancelOrder, RegisterInstrument, Heartbeat,
// and LogBook message types.
package netproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/saiputravu/ledgerline/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified payload length")
)

// MessageType enumerates the inbound submission/query messages.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	ModifyOrder
	CancelOrder
	RegisterInstrument
	LogBook
)

// ReportKind enumerates outbound report messages, with a per-event
// kind byte so a wire client can tell ADD/MODIFY/DELETE/MATCH apart
// without guessing from message shape.
type ReportKind uint8

const (
	ReportAdd ReportKind = iota
	ReportModify
	ReportDelete
	ReportMatch
	ReportError
)

func reportKindFor(kind common.EventKind) ReportKind {
	switch kind {
	case common.EventAdd:
		return ReportAdd
	case common.EventModify:
		return ReportModify
	case common.EventDelete:
		return ReportDelete
	default:
		return ReportMatch
	}
}

// Wire format constants. BaseMessageHeaderLen is the 2-byte
// message-type prefix on every inbound message.
const (
	BaseMessageHeaderLen = 2

	// OrderType(2) + TickerLen(1) + Price(8) + Qty(8) + Side(1) +
	// InstrumentUUID(16) + CreatorUUID(16) + CreatedAt(8); ticker itself
	// trails the fixed body, length-prefixed by TickerLen.
	newOrderFixedLen = 2 + 1 + 8 + 8 + 1 + 16 + 16 + 8

	modifyOrderFixedLen = 16 + 16 + 8 + 8 // instrumentID + orderID + qty + price

	cancelOrderFixedLen = 16 + 16 // instrumentID + orderID

	registerInstrumentFixedLen = 16 + 16 + 1 // instrumentID + issuerID + nameLen (ticker/name length-prefixed below)
)

// NewOrderMessage is the wire form of a new order submission.
type NewOrderMessage struct {
	InstrumentID uuid.UUID
	Ticker       string
	OrderType    common.OrderType
	Side         common.Side
	Price        common.Price
	HasPrice     bool
	Quantity     uint64
	CreatorID    uuid.UUID
	// OrderID is not carried on the wire: the server mints it on decode
	// (callers don't know an order's id until it exists).
	OrderID   uuid.UUID
	CreatedAt int64
}

// Order builds the domain Order this message describes. Name is filled
// with the ticker — the wire protocol only carries a ticker; callers wishing to
// validate against a full Instrument should look it up by InstrumentID.
func (m NewOrderMessage) Order() common.Order {
	var price *common.Price
	if m.HasPrice {
		p := m.Price
		price = &p
	}
	return common.Order{
		OrderID:       m.OrderID,
		CreatorID:     m.CreatorID,
		Instrument:    common.Instrument{InstrumentID: m.InstrumentID, Ticker: m.Ticker, Name: m.Ticker},
		Side:          m.Side,
		Type:          m.OrderType,
		Quantity:      m.Quantity,
		TotalQuantity: m.Quantity,
		CreatedAt:     m.CreatedAt,
		Price:         price,
	}
}

// EncodeNewOrder serializes a NewOrderMessage onto the wire.
func EncodeNewOrder(m NewOrderMessage) []byte {
	tickerBytes := []byte(m.Ticker)
	total := BaseMessageHeaderLen + newOrderFixedLen + len(tickerBytes)
	buf := make([]byte, total)

	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	off := 2

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(m.OrderType))
	off += 2
	buf[off] = byte(len(tickerBytes))
	off++
	price := m.Price.Float64()
	if !m.HasPrice {
		price = math.NaN()
	}
	binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.Quantity)
	off += 8
	buf[off] = byte(m.Side)
	off++
	copy(buf[off:off+16], m.InstrumentID[:])
	off += 16
	copy(buf[off:off+16], m.CreatorID[:])
	off += 16
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.CreatedAt))
	off += 8
	copy(buf[off:], tickerBytes)

	return buf
}

// DecodeNewOrder parses the body of a NewOrder message (header already
// stripped by Decode).
func DecodeNewOrder(body []byte) (NewOrderMessage, error) {
	if len(body) < newOrderFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	var m NewOrderMessage
	off := 0

	m.OrderType = common.OrderType(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	tickerLen := int(body[off])
	off++
	priceBits := math.Float64frombits(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	if !math.IsNaN(priceBits) {
		m.HasPrice = true
		m.Price = common.NewPrice(priceBits)
	}
	m.Quantity = binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	m.Side = common.Side(body[off])
	off++
	copy(m.InstrumentID[:], body[off:off+16])
	off += 16
	copy(m.CreatorID[:], body[off:off+16])
	off += 16
	m.CreatedAt = int64(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8

	if len(body) < off+tickerLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Ticker = string(body[off : off+tickerLen])
	m.OrderID = uuid.New()
	return m, nil
}

// ModifyOrderMessage is the wire form of a resting-order adjustment.
type ModifyOrderMessage struct {
	InstrumentID uuid.UUID
	OrderID      uuid.UUID
	NewQuantity  uint64
	NewPrice     common.Price
}

func EncodeModifyOrder(m ModifyOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+modifyOrderFixedLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ModifyOrder))
	off := 2
	copy(buf[off:off+16], m.InstrumentID[:])
	off += 16
	copy(buf[off:off+16], m.OrderID[:])
	off += 16
	binary.BigEndian.PutUint64(buf[off:off+8], m.NewQuantity)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(m.NewPrice.Float64()))
	return buf
}

func DecodeModifyOrder(body []byte) (ModifyOrderMessage, error) {
	if len(body) < modifyOrderFixedLen {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	var m ModifyOrderMessage
	off := 0
	copy(m.InstrumentID[:], body[off:off+16])
	off += 16
	copy(m.OrderID[:], body[off:off+16])
	off += 16
	m.NewQuantity = binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	m.NewPrice = common.NewPrice(math.Float64frombits(binary.BigEndian.Uint64(body[off : off+8])))
	return m, nil
}

// CancelOrderMessage is the wire form of an order cancellation.
type CancelOrderMessage struct {
	InstrumentID uuid.UUID
	OrderID      uuid.UUID
}

func EncodeCancelOrder(m CancelOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+cancelOrderFixedLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	copy(buf[2:18], m.InstrumentID[:])
	copy(buf[18:34], m.OrderID[:])
	return buf
}

func DecodeCancelOrder(body []byte) (CancelOrderMessage, error) {
	if len(body) < cancelOrderFixedLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	var m CancelOrderMessage
	copy(m.InstrumentID[:], body[0:16])
	copy(m.OrderID[:], body[16:32])
	return m, nil
}

// RegisterInstrumentMessage is the wire form of an instrument
// registration request.
type RegisterInstrumentMessage struct {
	InstrumentID uuid.UUID
	IssuerID     uuid.UUID
	Name         string
	Ticker       string
}

func EncodeRegisterInstrument(m RegisterInstrumentMessage) []byte {
	nameBytes := []byte(m.Name)
	tickerBytes := []byte(m.Ticker)
	total := BaseMessageHeaderLen + registerInstrumentFixedLen + len(nameBytes) + 1 + len(tickerBytes)
	buf := make([]byte, total)

	binary.BigEndian.PutUint16(buf[0:2], uint16(RegisterInstrument))
	off := 2
	copy(buf[off:off+16], m.InstrumentID[:])
	off += 16
	copy(buf[off:off+16], m.IssuerID[:])
	off += 16
	buf[off] = byte(len(nameBytes))
	off++
	copy(buf[off:off+len(nameBytes)], nameBytes)
	off += len(nameBytes)
	buf[off] = byte(len(tickerBytes))
	off++
	copy(buf[off:], tickerBytes)

	return buf
}

func DecodeRegisterInstrument(body []byte) (RegisterInstrumentMessage, error) {
	if len(body) < registerInstrumentFixedLen {
		return RegisterInstrumentMessage{}, ErrMessageTooShort
	}
	var m RegisterInstrumentMessage
	off := 0
	copy(m.InstrumentID[:], body[off:off+16])
	off += 16
	copy(m.IssuerID[:], body[off:off+16])
	off += 16
	nameLen := int(body[off])
	off++
	if len(body) < off+nameLen+1 {
		return RegisterInstrumentMessage{}, ErrMessageTooShort
	}
	m.Name = string(body[off : off+nameLen])
	off += nameLen
	tickerLen := int(body[off])
	off++
	if len(body) < off+tickerLen {
		return RegisterInstrumentMessage{}, ErrMessageTooShort
	}
	m.Ticker = string(body[off : off+tickerLen])
	return m, nil
}

// EncodeHeartbeat / EncodeLogBook are bare header-only messages.
func EncodeHeartbeat() []byte { return headerOnly(Heartbeat) }
func EncodeLogBook() []byte   { return headerOnly(LogBook) }

func headerOnly(t MessageType) []byte {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(t))
	return buf
}

// DecodedMessage is the result of decoding one inbound frame.
type DecodedMessage struct {
	Type            MessageType
	NewOrder        *NewOrderMessage
	ModifyOrder     *ModifyOrderMessage
	CancelOrder     *CancelOrderMessage
	RegisterInstrum *RegisterInstrumentMessage
}

// Decode parses a raw inbound frame into its typed payload.
func Decode(raw []byte) (DecodedMessage, error) {
	if len(raw) < BaseMessageHeaderLen {
		return DecodedMessage{}, fmt.Errorf("%w: message too short for header", ErrMessageTooShort)
	}
	msgType := MessageType(binary.BigEndian.Uint16(raw[0:2]))
	body := raw[2:]

	switch msgType {
	case Heartbeat, LogBook:
		return DecodedMessage{Type: msgType}, nil
	case NewOrder:
		m, err := DecodeNewOrder(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Type: msgType, NewOrder: &m}, nil
	case ModifyOrder:
		m, err := DecodeModifyOrder(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Type: msgType, ModifyOrder: &m}, nil
	case CancelOrder:
		m, err := DecodeCancelOrder(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Type: msgType, CancelOrder: &m}, nil
	case RegisterInstrument:
		m, err := DecodeRegisterInstrument(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Type: msgType, RegisterInstrum: &m}, nil
	default:
		return DecodedMessage{}, ErrInvalidMessageType
	}
}
