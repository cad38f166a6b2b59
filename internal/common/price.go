package common

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Price is a 2-decimal fixed-point value. Every Price in this package is
// kept quantized to 2 places so that map-key equality and ordering are
// exact; floating-point comparison on prices is never used.
type Price struct {
	d decimal.Decimal
}

// ZeroPrice is the additive identity. An absent optional price (a
// MARKET order on input) is a nil *Price, distinct from ZeroPrice.
var ZeroPrice = Price{d: decimal.Zero}

// NewPrice quantizes a raw value to 2 decimal places.
func NewPrice(v float64) Price {
	return Price{d: decimal.NewFromFloat(v).Round(2)}
}

// NewPriceFromString parses a decimal string (e.g. from config or the
// wire) into a quantized Price.
func NewPriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return Price{d: d.Round(2)}, nil
}

func (p Price) Float64() float64 {
	f, _ := p.d.Float64()
	return f
}

func (p Price) String() string {
	return p.d.StringFixed(2)
}

// Cmp returns -1, 0, or 1 comparing p to other.
func (p Price) Cmp(other Price) int {
	return p.d.Cmp(other.d)
}

func (p Price) Equal(other Price) bool {
	return p.d.Equal(other.d)
}

func (p Price) LessThan(other Price) bool {
	return p.d.LessThan(other.d)
}

func (p Price) GreaterThan(other Price) bool {
	return p.d.GreaterThan(other.d)
}

func (p Price) IsPositive() bool {
	return p.d.IsPositive()
}

func (p Price) MarshalJSON() ([]byte, error) {
	f, _ := p.d.Float64()
	return json.Marshal(f)
}

func (p *Price) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = NewPrice(f)
	return nil
}
