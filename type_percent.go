package dca

import "github.com/shopspring/decimal"

// Percent is a ratio expressed in percent, 50 means half.
type Percent struct {
	value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole in percent, whole must not be zero.
func percentOf(part, whole Money) Percent {
	return Percent{value: part.ratio(whole).Mul(hundred)}
}

func (p Percent) Decimal() decimal.Decimal { return p.value }
func (p Percent) Equal(q Percent) bool     { return p.value.Equal(q.value) }
func (p Percent) IsZero() bool             { return p.value.IsZero() }

func (p Percent) String() string {
	return p.value.StringFixed(2) + "%"
}

func (p Percent) SignedString() string {
	if p.value.Round(2).IsPositive() {
		return "+" + p.String()
	}
	return p.String()
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return p.value.Round(4).MarshalJSON()
}
