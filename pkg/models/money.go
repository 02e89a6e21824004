package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount that travels over JSON as a two-decimal string
// ("160.00") and is stored as decimal(10,2).
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MustMoney is for literals in seeds and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) String() string {
	return m.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

func (m Money) Add(o Money) Money { return Money{Decimal: m.Decimal.Add(o.Decimal)} }

func (m Money) Mul(n int) Money { return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(n)))} }

func (m Money) Equal(o Money) bool { return m.Decimal.Equal(o.Decimal) }

// NullMoney is an optional amount; it encodes as JSON null and SQL NULL
// when unset.
type NullMoney struct {
	decimal.NullDecimal
}

func SomeMoney(m Money) NullMoney {
	return NullMoney{NullDecimal: decimal.NullDecimal{Decimal: m.Decimal, Valid: true}}
}

func (n NullMoney) Money() (Money, bool) {
	if !n.Valid {
		return Money{}, false
	}
	return Money{Decimal: n.Decimal}, true
}

func (n NullMoney) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + n.Decimal.StringFixed(2) + `"`), nil
}

func (n *NullMoney) UnmarshalJSON(data []byte) error {
	if string(data) == `""` {
		n.Valid = false
		return nil
	}
	return n.NullDecimal.UnmarshalJSON(data)
}
