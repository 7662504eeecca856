// Package money provides fixed-point monetary amounts and percentages.
//
// Amounts are stored as an integer count of minor currency units and
// percentages as an integer count of basis points, so fee and refund
// arithmetic never touches binary floating point. Decimal parsing and
// formatting at the edges (JSON, SQL, CLI input) goes through
// shopspring/decimal.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of decimal places of the currency minor unit.
const MinorDigits = 2

var (
	// ErrNegative is returned when a negative monetary value is supplied
	ErrNegative = errors.New("money: negative amount")

	// ErrPrecision is returned when a value has more decimal places than supported
	ErrPrecision = errors.New("money: too many decimal places")

	// ErrOverflow is returned (or raised) when a value does not fit in int64 minor units
	ErrOverflow = errors.New("money: overflow")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Amount is a non-negative monetary value expressed in minor units.
type Amount int64

// Zero is the zero amount
const Zero Amount = 0

// FromMinor creates an Amount from a count of minor units
func FromMinor(minor int64) (Amount, error) {
	if minor < 0 {
		return 0, ErrNegative
	}
	return Amount(minor), nil
}

// NewFromDecimal converts a decimal major-unit value into an Amount.
// Values with more than MinorDigits decimal places are rejected rather than rounded.
func NewFromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if !d.Equal(d.Truncate(MinorDigits)) {
		return 0, ErrPrecision
	}
	minor := d.Shift(MinorDigits)
	if minor.GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return Amount(minor.IntPart()), nil
}

// Parse parses a major-unit decimal string such as "99.99"
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return NewFromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Minor returns the amount in minor units
func (a Amount) Minor() int64 {
	return int64(a)
}

// Decimal returns the amount in major units
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorDigits)
}

// IsZero reports whether the amount is zero
func (a Amount) IsZero() bool {
	return a == 0
}

// String formats the amount with exactly MinorDigits decimal places
func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorDigits)
}

// MarshalJSON encodes the amount as a JSON number with fixed decimals
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("money: empty amount")
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer for NUMERIC columns
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns
func (a *Amount) Scan(src interface{}) error {
	var (
		parsed Amount
		err    error
	)
	switch v := src.(type) {
	case []byte:
		parsed, err = Parse(string(v))
	case string:
		parsed, err = Parse(v)
	case int64:
		parsed, err = NewFromDecimal(decimal.NewFromInt(v))
	case float64:
		parsed, err = NewFromDecimal(decimal.NewFromFloat(v).Round(MinorDigits))
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
