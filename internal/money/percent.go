package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Percent is a percentage expressed in basis points (1% = 100).
type Percent int64

const (
	// PercentDigits is the number of decimal places a Percent can carry
	PercentDigits = 2

	// Hundred is 100%
	Hundred Percent = 100 * 100
)

// PercentOf creates a Percent from a whole-number percentage
func PercentOf(whole int64) Percent {
	return Percent(whole * 100)
}

// NewPercentFromDecimal converts a decimal percentage such as 12.5 into a Percent.
// Range is not checked here; callers validate with Valid.
func NewPercentFromDecimal(d decimal.Decimal) (Percent, error) {
	if !d.Equal(d.Truncate(PercentDigits)) {
		return 0, ErrPrecision
	}
	bp := d.Shift(PercentDigits)
	if bp.Abs().GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return Percent(bp.IntPart()), nil
}

// ParsePercent parses a decimal percentage string
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("money: invalid percentage %q: %w", s, err)
	}
	return NewPercentFromDecimal(d)
}

// Valid reports whether the percentage lies in [0, 100]
func (p Percent) Valid() bool {
	return p >= 0 && p <= Hundred
}

// IsZero reports whether the percentage is zero
func (p Percent) IsZero() bool {
	return p == 0
}

// Decimal returns the percentage as a decimal number of percent
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PercentDigits)
}

// String formats the percentage without trailing zeros ("20", "12.5")
func (p Percent) String() string {
	return p.Decimal().String()
}

// MarshalJSON encodes the percentage as a JSON number
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON decodes a JSON number (or quoted number) into a Percent
func (p *Percent) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("money: empty percentage")
	}
	parsed, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// AmountFor returns pct of base, rounded half-up to the minor unit.
//
// A percentage outside [0, 100] or a negative base is a programming error and
// panics. A product that does not fit in int64 panics with ErrOverflow.
func AmountFor(base Amount, pct Percent) Amount {
	if !pct.Valid() {
		panic(fmt.Sprintf("money: percentage %s out of range [0,100]", pct))
	}
	if base < 0 {
		panic(ErrNegative)
	}
	if base == 0 || pct == 0 {
		return Zero
	}
	if int64(base) > math.MaxInt64/int64(pct) {
		panic(ErrOverflow)
	}

	product := int64(base) * int64(pct)
	quotient := product / int64(Hundred)
	if remainder := product % int64(Hundred); remainder*2 >= int64(Hundred) {
		quotient++
	}
	return Amount(quotient)
}
