package money

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of minor-unit digits in one major unit (wei per ETH).
const Decimals = 18

// displayDigits caps the fractional digits shown by String.
const displayDigits = 5

// Symbol is appended to the display form.
const Symbol = "ETH"

// ErrInvalidValue is returned for negative amounts, malformed decimal strings
// and out-of-range percentages.
var ErrInvalidValue = errors.New("money: invalid value")

var (
	decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
	unitsPerMajor  = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	hundred        = big.NewInt(100)
)

// Money is a non-negative amount in minor units. The zero value is zero.
// Values are immutable; every operation returns a new Money.
type Money struct {
	amount *big.Int
}

// Zero returns a zero amount.
func Zero() Money {
	return Money{amount: new(big.Int)}
}

// FromMinor builds Money from an amount already expressed in minor units.
func FromMinor(n *big.Int) (Money, error) {
	if n == nil {
		return Zero(), nil
	}
	if n.Sign() < 0 {
		return Money{}, fmt.Errorf("%w: negative amount %s", ErrInvalidValue, n.String())
	}
	return Money{amount: new(big.Int).Set(n)}, nil
}

// FromMinorInt64 is FromMinor for small literals.
func FromMinorInt64(n int64) (Money, error) {
	return FromMinor(big.NewInt(n))
}

// FromMajor builds Money from a whole number of major units.
func FromMajor(n int64) (Money, error) {
	if n < 0 {
		return Money{}, fmt.Errorf("%w: negative amount %d", ErrInvalidValue, n)
	}
	return Money{amount: new(big.Int).Mul(big.NewInt(n), unitsPerMajor)}, nil
}

// Parse reads a plain decimal string in major units such as "12" or "0.25".
// Signs, exponents and surrounding whitespace are rejected. Fractional digits
// past Decimals are truncated.
func Parse(s string) (Money, error) {
	if !decimalPattern.MatchString(s) {
		return Money{}, fmt.Errorf("%w: malformed decimal %q", ErrInvalidValue, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts a major-unit decimal, truncating below one minor unit.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.Sign() < 0 {
		return Money{}, fmt.Errorf("%w: negative amount %s", ErrInvalidValue, d.String())
	}
	return Money{amount: d.Shift(Decimals).BigInt()}, nil
}

func (m Money) int() *big.Int {
	if m.amount == nil {
		return new(big.Int)
	}
	return m.amount
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{amount: new(big.Int).Add(m.int(), o.int())}
}

// Sub returns m - o and fails when the result would be negative.
func (m Money) Sub(o Money) (Money, error) {
	out := new(big.Int).Sub(m.int(), o.int())
	if out.Sign() < 0 {
		return Money{}, fmt.Errorf("%w: %s - %s is negative", ErrInvalidValue, m.MinorString(), o.MinorString())
	}
	return Money{amount: out}, nil
}

// Mul multiplies by an integer quantity.
func (m Money) Mul(quantity int) (Money, error) {
	if quantity < 0 {
		return Money{}, fmt.Errorf("%w: negative quantity %d", ErrInvalidValue, quantity)
	}
	return Money{amount: new(big.Int).Mul(m.int(), big.NewInt(int64(quantity)))}, nil
}

// ApplyPercentage returns floor(m * pct / 100) for pct in [0, 100].
func (m Money) ApplyPercentage(pct int) (Money, error) {
	if pct < 0 || pct > 100 {
		return Money{}, fmt.Errorf("%w: percentage %d outside 0-100", ErrInvalidValue, pct)
	}
	out := new(big.Int).Mul(m.int(), big.NewInt(int64(pct)))
	return Money{amount: out.Quo(out, hundred)}, nil
}

// MulRatio returns floor(m * num / den). den must be positive.
func (m Money) MulRatio(num, den Money) (Money, error) {
	if den.IsZero() {
		return Money{}, fmt.Errorf("%w: zero ratio denominator", ErrInvalidValue)
	}
	out := new(big.Int).Mul(m.int(), num.int())
	return Money{amount: out.Quo(out, den.int())}, nil
}

// Cmp compares two amounts and returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.int().Cmp(o.int())
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool { return m.Cmp(o) < 0 }

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool { return m.Cmp(o) > 0 }

// Equal reports m == o.
func (m Money) Equal(o Money) bool { return m.Cmp(o) == 0 }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.int().Sign() == 0 }

// Min returns a when a <= b, otherwise b.
func Min(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Minor returns a copy of the amount in minor units.
func (m Money) Minor() *big.Int {
	return new(big.Int).Set(m.int())
}

// MinorString renders the minor-unit integer, e.g. "1500000000000000000".
func (m Money) MinorString() string {
	return m.int().String()
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(m.int(), -Decimals)
}

// DecimalString renders the exact major-unit amount with trailing zeros
// trimmed. Parse(m.DecimalString()) == m.
func (m Money) DecimalString() string {
	return m.Decimal().String()
}

// Display renders the whole part plus up to five fractional digits, trailing
// zeros stripped: "75", "1.5", "0.12345".
func (m Money) Display() string {
	whole, rem := new(big.Int).QuoRem(m.int(), unitsPerMajor, new(big.Int))
	if rem.Sign() == 0 {
		return whole.String()
	}
	digits := rem.String()
	frac := strings.Repeat("0", Decimals-len(digits)) + digits
	frac = strings.TrimRight(frac[:displayDigits], "0")
	if frac == "" {
		return whole.String()
	}
	return whole.String() + "." + frac
}

// String renders the display form with the currency symbol, e.g. "1.5 ETH".
func (m Money) String() string {
	return m.Display() + " " + Symbol
}
