// Package money implements the fixed-scale decimal policy used across the
// pricing pipeline: Q7 for every intermediate value, Q2 for customer-facing
// output, half-away-from-zero rounding everywhere, and no float round-trip.
package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Scale is a fixed number of fractional digits a Decimal is quantized to.
type Scale int32

const (
	// Q7 is the working precision for every intermediate pricing value.
	Q7 Scale = 7
	// Q2 is the customer-facing precision for final totals.
	Q2 Scale = 2
)

// ctx is shared by every operation in this package. Precision is set well
// above anything a proposal total could need so Quantize, not truncation,
// is always what determines the final digit count.
var ctx = apd.Context{
	Precision:   60,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Rounding:    apd.RoundHalfUp, // ties away from zero, per spec.
}

// Decimal is an arbitrary-precision decimal value. The zero value is not
// usable; construct with Zero, FromString, or FromInt64.
type Decimal struct {
	v apd.Decimal
}

// Zero returns the decimal 0.
func Zero() Decimal {
	var d Decimal
	d.v.SetFinite(0, 0)
	return d
}

// FromInt64 builds a Decimal from an integer amount at the given scale,
// e.g. FromInt64(1050, 2) == "10.50".
func FromInt64(coeff int64, scale Scale) Decimal {
	var d Decimal
	d.v.SetFinite(coeff, -int32(scale))
	return d
}

// FromString parses a decimal literal. Exponential notation is expanded and
// negative zero is normalised to zero, matching the normalisation contract
// in §4.2. No float parsing occurs anywhere in this path.
func FromString(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, fmt.Errorf("money: empty decimal literal")
	}
	var d Decimal
	// SetString does not round, so exponential literals and long mantissas
	// survive exactly; the first rounding a value ever sees is an explicit
	// RoundQ7/RoundQ2 call downstream.
	if _, _, err := d.v.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	if !d.IsFinite() {
		return Decimal{}, fmt.Errorf("money: non-finite decimal %q", s)
	}
	d.normalizeNegativeZero()
	return d, nil
}

// MustFromString is FromString but panics on error; reserved for literals
// in tests and compile-time constants, never for request-derived input.
func MustFromString(s string) Decimal {
	d, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Decimal) normalizeNegativeZero() {
	if d.v.IsZero() && d.v.Negative {
		d.v.Negative = false
	}
}

// IsFinite reports whether the value is a finite number (always true for
// values built by this package, but kept for defensive validation of
// request-decoded values before they reach this package's constructors).
func (d Decimal) IsFinite() bool { return d.v.Form == apd.Finite }

// Add returns d + other, unrounded (full apd precision).
func (d Decimal) Add(other Decimal) Decimal {
	var r Decimal
	_, _ = ctx.Add(&r.v, &d.v, &other.v)
	r.normalizeNegativeZero()
	return r
}

// Sub returns d - other, unrounded.
func (d Decimal) Sub(other Decimal) Decimal {
	var r Decimal
	_, _ = ctx.Sub(&r.v, &d.v, &other.v)
	r.normalizeNegativeZero()
	return r
}

// Mul returns d * other, unrounded.
func (d Decimal) Mul(other Decimal) Decimal {
	var r Decimal
	_, _ = ctx.Mul(&r.v, &d.v, &other.v)
	r.normalizeNegativeZero()
	return r
}

// Quo returns d / other, unrounded (full context precision).
func (d Decimal) Quo(other Decimal) (Decimal, error) {
	var r Decimal
	if other.IsZero() {
		return Decimal{}, fmt.Errorf("money: division by zero")
	}
	_, err := ctx.Quo(&r.v, &d.v, &other.v)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: division error: %w", err)
	}
	r.normalizeNegativeZero()
	return r, nil
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	var r Decimal
	_, _ = ctx.Neg(&r.v, &d.v)
	r.normalizeNegativeZero()
	return r
}

// Round quantizes d to the given scale using half-away-from-zero rounding.
func (d Decimal) Round(scale Scale) Decimal {
	var r Decimal
	exp := -int32(scale)
	_, _ = ctx.Quantize(&r.v, &d.v, exp)
	r.normalizeNegativeZero()
	return r
}

// RoundQ7 rounds to the intermediate precision used throughout the pipeline.
func (d Decimal) RoundQ7() Decimal { return d.Round(Q7) }

// RoundQ2 rounds to customer-facing precision.
func (d Decimal) RoundQ2() Decimal { return d.Round(Q2) }

// Cmp compares d to other: -1, 0, or 1.
func (d Decimal) Cmp(other Decimal) int {
	return d.v.Cmp(&other.v)
}

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.v.IsZero() }

// IsNegative reports whether d is strictly less than zero.
func (d Decimal) IsNegative() bool { return d.v.Negative && !d.v.IsZero() }

// Abs returns the absolute value of d.
func (d Decimal) Abs() Decimal {
	var r Decimal
	_, _ = ctx.Abs(&r.v, &d.v)
	return r
}

// String renders d as a plain decimal string, never exponential notation.
func (d Decimal) String() string {
	return d.v.Text('f')
}

// MarshalText implements encoding.TextMarshaler so Decimal values are
// encoded as decimal strings everywhere: JSON, the canonical encoder, and
// any other text-based serialisation.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON renders the decimal as a quoted JSON string, never a bare
// JSON number — this is what forbids float round-tripping at the wire
// boundary.
func (d Decimal) MarshalJSON() ([]byte, error) {
	text, err := d.MarshalText()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(text)+2)
	out = append(out, '"')
	out = append(out, text...)
	out = append(out, '"')
	return out, nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON
// number (for tolerance of hand-written test fixtures); it never routes
// through float64.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("money: empty JSON value")
	}
	if data[0] == '"' {
		if len(data) < 2 || data[len(data)-1] != '"' {
			return fmt.Errorf("money: malformed quoted decimal %q", data)
		}
		return d.UnmarshalText(data[1 : len(data)-1])
	}
	return d.UnmarshalText(data)
}

// Sum adds a slice of decimals left to right.
func Sum(ds ...Decimal) Decimal {
	total := Zero()
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}
