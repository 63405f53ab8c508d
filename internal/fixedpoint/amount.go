package fixedpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow reports a value or result outside [0, 2^128).
	ErrOverflow = errors.New("amount overflow")
	// ErrUnderflow reports a subtraction below zero.
	ErrUnderflow = errors.New("amount underflow")
	// ErrDivisionByZero reports a zero denominator.
	ErrDivisionByZero = errors.New("division by zero")
)

// maxBits bounds every Amount to 128 bits so that the product of any two
// amounts is exact in the 256-bit intermediate.
const maxBits = 128

// PriceScale is the fixed-point scale for spot prices and price impact ratios.
var PriceScale = FromUint64(1_000_000_000_000_000_000)

// Amount is an unsigned fixed-point integer in [0, 2^128). The scale is chosen
// by the caller and never interpreted here; arithmetic is plain integer math
// with floor division and checked bounds. The zero value is zero.
type Amount struct {
	x uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 returns v as an Amount.
func FromUint64(v uint64) Amount {
	var a Amount
	a.x.SetUint64(v)
	return a
}

// Parse converts a decimal string into an Amount.
func Parse(s string) (Amount, error) {
	var a Amount
	if err := a.x.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if a.x.BitLen() > maxBits {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, ErrOverflow)
	}
	return a, nil
}

// MustParse is Parse for statically known values; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.x.Dec()
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.x.IsZero()
}

// Cmp returns -1, 0 or 1 comparing a with b.
func (a Amount) Cmp(b Amount) int {
	return a.x.Cmp(&b.x)
}

// Equal reports whether a equals b.
func (a Amount) Equal(b Amount) bool {
	return a.x.Eq(&b.x)
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Add returns a+b, failing with ErrOverflow when the sum leaves the amount range.
func Add(a, b Amount) (Amount, error) {
	var z Amount
	if _, carry := z.x.AddOverflow(&a.x, &b.x); carry || z.x.BitLen() > maxBits {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

// Sub returns a-b, failing with ErrUnderflow when b exceeds a.
func Sub(a, b Amount) (Amount, error) {
	var z Amount
	if _, borrow := z.x.SubOverflow(&a.x, &b.x); borrow {
		return Amount{}, ErrUnderflow
	}
	return z, nil
}

// MulDiv returns floor(a*b/den) using a 256-bit intermediate product. It fails
// with ErrDivisionByZero when den is zero and ErrOverflow when the quotient
// leaves the amount range.
func MulDiv(a, b, den Amount) (Amount, error) {
	if den.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var z Amount
	if _, overflow := z.x.MulDivOverflow(&a.x, &b.x, &den.x); overflow || z.x.BitLen() > maxBits {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

// SqrtFloor returns floor(sqrt(a)).
func SqrtFloor(a Amount) Amount {
	var z Amount
	z.x.Sqrt(&a.x)
	return z
}

// SqrtProduct returns floor(sqrt(a*b)). The product of two amounts always fits
// the 256-bit intermediate and its root always fits the amount range.
func SqrtProduct(a, b Amount) Amount {
	var p uint256.Int
	p.Mul(&a.x, &b.x)
	var z Amount
	z.x.Sqrt(&p)
	return z
}

// ProductCmp compares a*b with c*d exactly, returning -1, 0 or 1.
func ProductCmp(a, b, c, d Amount) int {
	var p, q uint256.Int
	p.Mul(&a.x, &b.x)
	q.Mul(&c.x, &d.x)
	return p.Cmp(&q)
}

// ProductDec returns the exact decimal representation of a*b. The product can
// exceed the amount range, so it is reported as a string rather than an Amount.
func ProductDec(a, b Amount) string {
	var p uint256.Int
	p.Mul(&a.x, &b.x)
	return p.Dec()
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.x.Dec())), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return fmt.Errorf("unmarshal amount: %w", err)
		}
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
