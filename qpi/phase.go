package qpi

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/pkg/errors"
)

// Phase is the angle Num/Den × π in canonical form: Den > 0, gcd(Num, Den) == 1 and 0 <= Num < 2*Den.
//
// The zero value is not a valid Phase; use Zero or Canonicalize.
// Two phases are equal iff their canonical forms are equal, so Phase values compare with ==.
type Phase struct {
	Num int64
	Den int64
}

// Zero is the phase 0/1 π
var Zero = Phase{0, 1}

// Canonicalize returns the unique reduced phase equal to n/d × π (mod 2π).
func Canonicalize(n, d int64) (Phase, error) {
	if d <= 0 {
		return Phase{}, errors.Wrapf(ErrNonPositiveDenominator, "phase %d/%d", n, d)
	}
	if g := GCD(n, d); g > 1 {
		n /= g
		d /= g
	}
	if d > math.MaxInt64/2 {
		return Phase{}, errors.Wrapf(ErrOverflow, "phase denominator %d", d)
	}
	m := 2 * d
	r := n % m
	if r < 0 {
		r += m
	}
	return Phase{r, d}, nil
}

// MustPhase is Canonicalize for known-good constants; it panics on error.
func MustPhase(n, d int64) Phase {
	p, err := Canonicalize(n, d)
	if err != nil {
		panic(err)
	}
	return p
}

// IsCanonical reports if p is already in canonical form.
func (p Phase) IsCanonical() bool {
	if p.Den <= 0 || p.Den > math.MaxInt64/2 {
		return false
	}
	return p.Num >= 0 && p.Num < 2*p.Den && GCD(p.Num, p.Den) == 1
}

// Add returns p + q, computed over the common denominator lcm(p.Den, q.Den).
func Add(p, q Phase) (Phase, error) {
	L, err := lcm2(p.Den, q.Den)
	if err != nil {
		return Phase{}, err
	}
	if L > math.MaxInt64/4 {
		return Phase{}, errors.Wrapf(ErrOverflow, "phase sum over denominator %d", L)
	}
	n := p.Num*(L/p.Den) + q.Num*(L/q.Den)
	return Canonicalize(n, L)
}

// Negate returns -p
func Negate(p Phase) Phase {
	if p.Num == 0 {
		return p
	}
	return Phase{(p.Den - p.Num) + p.Den, p.Den}
}

// Sub returns p - q
func Sub(p, q Phase) (Phase, error) {
	return Add(p, Negate(q))
}

// Compare orders phases by their value in [0, 2π) and returns -1, 0, or 1.
func Compare(p, q Phase) int {
	ah, al := bits.Mul64(uint64(p.Num), uint64(q.Den))
	bh, bl := bits.Mul64(uint64(q.Num), uint64(p.Den))
	switch {
	case ah < bh || (ah == bh && al < bl):
		return -1
	case ah == bh && al == bl:
		return 0
	}
	return 1
}

// Radians is a lossy conversion for display and for feeding trig functions; never use it for equality or binning.
func (p Phase) Radians() float64 {
	return math.Pi * float64(p.Num) / float64(p.Den)
}

func (p Phase) String() string {
	if p.Den == 1 {
		return fmt.Sprintf("%dπ", p.Num)
	}
	return fmt.Sprintf("%d/%dπ", p.Num, p.Den)
}

// Offset is a signed phase difference Num/Den × π wrapped into (-π, π], in lowest terms with Den > 0.
type Offset struct {
	Num int64
	Den int64
}

// Delta returns the wrapped difference to - from.
//
// Delta(p+s, q+s) == Delta(p, q) exactly for every shift s.
func Delta(from, to Phase) (Offset, error) {
	d, err := Sub(to, from)
	if err != nil {
		return Offset{}, err
	}
	if d.Num > d.Den {
		return Offset{d.Num - 2*d.Den, d.Den}, nil
	}
	return Offset{d.Num, d.Den}, nil
}

// Rat returns the offset in units of π as an exact rational.
func (o Offset) Rat() *big.Rat {
	return big.NewRat(o.Num, o.Den)
}

func (o Offset) Radians() float64 {
	return math.Pi * float64(o.Num) / float64(o.Den)
}

// WrapRat reduces x (in units of π) into (-1, 1].
func WrapRat(x *big.Rat) *big.Rat {
	two := big.NewRat(2, 1)

	// q = floor(x / 2)
	q := new(big.Int).Div(x.Num(), new(big.Int).Mul(x.Denom(), big.NewInt(2)))
	r := new(big.Rat).Sub(x, new(big.Rat).Mul(new(big.Rat).SetInt(q), two))

	// r is now in [0, 2)
	if r.Cmp(big.NewRat(1, 1)) > 0 {
		r.Sub(r, two)
	}
	return r
}
