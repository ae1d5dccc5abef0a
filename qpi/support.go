package qpi

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

func absU64(x int64) uint64 {
	if x < 0 {
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}

func gcdU64(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GCD returns the greatest common divisor of |a| and |b|, with GCD(0, 0) == 0.
func GCD(a, b int64) int64 {
	return int64(gcdU64(absU64(a), absU64(b)))
}

// lcm2 returns lcm(a, b) for a, b > 0 or ErrOverflow.
func lcm2(a, b int64) (int64, error) {
	g := GCD(a, b)
	hi, lo := bits.Mul64(uint64(a/g), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, errors.Wrapf(ErrOverflow, "lcm(%d, %d)", a, b)
	}
	return int64(lo), nil
}

// LCMMany returns the least common multiple of the given denominators.
//
// Fails with a domain error if dens is empty or any value is <= 0.
func LCMMany(dens []int64) (int64, error) {
	if len(dens) == 0 {
		return 0, ErrEmptyLCM
	}
	L := int64(1)
	for _, d := range dens {
		if d <= 0 {
			return 0, errors.Wrapf(ErrNonPositiveDenominator, "lcm input %d", d)
		}
		var err error
		if L, err = lcm2(L, d); err != nil {
			return 0, err
		}
	}
	return L, nil
}

// mulChecked returns a*b for a, b >= 0 or ErrOverflow.
func mulChecked(a, b int64) (int64, error) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, errors.Wrapf(ErrOverflow, "%d * %d", a, b)
	}
	return int64(lo), nil
}
