// Package fixedmath holds the unsigned fixed-point helpers shared by the
// reward accumulator and the liveliness ledger. Every helper either returns
// an exact result or an error; nothing wraps silently.
package fixedmath

import (
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

const (
	// DivisionSafetyConst is the fixed-point scale of indices and decay.
	DivisionSafetyConst uint64 = 1_000_000_000
	// MaxPercent is 100% in basis points.
	MaxPercent uint64 = 10_000
	// SlotsInYear assumes a 400ms tick.
	SlotsInYear uint64 = 78_840_000
	// LivelinessGateBps is the score at or above which rewards are paid in
	// full.
	LivelinessGateBps uint64 = 9_500
)

// MulDivFloor returns floor(a*b/denom). The product is formed in 256 bits so
// only a quotient that does not fit in 64 bits overflows.
func MulDivFloor(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, domain.ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo / denom, nil
	}
	q, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(denom))
	if overflow || !q.IsUint64() {
		return 0, domain.ErrArithmeticOverflow
	}
	return q.Uint64(), nil
}

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, domain.ErrArithmeticUnderflow
	}
	return a - b, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return lo, nil
}

// SatSub returns a-b floored at zero.
func SatSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
