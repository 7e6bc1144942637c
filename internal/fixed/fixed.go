// Package fixed provides overflow-checked unsigned arithmetic for ledger
// amounts. Intermediates are carried in 256-bit integers; only the final
// result has to fit in a uint64.
package fixed

import (
	sdkmath "cosmossdk.io/math"

	"StakeLedger/internal/errs"
)

// Scale is the implicit fixed-point scale of daily rates.
const Scale uint64 = 10_000

// BpsBase is the basis-point denominator.
const BpsBase uint64 = 10_000

// Int widens v for intermediate computation.
func Int(v uint64) sdkmath.Int {
	return sdkmath.NewIntFromUint64(v)
}

// ToUint64 narrows x back to a uint64.
func ToUint64(x sdkmath.Int) (uint64, error) {
	if x.IsNegative() {
		return 0, errs.ArithmeticOverflow.WithFormat("underflow: %s", x)
	}
	if !x.IsUint64() {
		return 0, errs.ArithmeticOverflow.WithFormat("%s does not fit in 64 bits", x)
	}
	return x.Uint64(), nil
}

// Add returns a + b.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, errs.ArithmeticOverflow.WithFormat("%d + %d", a, b)
	}
	return s, nil
}

// Sub returns a - b; going below zero is an overflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errs.ArithmeticOverflow.WithFormat("%d - %d", a, b)
	}
	return a - b, nil
}

// MulDiv returns floor(a * b / c).
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, errs.ArithmeticOverflow.With("division by zero")
	}
	return ToUint64(Int(a).Mul(Int(b)).Quo(Int(c)))
}

// Bps returns floor(v * bps / 10000).
func Bps(v, bps uint64) (uint64, error) {
	return MulDiv(v, bps, BpsBase)
}
