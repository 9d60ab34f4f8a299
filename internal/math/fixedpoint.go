package math

import (
	"ArtistExchange/internal/errs"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int32        // Number of decimal places
	Scale            *uint256.Int // 10^DecimalPrecision
}

var (
	// NativeConfig is the base unit of the native currency and of every
	// registry-issued token (18 decimals, 1 unit = 10^18 base units).
	NativeConfig = DecimalConfig{DecimalPrecision: 18, Scale: uint256.NewInt(1_000_000_000_000_000_000)}

	// ShareConfig: bonding-curve shares are whole, indivisible units.
	ShareConfig = DecimalConfig{DecimalPrecision: 0, Scale: uint256.NewInt(1)}
)

type RoundingMode int

const (
	RoundDown RoundingMode = iota
	RoundUp
)

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Add returns a + b, failing with ErrArithmeticOverflow on wrap.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("add %s + %s: %w", a.Dec(), b.Dec(), errs.ErrArithmeticOverflow)
	}
	return z, nil
}

// Sub returns a - b. Callers check a >= b first; an underflow here is an
// arithmetic fault, not a balance check.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("sub %s - %s: %w", a.Dec(), b.Dec(), errs.ErrArithmeticOverflow)
	}
	return z, nil
}

// Mul returns a * b, failing with ErrArithmeticOverflow on wrap.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("mul %s * %s: %w", a.Dec(), b.Dec(), errs.ErrArithmeticOverflow)
	}
	return z, nil
}

// MulDiv computes x * y / d with a 512-bit intermediate product, so only the
// final quotient has to fit in 256 bits.
func MulDiv(x, y, d *uint256.Int, mode RoundingMode) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("muldiv by zero: %w", errs.ErrArithmeticOverflow)
	}

	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("muldiv %s * %s / %s: %w", x.Dec(), y.Dec(), d.Dec(), errs.ErrArithmeticOverflow)
	}

	if mode == RoundUp && !new(uint256.Int).MulMod(x, y, d).IsZero() {
		return Add(q, uint256.NewInt(1))
	}

	return q, nil
}

// ParseUnits converts a human-readable decimal string ("0.1") into base units
// under cfg. More fractional digits than cfg allows is a validation error.
func ParseUnits(s string, cfg DecimalConfig) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, errs.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q: %w", s, errs.ErrInvalidAmount)
	}

	shifted := d.Shift(cfg.DecimalPrecision)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimals: %w", s, cfg.DecimalPrecision, errs.ErrInvalidAmount)
	}

	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q: %w", s, errs.ErrArithmeticOverflow)
	}
	return v, nil
}

// MustParseUnits is ParseUnits for constants and tests.
func MustParseUnits(s string, cfg DecimalConfig) *uint256.Int {
	v, err := ParseUnits(s, cfg)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders base units as a decimal string under cfg, trimming
// trailing zeros ("1000000000000000000" -> "1").
func FormatUnits(v *uint256.Int, cfg DecimalConfig) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -cfg.DecimalPrecision).String()
}

// Units returns n whole units in base units under cfg.
func Units(n uint64, cfg DecimalConfig) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), cfg.Scale)
}

// ToFloat renders v in whole units as a float64 for gauges and logs. It is
// lossy and must never feed back into ledger arithmetic.
func ToFloat(v *uint256.Int, cfg DecimalConfig) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v.ToBig(), -cfg.DecimalPrecision).InexactFloat64()
}
