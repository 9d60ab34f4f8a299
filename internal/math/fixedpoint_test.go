package math_test

import (
	"ArtistExchange/internal/errs"
	fpmath "ArtistExchange/internal/math"
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.1", "100000000000000000"},
		{"1000000", "1000000000000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
	}

	for _, tt := range tests {
		got, err := fpmath.ParseUnits(tt.in, fpmath.NativeConfig)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tt.in, err)
		}
		if got.Dec() != tt.want {
			t.Errorf("ParseUnits(%q): got %s, want %s", tt.in, got.Dec(), tt.want)
		}
	}
}

func TestParseUnits_Rejects(t *testing.T) {
	for _, in := range []string{"-1", "abc", "0.0000000000000000001", ""} {
		if _, err := fpmath.ParseUnits(in, fpmath.NativeConfig); !errors.Is(err, errs.ErrInvalidAmount) {
			t.Errorf("ParseUnits(%q): got %v, want ErrInvalidAmount", in, err)
		}
	}

	if _, err := fpmath.ParseUnits("1.5", fpmath.ShareConfig); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("fractional share: got %v, want ErrInvalidAmount", err)
	}
}

func TestFormatUnits(t *testing.T) {
	if got := fpmath.FormatUnits(fpmath.Units(1000, fpmath.NativeConfig), fpmath.NativeConfig); got != "1000" {
		t.Errorf("got %q, want 1000", got)
	}
	if got := fpmath.FormatUnits(uint256.NewInt(100_000_000_000_000_000), fpmath.NativeConfig); got != "0.1" {
		t.Errorf("got %q, want 0.1", got)
	}
	if got := fpmath.FormatUnits(nil, fpmath.NativeConfig); got != "0" {
		t.Errorf("nil: got %q, want 0", got)
	}
}

func TestMul_Overflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	if _, err := fpmath.Mul(max, uint256.NewInt(2)); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("got %v, want ErrArithmeticOverflow", err)
	}
	if _, err := fpmath.Add(max, uint256.NewInt(1)); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("add: got %v, want ErrArithmeticOverflow", err)
	}
	if _, err := fpmath.Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("sub: got %v, want ErrArithmeticOverflow", err)
	}
}

func TestMulDiv_Rounding(t *testing.T) {
	x, y, d := uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3)

	down, err := fpmath.MulDiv(x, y, d, fpmath.RoundDown)
	if err != nil {
		t.Fatal(err)
	}
	up, err := fpmath.MulDiv(x, y, d, fpmath.RoundUp)
	if err != nil {
		t.Fatal(err)
	}

	if down.Uint64() != 33 || up.Uint64() != 34 {
		t.Errorf("got down=%d up=%d, want 33/34", down.Uint64(), up.Uint64())
	}

	exact, _ := fpmath.MulDiv(uint256.NewInt(9), uint256.NewInt(2), uint256.NewInt(3), fpmath.RoundUp)
	if exact.Uint64() != 6 {
		t.Errorf("exact division should not round up: got %d", exact.Uint64())
	}
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// (2^255) * 4 / 8 overflows 256 bits in the product but not in the quotient.
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	got, err := fpmath.MulDiv(x, uint256.NewInt(4), uint256.NewInt(8), fpmath.RoundDown)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 254)
	if !got.Eq(want) {
		t.Errorf("got %s, want %s", got.Dec(), want.Dec())
	}

	if _, err := fpmath.MulDiv(x, uint256.NewInt(4), uint256.NewInt(1), fpmath.RoundDown); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("quotient overflow: got %v", err)
	}
	if _, err := fpmath.MulDiv(x, x, fpmath.Zero(), fpmath.RoundDown); !errors.Is(err, errs.ErrArithmeticOverflow) {
		t.Errorf("division by zero: got %v", err)
	}
}
