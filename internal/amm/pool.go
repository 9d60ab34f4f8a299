package amm

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// FeeNumerator / FeeDenominator is the share of every input that trades;
	// the remaining 0.3% stays in the pool.
	FeeNumerator   = 997
	FeeDenominator = 1000

	// LiquidityMultiplier is the fixed number of token base units pulled per
	// native base unit by AddLiquidity, independent of the pool's ratio.
	LiquidityMultiplier = 1000
)

// Pool is the reserve pair of one asset. Both reserves are held by the
// custody account on the fungible ledger.
type Pool struct {
	Asset         ledger.AssetID `json:"asset"`
	TokenReserve  *uint256.Int   `json:"token_reserve"`
	NativeReserve *uint256.Int   `json:"native_reserve"`
}

// K returns tokenReserve * nativeReserve without truncation.
func (p *Pool) K() *big.Int {
	return new(big.Int).Mul(p.TokenReserve.ToBig(), p.NativeReserve.ToBig())
}

func (p *Pool) empty() bool {
	return p.TokenReserve.IsZero() || p.NativeReserve.IsZero()
}

func (p *Pool) clone() *Pool {
	return &Pool{
		Asset:         p.Asset,
		TokenReserve:  new(uint256.Int).Set(p.TokenReserve),
		NativeReserve: new(uint256.Int).Set(p.NativeReserve),
	}
}

// withFee returns amount * 997 / 1000, rounded down.
func withFee(amount *uint256.Int) (*uint256.Int, error) {
	return fpmath.MulDiv(amount, uint256.NewInt(FeeNumerator), uint256.NewInt(FeeDenominator), fpmath.RoundDown)
}

// getOutput prices amountIn against (reserveIn, reserveOut). The reserve left
// on the output side is rounded up, so the output is never more than the
// exact curve allows and k cannot shrink.
func getOutput(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	inputWithFee, err := withFee(amountIn)
	if err != nil {
		return nil, err
	}

	denominator, err := fpmath.Add(reserveIn, inputWithFee)
	if err != nil {
		return nil, err
	}

	remaining, err := fpmath.MulDiv(reserveOut, reserveIn, denominator, fpmath.RoundUp)
	if err != nil {
		return nil, err
	}

	return new(uint256.Int).Sub(reserveOut, remaining), nil
}

// price returns nativeReserve per token scaled by 10^18.
func (p *Pool) price() (*uint256.Int, error) {
	if p.empty() {
		return nil, fmt.Errorf("price asset=%d: %w", p.Asset, errs.ErrEmptyPool)
	}
	return fpmath.MulDiv(p.NativeReserve, fpmath.NativeConfig.Scale, p.TokenReserve, fpmath.RoundDown)
}

func (p *Pool) quoteBuy(nativeIn *uint256.Int) (*uint256.Int, error) {
	if p.empty() {
		return nil, fmt.Errorf("quote asset=%d: %w", p.Asset, errs.ErrEmptyPool)
	}
	return getOutput(nativeIn, p.NativeReserve, p.TokenReserve)
}

func (p *Pool) quoteSell(tokenIn *uint256.Int) (*uint256.Int, error) {
	if p.empty() {
		return nil, fmt.Errorf("quote asset=%d: %w", p.Asset, errs.ErrEmptyPool)
	}
	return getOutput(tokenIn, p.TokenReserve, p.NativeReserve)
}
