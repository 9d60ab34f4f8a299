package core

import (
	"ArtistExchange/internal/amm"
	"ArtistExchange/internal/bonding"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	"fmt"

	"github.com/holiman/uint256"
)

// EngineKind identifies a pricing model.
type EngineKind uint8

const (
	EngineConstantProduct EngineKind = iota + 1
	EngineBondingCurve
)

func (k EngineKind) String() string {
	switch k {
	case EngineConstantProduct:
		return "constant_product"
	case EngineBondingCurve:
		return "bonding_curve"
	default:
		return "unknown"
	}
}

// ParseEngineKind is the inverse of EngineKind.String.
func ParseEngineKind(s string) (EngineKind, bool) {
	switch s {
	case "constant_product":
		return EngineConstantProduct, true
	case "bonding_curve":
		return EngineBondingCurve, true
	}
	return 0, false
}

// PricingEngine is the read side shared by both market models.
type PricingEngine interface {
	Kind() EngineKind

	// SpotPrice is the current native price of one unit: per whole token
	// (scaled by 10^18) for a pool, per share for a curve.
	SpotPrice(id uint64) (*uint256.Int, error)

	// Quote prices amount at the current state: tokens received for amount
	// native in a pool, native cost of amount shares on a curve.
	Quote(id uint64, amount *uint256.Int) (*uint256.Int, error)
}

type poolPricing struct {
	engine *amm.Engine
}

func (p poolPricing) Kind() EngineKind { return EngineConstantProduct }

func (p poolPricing) SpotPrice(id uint64) (*uint256.Int, error) {
	return p.engine.Price(ledger.AssetID(id))
}

func (p poolPricing) Quote(id uint64, amount *uint256.Int) (*uint256.Int, error) {
	return p.engine.QuoteBuy(ledger.AssetID(id), amount)
}

type curvePricing struct {
	market *bonding.Market
}

func (c curvePricing) Kind() EngineKind { return EngineBondingCurve }

func (c curvePricing) SpotPrice(id uint64) (*uint256.Int, error) {
	return c.market.CurrentPrice(ledger.ArtistID(id))
}

func (c curvePricing) Quote(id uint64, amount *uint256.Int) (*uint256.Int, error) {
	if !amount.IsUint64() {
		return nil, fmt.Errorf("quote shares: %w", errs.ErrInvalidAmount)
	}
	return c.market.Cost(ledger.ArtistID(id), amount.Uint64())
}
