package core

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// registered accepts registry assets only; the native currency has no pool.
func (x *Exchange) registered(what string, asset ledger.AssetID) error {
	if !x.registry.Exists(asset) {
		return fmt.Errorf("%s asset=%d: %w", what, asset, errs.ErrUnknownAsset)
	}
	return nil
}

// AddLiquidity deposits nativeAmount and nativeAmount*1000 tokens into the
// asset's pool, creating it on first use. The tokens are drawn through the
// caller's allowance to the exchange. It returns the tokens pulled.
func (x *Exchange) AddLiquidity(ctx context.Context, asset ledger.AssetID, nativeAmount *uint256.Int) (*uint256.Int, error) {
	var pulled *uint256.Int
	err := x.execute(ctx, event.EventTypeLiquidityAdded, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("add liquidity", nativeAmount); err != nil {
			return nil, err
		}
		if err := x.registered("add liquidity", asset); err != nil {
			return nil, err
		}

		tokens, err := x.pools.AddLiquidity(tx, caller, asset, nativeAmount)
		if err != nil {
			return nil, err
		}
		pulled = tokens

		tokenReserve, nativeReserve := x.pools.Liquidity(asset)
		return &outcome{evt: &event.LiquidityAdded{
			AssetID:       asset,
			Provider:      caller,
			TokenAmount:   tokens,
			NativeAmount:  nativeAmount.Clone(),
			TokenReserve:  tokenReserve,
			NativeReserve: nativeReserve,
		}}, nil
	})
	return pulled, err
}

// GetLiquidity returns (tokenReserve, nativeReserve); a registered asset
// without a pool has (0, 0).
func (x *Exchange) GetLiquidity(asset ledger.AssetID) (*uint256.Int, *uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.registered("get liquidity", asset); err != nil {
		return nil, nil, err
	}
	tokenReserve, nativeReserve := x.pools.Liquidity(asset)
	return tokenReserve, nativeReserve, nil
}

// GetPrice returns the native price of one whole token, scaled by 10^18.
func (x *Exchange) GetPrice(asset ledger.AssetID) (*uint256.Int, error) {
	return x.SpotPrice(EngineConstantProduct, uint64(asset))
}

// GetTokenPurchaseAmount quotes the tokens nativeIn would buy now.
func (x *Exchange) GetTokenPurchaseAmount(asset ledger.AssetID, nativeIn *uint256.Int) (*uint256.Int, error) {
	if nativeIn == nil {
		return nil, fmt.Errorf("purchase quote: %w", errs.ErrInvalidAmount)
	}
	return x.Quote(EngineConstantProduct, uint64(asset), nativeIn)
}

// GetTokenSaleAmount quotes the native currency tokenIn would fetch now.
func (x *Exchange) GetTokenSaleAmount(asset ledger.AssetID, tokenIn *uint256.Int) (*uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if tokenIn == nil {
		return nil, fmt.Errorf("sale quote: %w", errs.ErrInvalidAmount)
	}
	if err := x.registered("sale quote", asset); err != nil {
		return nil, err
	}
	return x.pools.QuoteSell(asset, tokenIn)
}

// BuyTokens swaps nativeIn of the caller's native currency for at least
// minTokensOut tokens.
func (x *Exchange) BuyTokens(ctx context.Context, asset ledger.AssetID, minTokensOut, nativeIn *uint256.Int) (*uint256.Int, error) {
	var bought *uint256.Int
	err := x.execute(ctx, event.EventTypeTokensPurchased, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("buy tokens", nativeIn); err != nil {
			return nil, err
		}
		if err := x.registered("buy tokens", asset); err != nil {
			return nil, err
		}

		out, err := x.pools.BuyTokens(tx, caller, asset, orZero(minTokensOut), nativeIn)
		if err != nil {
			return nil, err
		}
		bought = out

		tokenReserve, nativeReserve := x.pools.Liquidity(asset)
		return &outcome{evt: &event.TokensPurchased{
			AssetID:       asset,
			Buyer:         caller,
			NativeIn:      nativeIn.Clone(),
			TokensOut:     out,
			TokenReserve:  tokenReserve,
			NativeReserve: nativeReserve,
		}}, nil
	})
	return bought, err
}

// SellTokens swaps tokenAmount of the caller's tokens, drawn through their
// allowance to the exchange, for at least minNativeOut native currency.
func (x *Exchange) SellTokens(ctx context.Context, asset ledger.AssetID, tokenAmount, minNativeOut *uint256.Int) (*uint256.Int, error) {
	var proceeds *uint256.Int
	err := x.execute(ctx, event.EventTypeTokensSold, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("sell tokens", tokenAmount); err != nil {
			return nil, err
		}
		if err := x.registered("sell tokens", asset); err != nil {
			return nil, err
		}

		out, err := x.pools.SellTokens(tx, caller, asset, tokenAmount, orZero(minNativeOut))
		if err != nil {
			return nil, err
		}
		proceeds = out

		tokenReserve, nativeReserve := x.pools.Liquidity(asset)
		return &outcome{
			evt: &event.TokensSold{
				AssetID:       asset,
				Seller:        caller,
				TokensIn:      tokenAmount.Clone(),
				NativeOut:     out,
				TokenReserve:  tokenReserve,
				NativeReserve: nativeReserve,
			},
			payouts: []Payout{{Account: caller, Amount: out.Clone(), Reason: PayoutTokenSale}},
		}, nil
	})
	return proceeds, err
}

// SpotPrice reads the current price from either engine.
func (x *Exchange) SpotPrice(kind EngineKind, id uint64) (*uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	engine, err := x.engineFor(kind, id)
	if err != nil {
		return nil, err
	}
	return engine.SpotPrice(id)
}

// Quote prices amount against either engine without changing state.
func (x *Exchange) Quote(kind EngineKind, id uint64, amount *uint256.Int) (*uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	engine, err := x.engineFor(kind, id)
	if err != nil {
		return nil, err
	}
	return engine.Quote(id, amount)
}

func (x *Exchange) engineFor(kind EngineKind, id uint64) (PricingEngine, error) {
	engine, ok := x.engines[kind]
	if !ok {
		return nil, fmt.Errorf("pricing engine %d: %w", kind, errs.ErrInvalidInput)
	}
	if kind == EngineConstantProduct {
		if id > uint64(^ledger.AssetID(0)) {
			return nil, fmt.Errorf("asset %d: %w", id, errs.ErrUnknownAsset)
		}
		if err := x.registered("price", ledger.AssetID(id)); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
