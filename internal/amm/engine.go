package amm

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Engine owns every liquidity pool. It does not check registry membership;
// callers route only registered assets here.
//
// Mutating methods stage all ledger movements in the given Tx and update
// reserves as their final step, after every check has passed. A returned
// error therefore leaves reserves untouched and the Tx must be discarded.
type Engine struct {
	custody uuid.UUID
	pools   map[ledger.AssetID]*Pool
}

func NewEngine(custody uuid.UUID) *Engine {
	return &Engine{
		custody: custody,
		pools:   make(map[ledger.AssetID]*Pool),
	}
}

// Custody is the account holding every pool's reserves.
func (e *Engine) Custody() uuid.UUID {
	return e.custody
}

// Liquidity returns (tokenReserve, nativeReserve); zeros for an asset with no pool.
func (e *Engine) Liquidity(asset ledger.AssetID) (*uint256.Int, *uint256.Int) {
	p, ok := e.pools[asset]
	if !ok {
		return fpmath.Zero(), fpmath.Zero()
	}
	return new(uint256.Int).Set(p.TokenReserve), new(uint256.Int).Set(p.NativeReserve)
}

// Pool returns a copy of the pool for asset.
func (e *Engine) Pool(asset ledger.AssetID) (Pool, bool) {
	p, ok := e.pools[asset]
	if !ok {
		return Pool{}, false
	}
	return *p.clone(), true
}

// Price returns native per whole token, scaled by 10^18.
func (e *Engine) Price(asset ledger.AssetID) (*uint256.Int, error) {
	return e.poolOrEmpty(asset).price()
}

// QuoteBuy returns the tokens nativeIn would buy now.
func (e *Engine) QuoteBuy(asset ledger.AssetID, nativeIn *uint256.Int) (*uint256.Int, error) {
	return e.poolOrEmpty(asset).quoteBuy(nativeIn)
}

// QuoteSell returns the native currency tokenIn would fetch now.
func (e *Engine) QuoteSell(asset ledger.AssetID, tokenIn *uint256.Int) (*uint256.Int, error) {
	return e.poolOrEmpty(asset).quoteSell(tokenIn)
}

func (e *Engine) poolOrEmpty(asset ledger.AssetID) *Pool {
	if p, ok := e.pools[asset]; ok {
		return p
	}
	return &Pool{Asset: asset, TokenReserve: fpmath.Zero(), NativeReserve: fpmath.Zero()}
}

// AddLiquidity pulls nativeAmount * 1000 tokens (through the provider's
// allowance to the custody account) and nativeAmount of native currency
// into the pool, creating it on first use. It returns the tokens pulled.
func (e *Engine) AddLiquidity(tx *ledger.Tx, provider uuid.UUID, asset ledger.AssetID, nativeAmount *uint256.Int) (*uint256.Int, error) {
	if nativeAmount.IsZero() {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, errs.ErrInvalidAmount)
	}

	tokenAmount, err := fpmath.Mul(nativeAmount, uint256.NewInt(LiquidityMultiplier))
	if err != nil {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, err)
	}

	cur := e.poolOrEmpty(asset)
	nextToken, err := fpmath.Add(cur.TokenReserve, tokenAmount)
	if err != nil {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, err)
	}
	nextNative, err := fpmath.Add(cur.NativeReserve, nativeAmount)
	if err != nil {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, err)
	}

	if err := tx.TransferFrom(asset, e.custody, provider, e.custody, tokenAmount, ledger.JournalTypeLiquidityAdd); err != nil {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, err)
	}
	if err := tx.Transfer(ledger.FungibleInstrument(ledger.NativeAsset), provider, e.custody, nativeAmount, ledger.JournalTypeLiquidityAdd); err != nil {
		return nil, fmt.Errorf("add liquidity asset=%d: %w", asset, err)
	}

	e.pools[asset] = &Pool{Asset: asset, TokenReserve: nextToken, NativeReserve: nextNative}
	return tokenAmount, nil
}

// BuyTokens swaps nativeIn of the buyer's native currency for tokens.
func (e *Engine) BuyTokens(tx *ledger.Tx, buyer uuid.UUID, asset ledger.AssetID, minTokensOut, nativeIn *uint256.Int) (*uint256.Int, error) {
	if nativeIn.IsZero() {
		return nil, fmt.Errorf("buy tokens asset=%d: %w", asset, errs.ErrInvalidAmount)
	}

	p := e.poolOrEmpty(asset)
	tokenOut, err := p.quoteBuy(nativeIn)
	if err != nil {
		return nil, fmt.Errorf("buy tokens asset=%d: %w", asset, err)
	}
	if tokenOut.IsZero() || tokenOut.Lt(minTokensOut) {
		return nil, fmt.Errorf("buy tokens asset=%d: out %s < min %s: %w",
			asset, tokenOut.Dec(), minTokensOut.Dec(), errs.ErrSlippageExceeded)
	}

	nextNative, err := fpmath.Add(p.NativeReserve, nativeIn)
	if err != nil {
		return nil, fmt.Errorf("buy tokens asset=%d: %w", asset, err)
	}

	if err := tx.Transfer(ledger.FungibleInstrument(ledger.NativeAsset), buyer, e.custody, nativeIn, ledger.JournalTypeSwapIn); err != nil {
		return nil, fmt.Errorf("buy tokens asset=%d: %w", asset, err)
	}
	if err := tx.Transfer(ledger.FungibleInstrument(asset), e.custody, buyer, tokenOut, ledger.JournalTypeSwapOut); err != nil {
		return nil, fmt.Errorf("buy tokens asset=%d: %w", asset, err)
	}

	p.NativeReserve = nextNative
	p.TokenReserve = new(uint256.Int).Sub(p.TokenReserve, tokenOut)
	return tokenOut, nil
}

// SellTokens pulls tokenAmount from the seller through their allowance to
// the custody account and pays out native currency.
func (e *Engine) SellTokens(tx *ledger.Tx, seller uuid.UUID, asset ledger.AssetID, tokenAmount, minNativeOut *uint256.Int) (*uint256.Int, error) {
	if tokenAmount.IsZero() {
		return nil, fmt.Errorf("sell tokens asset=%d: %w", asset, errs.ErrInvalidAmount)
	}

	if err := tx.TransferFrom(asset, e.custody, seller, e.custody, tokenAmount, ledger.JournalTypeSwapIn); err != nil {
		return nil, fmt.Errorf("sell tokens asset=%d: %w", asset, err)
	}

	p := e.poolOrEmpty(asset)
	nativeOut, err := p.quoteSell(tokenAmount)
	if err != nil {
		return nil, fmt.Errorf("sell tokens asset=%d: %w", asset, err)
	}
	if nativeOut.IsZero() || nativeOut.Lt(minNativeOut) {
		return nil, fmt.Errorf("sell tokens asset=%d: out %s < min %s: %w",
			asset, nativeOut.Dec(), minNativeOut.Dec(), errs.ErrSlippageExceeded)
	}

	nextToken, err := fpmath.Add(p.TokenReserve, tokenAmount)
	if err != nil {
		return nil, fmt.Errorf("sell tokens asset=%d: %w", asset, err)
	}

	if err := tx.Transfer(ledger.FungibleInstrument(ledger.NativeAsset), e.custody, seller, nativeOut, ledger.JournalTypeSwapOut); err != nil {
		return nil, fmt.Errorf("sell tokens asset=%d: %w", asset, err)
	}

	p.TokenReserve = nextToken
	p.NativeReserve = new(uint256.Int).Sub(p.NativeReserve, nativeOut)
	return nativeOut, nil
}

// Pools returns copies of every pool ordered by asset id.
func (e *Engine) Pools() []Pool {
	out := make([]Pool, 0, len(e.pools))
	for _, p := range e.pools {
		out = append(out, *p.clone())
	}
	slices.SortFunc(out, func(a, b Pool) int { return int(a.Asset) - int(b.Asset) })
	return out
}

// Restore replaces every pool.
func (e *Engine) Restore(pools []Pool) {
	e.pools = make(map[ledger.AssetID]*Pool, len(pools))
	for _, p := range pools {
		e.pools[p.Asset] = p.clone()
	}
}
