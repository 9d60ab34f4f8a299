package core

import (
	"ArtistExchange/internal/amm"
	"ArtistExchange/internal/bonding"
	"ArtistExchange/internal/ledger"
	"ArtistExchange/internal/registry"
	"fmt"
	"time"
)

// SnapshotState is the full engine state at a sequence boundary.
type SnapshotState struct {
	Sequence        int64                   `json:"sequence"` // last processed sequence
	StateHash       [32]byte                `json:"state_hash"`
	CreatedAt       time.Time               `json:"created_at"`
	Assets          []registry.Asset        `json:"assets"`
	Balances        []ledger.BalanceEntry   `json:"balances"`
	Supplies        []ledger.SupplyEntry    `json:"supplies"`
	Allowances      []ledger.AllowanceEntry `json:"allowances"`
	Pools           []amm.Pool              `json:"pools"`
	Artists         []bonding.Artist        `json:"artists"`
	IdempotencyKeys []string                `json:"idempotency_keys,omitempty"`
}

// CreateSnapshotState captures the committed state under the read lock.
func (x *Exchange) CreateSnapshotState() *SnapshotState {
	x.mu.RLock()
	defer x.mu.RUnlock()

	state := &SnapshotState{
		Sequence:   x.sequence - 1,
		StateHash:  x.chain.Tip(),
		CreatedAt:  x.clock().UTC(),
		Assets:     x.registry.All(),
		Balances:   x.ledger.Balances(),
		Supplies:   x.ledger.Supplies(),
		Allowances: x.ledger.Allowances(),
		Pools:      x.pools.Pools(),
		Artists:    x.market.Artists(),
	}
	if x.idempotency != nil {
		state.IdempotencyKeys = x.idempotency.Keys()
	}
	return state
}

// RestoreFromSnapshot loads state and resumes the sequence and hash chain
// after it. The snapshot is checked against every custody and supply
// invariant; on failure the exchange is left as it was.
func (x *Exchange) RestoreFromSnapshot(state *SnapshotState) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	reg := registry.New()
	if err := reg.Restore(state.Assets); err != nil {
		return fmt.Errorf("restore snapshot seq=%d: %w", state.Sequence, err)
	}
	l := ledger.New()
	l.Restore(state.Balances, state.Supplies, state.Allowances)
	pools := amm.NewEngine(x.pools.Custody())
	pools.Restore(state.Pools)
	market := bonding.NewMarket(x.market.Custody())
	if err := market.Restore(state.Artists); err != nil {
		return fmt.Errorf("restore snapshot seq=%d: %w", state.Sequence, err)
	}

	prevRegistry, prevLedger, prevPools, prevMarket := x.registry, x.ledger, x.pools, x.market
	prevValidator, prevEngines := x.validator, x.engines
	x.registry, x.ledger, x.pools, x.market = reg, l, pools, market
	x.validator = ledger.NewInvariantValidator(l)
	x.engines = map[EngineKind]PricingEngine{
		EngineConstantProduct: poolPricing{pools},
		EngineBondingCurve:    curvePricing{market},
	}

	if err := x.validateRestored(); err != nil {
		x.registry, x.ledger, x.pools, x.market = prevRegistry, prevLedger, prevPools, prevMarket
		x.validator, x.engines = prevValidator, prevEngines
		return fmt.Errorf("restore snapshot seq=%d: %w", state.Sequence, err)
	}

	x.sequence = state.Sequence + 1
	x.chain.reset(state.StateHash)
	if x.idempotency != nil {
		x.idempotency.Warm(state.IdempotencyKeys)
	}

	x.logger.Info().Int64("sequence", state.Sequence).Int("assets", len(state.Assets)).
		Int("pools", len(state.Pools)).Int("artists", len(state.Artists)).Msg("state restored from snapshot")
	return nil
}

func (x *Exchange) validateRestored() error {
	if err := x.validator.ValidateGlobalSupply(); err != nil {
		return err
	}
	for _, a := range x.registry.All() {
		if a.TotalSupply == nil {
			return fmt.Errorf("asset %d has no total supply", a.ID)
		}
		// supply only changes by the creation mint
		if supply := x.ledger.Fungible.TotalSupply(a.ID); !supply.Eq(a.TotalSupply) {
			return fmt.Errorf("asset %d supply %s, registry %s", a.ID, supply.Dec(), a.TotalSupply.Dec())
		}
		if err := x.checkPoolCustody(a.ID); err != nil {
			return err
		}
	}
	for _, p := range x.pools.Pools() {
		if !x.registry.Exists(p.Asset) {
			return fmt.Errorf("pool for unregistered asset %d", p.Asset)
		}
	}
	for _, a := range x.market.Artists() {
		if err := x.checkShareSupply(a.ID); err != nil {
			return err
		}
	}
	if err := x.checkNativeCustody(); err != nil {
		return err
	}
	// shares of unknown artists
	for _, s := range x.ledger.Supplies() {
		if s.Instrument.Book == ledger.BookShares && !x.market.Exists(ledger.ArtistID(s.Instrument.ID)) {
			return fmt.Errorf("shares outstanding for unknown artist %d", s.Instrument.ID)
		}
	}
	return nil
}
