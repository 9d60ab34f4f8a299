package core

import (
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/holiman/uint256"
)

// postCheckInvariants validates custody and supply after a commit. Checks
// scoped to the instruments the batch touched run every time; the full
// supply reconciliation runs every globalCheckInterval operations.
func (x *Exchange) postCheckInvariants(batch *ledger.Batch) error {
	touched := make(map[ledger.Instrument]bool)
	for _, j := range batch.Journals {
		touched[j.Instrument()] = true
	}

	for inst := range touched {
		switch {
		case inst.Book == ledger.BookShares:
			if err := x.checkShareSupply(ledger.ArtistID(inst.ID)); err != nil {
				return err
			}
		case ledger.AssetID(inst.ID) == ledger.NativeAsset:
			if err := x.checkNativeCustody(); err != nil {
				return err
			}
		default:
			if err := x.checkPoolCustody(ledger.AssetID(inst.ID)); err != nil {
				return err
			}
		}
	}

	if x.sequence%x.globalCheckInterval == 0 {
		if err := x.validator.ValidateGlobalSupply(); err != nil {
			return fmt.Errorf("post-check supply at seq %d: %w", x.sequence, err)
		}
	}

	return nil
}

// Custody of a pool's tokens must equal its token reserve.
func (x *Exchange) checkPoolCustody(asset ledger.AssetID) error {
	tokenReserve, _ := x.pools.Liquidity(asset)
	held := x.ledger.Fungible.BalanceOf(asset, x.pools.Custody())
	if !held.Eq(tokenReserve) {
		return fmt.Errorf("post-check pool custody asset=%d: holds %s, reserve %s", asset, held.Dec(), tokenReserve.Dec())
	}
	return nil
}

// Native custody of each engine must equal what the engine accounts for.
func (x *Exchange) checkNativeCustody() error {
	poolNative := fpmath.Zero()
	for _, p := range x.pools.Pools() {
		poolNative.Add(poolNative, p.NativeReserve)
	}
	if held := x.ledger.Fungible.BalanceOf(ledger.NativeAsset, x.pools.Custody()); !held.Eq(poolNative) {
		return fmt.Errorf("post-check exchange native custody: holds %s, reserves %s", held.Dec(), poolNative.Dec())
	}

	artistReserve := fpmath.Zero()
	for _, a := range x.market.Artists() {
		artistReserve.Add(artistReserve, a.Reserve)
	}
	if held := x.ledger.Fungible.BalanceOf(ledger.NativeAsset, x.market.Custody()); !held.Eq(artistReserve) {
		return fmt.Errorf("post-check bonding native custody: holds %s, reserves %s", held.Dec(), artistReserve.Dec())
	}
	return nil
}

// Outstanding shares must equal the curve's current supply.
func (x *Exchange) checkShareSupply(id ledger.ArtistID) error {
	a, err := x.market.Artist(id)
	if err != nil {
		return fmt.Errorf("post-check shares: %w", err)
	}
	if out := x.ledger.Shares.Outstanding(id); !out.Eq(uint256.NewInt(a.CurrentSupply)) {
		return fmt.Errorf("post-check shares artist=%d: outstanding %s, current supply %d", id, out.Dec(), a.CurrentSupply)
	}
	return nil
}

// computeStateDigest creates canonical bytes for the state hash: every
// account the batch touched with its new balance, and the new supply of
// every instrument minted or burned.
func (x *Exchange) computeStateDigest(batch *ledger.Batch) []byte {
	affected := make(map[ledger.AccountKey]bool)
	for _, j := range batch.Journals {
		affected[j.DebitAccount] = true
		affected[j.CreditAccount] = true
	}

	accounts := make([]ledger.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		var amount *uint256.Int
		if key.Scope == ledger.AccountScopeExternal {
			amount = x.ledger.TotalSupply(key.Instrument)
		} else {
			amount = x.ledger.BalanceOf(key.Holder, key.Instrument)
		}

		digest = appendDigestEntry(digest, key.AccountPath(), amount)
	}

	return digest
}

// observe records metrics for a committed operation.
func (x *Exchange) observe(eventType string, batch *ledger.Batch, evt event.Event, start time.Time) {
	if x.metrics == nil {
		return
	}

	x.metrics.CoreOpsApplied.WithLabelValues(eventType).Inc()
	x.metrics.CoreOpDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	x.metrics.CoreSequence.Set(float64(x.sequence))
	for _, j := range batch.Journals {
		x.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
	}

	switch e := evt.(type) {
	case *event.TokenCreated:
		x.metrics.AssetsRegistered.Set(float64(x.registry.Len()))
	case *event.LiquidityAdded:
		x.setPoolGauges(e.AssetID, e.TokenReserve, e.NativeReserve)
	case *event.TokensPurchased:
		x.setPoolGauges(e.AssetID, e.TokenReserve, e.NativeReserve)
	case *event.TokensSold:
		x.setPoolGauges(e.AssetID, e.TokenReserve, e.NativeReserve)
	case *event.SharesPurchased:
		x.metrics.ArtistSupply.WithLabelValues(strconv.FormatUint(uint64(e.ArtistID), 10)).Set(float64(e.CurrentSupply))
	case *event.SharesSold:
		x.metrics.ArtistSupply.WithLabelValues(strconv.FormatUint(uint64(e.ArtistID), 10)).Set(float64(e.CurrentSupply))
	}
}

func (x *Exchange) setPoolGauges(asset ledger.AssetID, tokenReserve, nativeReserve *uint256.Int) {
	label := strconv.FormatUint(uint64(asset), 10)
	x.metrics.PoolTokenReserve.WithLabelValues(label).Set(fpmath.ToFloat(tokenReserve, fpmath.NativeConfig))
	x.metrics.PoolNativeReserve.WithLabelValues(label).Set(fpmath.ToFloat(nativeReserve, fpmath.NativeConfig))
}
