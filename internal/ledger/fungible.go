package ledger

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// FungibleLedger tracks balances, supplies and allowances of the native
// currency and every registry token.
type FungibleLedger struct {
	table
	allowances map[AllowanceKey]uint256.Int
}

func (f *FungibleLedger) BalanceOf(asset AssetID, holder uuid.UUID) *uint256.Int {
	return f.balance(NewAccountKey(holder, FungibleInstrument(asset)))
}

func (f *FungibleLedger) TotalSupply(asset AssetID) *uint256.Int {
	return f.totalSupply(FungibleInstrument(asset))
}

func (f *FungibleLedger) Allowance(asset AssetID, owner, spender uuid.UUID) *uint256.Int {
	v := f.allowances[AllowanceKey{Asset: asset, Owner: owner, Spender: spender}]
	return &v
}

// ShareLedger tracks whole-unit share balances per artist market.
type ShareLedger struct {
	table
}

func (s *ShareLedger) BalanceOf(artist ArtistID, holder uuid.UUID) *uint256.Int {
	return s.balance(NewAccountKey(holder, ShareInstrument(artist)))
}

// Outstanding returns the sum of all holders' shares of artist.
func (s *ShareLedger) Outstanding(artist ArtistID) *uint256.Int {
	return s.totalSupply(ShareInstrument(artist))
}
