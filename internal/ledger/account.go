package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	// External accounts are the issuance boundary: they never hold a balance,
	// moving value across them changes the instrument's supply instead.
	AccountScopeExternal
)

// Book selects which ledger an instrument lives in.
type Book uint8

const (
	BookFungible Book = iota
	BookShares
)

// AssetID identifies a fungible asset. 0 is the native currency; registry
// assets are allocated densely from 1.
type AssetID uint32

const NativeAsset AssetID = 0

// ArtistID identifies a bonding-curve share market.
type ArtistID uint64

// Instrument is anything with a balance table and a supply: a fungible asset
// or an artist's shares.
type Instrument struct {
	Book Book
	ID   uint64
}

func FungibleInstrument(asset AssetID) Instrument {
	return Instrument{Book: BookFungible, ID: uint64(asset)}
}

func ShareInstrument(artist ArtistID) Instrument {
	return Instrument{Book: BookShares, ID: uint64(artist)}
}

func (i Instrument) String() string {
	if i.Book == BookShares {
		return fmt.Sprintf("shares:%d", i.ID)
	}
	if AssetID(i.ID) == NativeAsset {
		return "native"
	}
	return fmt.Sprintf("asset:%d", i.ID)
}

// accountNamespace seeds deterministic system account ids.
var accountNamespace = uuid.MustParse("8f0c6f0e-5d7e-4b8e-9a51-3c2f7b1d9e40")

var (
	// ExchangeAccount custodies every liquidity pool's tokens and native reserve.
	ExchangeAccount = NewSystemAccount("exchange")
	// BondingAccount custodies the native proceeds of every share market.
	BondingAccount = NewSystemAccount("bonding")
)

var systemNames = map[uuid.UUID]string{}

// NewSystemAccount returns the stable id for a named system account.
func NewSystemAccount(name string) uuid.UUID {
	id := uuid.NewSHA1(accountNamespace, []byte(name))
	systemNames[id] = name
	return id
}

// IsSystemAccount reports whether id was created by NewSystemAccount.
func IsSystemAccount(id uuid.UUID) bool {
	_, ok := systemNames[id]
	return ok
}

// AccountKey is the in-memory key for balance tracking
type AccountKey struct {
	Scope      AccountScope
	Holder     uuid.UUID
	Instrument Instrument
}

// NewAccountKey creates a key for a holder, picking the system scope for
// well-known system accounts.
func NewAccountKey(holder uuid.UUID, inst Instrument) AccountKey {
	scope := AccountScopeUser
	if IsSystemAccount(holder) {
		scope = AccountScopeSystem
	}
	return AccountKey{Scope: scope, Holder: holder, Instrument: inst}
}

// NewIssuanceKey creates the external boundary key for an instrument.
func NewIssuanceKey(inst Instrument) AccountKey {
	return AccountKey{Scope: AccountScopeExternal, Instrument: inst}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeUser:
		return fmt.Sprintf("user:%s:%s", k.Holder.String(), k.Instrument)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", systemNames[k.Holder], k.Instrument)
	case AccountScopeExternal:
		return fmt.Sprintf("external:issuance:%s", k.Instrument)
	}
	return "unknown"
}

// AllowanceKey addresses one (asset, owner, spender) allowance.
type AllowanceKey struct {
	Asset   AssetID
	Owner   uuid.UUID
	Spender uuid.UUID
}
