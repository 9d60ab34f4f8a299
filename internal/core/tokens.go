package core

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	"ArtistExchange/internal/registry"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// RefKind selects which book a balance query reads.
type RefKind uint8

const (
	RefNative RefKind = iota
	RefToken
	RefArtist
)

// Ref names an asset or an artist's shares for balance queries.
type Ref struct {
	Kind RefKind
	ID   uint64
}

func NativeRef() Ref { return Ref{Kind: RefNative} }
func TokenRef(id ledger.AssetID) Ref { return Ref{Kind: RefToken, ID: uint64(id)} }
func ArtistRef(id ledger.ArtistID) Ref { return Ref{Kind: RefArtist, ID: uint64(id)} }

func (r Ref) instrument() ledger.Instrument {
	switch r.Kind {
	case RefArtist:
		return ledger.ShareInstrument(ledger.ArtistID(r.ID))
	case RefToken:
		return ledger.FungibleInstrument(ledger.AssetID(r.ID))
	default:
		return ledger.FungibleInstrument(ledger.NativeAsset)
	}
}

func requirePositive(what string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%s: amount must be positive: %w", what, errs.ErrInvalidAmount)
	}
	return nil
}

// requireRecipient rejects the nil account and the engines' custody
// accounts, which only the engines themselves may credit.
func requireRecipient(what string, to uuid.UUID) error {
	if to == uuid.Nil || ledger.IsSystemAccount(to) {
		return fmt.Errorf("%s: invalid recipient %s: %w", what, to, errs.ErrInvalidInput)
	}
	return nil
}

// knownAsset accepts the native currency and registry assets.
func (x *Exchange) knownAsset(what string, asset ledger.AssetID) error {
	if asset != ledger.NativeAsset && !x.registry.Exists(asset) {
		return fmt.Errorf("%s asset=%d: %w", what, asset, errs.ErrUnknownAsset)
	}
	return nil
}

// CreateToken registers a token and mints its whole supply to the caller.
func (x *Exchange) CreateToken(ctx context.Context, name, symbol string, totalSupply *uint256.Int) (ledger.AssetID, error) {
	var id ledger.AssetID
	err := x.execute(ctx, event.EventTypeTokenCreated, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if !x.openListing {
			if err := x.requireOwner(caller, "create token"); err != nil {
				return nil, err
			}
		}
		if totalSupply == nil {
			return nil, fmt.Errorf("create token: %w", errs.ErrInvalidAmount)
		}

		asset, err := x.registry.Issue(tx, name, symbol, totalSupply, caller, tx.Timestamp())
		if err != nil {
			return nil, err
		}
		x.registry.Record(asset)
		id = asset.ID

		return &outcome{evt: &event.TokenCreated{
			AssetID:     asset.ID,
			Name:        asset.Name,
			Symbol:      asset.Symbol,
			Creator:     caller,
			TotalSupply: asset.TotalSupply,
		}}, nil
	})
	return id, err
}

// GetAllTokens lists every registry asset in creation order.
func (x *Exchange) GetAllTokens() []registry.Asset {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.registry.All()
}

func (x *Exchange) GetTokenInfo(asset ledger.AssetID) (registry.Asset, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.registry.Get(asset)
}

func (x *Exchange) GetTokenBySymbol(symbol string) (ledger.AssetID, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.registry.BySymbol(symbol)
}

// Transfer moves amount of asset from the caller to to.
func (x *Exchange) Transfer(ctx context.Context, asset ledger.AssetID, to uuid.UUID, amount *uint256.Int) error {
	return x.execute(ctx, event.EventTypeTransfer, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("transfer", amount); err != nil {
			return nil, err
		}
		if err := x.knownAsset("transfer", asset); err != nil {
			return nil, err
		}
		if err := requireRecipient("transfer", to); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ledger.FungibleInstrument(asset), caller, to, amount, ledger.JournalTypeTransfer); err != nil {
			return nil, fmt.Errorf("transfer asset=%d: %w", asset, err)
		}
		return &outcome{evt: &event.Transfer{AssetID: asset, From: caller, To: to, Amount: amount.Clone()}}, nil
	})
}

// Approve sets the caller's allowance for spender to exactly amount. The
// exchange custody account is a valid spender; AddLiquidity and SellTokens
// draw through it.
func (x *Exchange) Approve(ctx context.Context, asset ledger.AssetID, spender uuid.UUID, amount *uint256.Int) error {
	return x.execute(ctx, event.EventTypeApproval, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if amount == nil {
			return nil, fmt.Errorf("approve: %w", errs.ErrInvalidAmount)
		}
		if err := x.knownAsset("approve", asset); err != nil {
			return nil, err
		}
		if spender == uuid.Nil || spender == caller {
			return nil, fmt.Errorf("approve: invalid spender %s: %w", spender, errs.ErrInvalidInput)
		}
		tx.Approve(asset, caller, spender, amount)
		return &outcome{evt: &event.Approval{AssetID: asset, Owner: caller, Spender: spender, Amount: amount.Clone()}}, nil
	})
}

// TransferFrom spends the caller's allowance from owner.
func (x *Exchange) TransferFrom(ctx context.Context, asset ledger.AssetID, owner, to uuid.UUID, amount *uint256.Int) error {
	return x.execute(ctx, event.EventTypeTransfer, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("transfer from", amount); err != nil {
			return nil, err
		}
		if err := x.knownAsset("transfer from", asset); err != nil {
			return nil, err
		}
		if err := requireRecipient("transfer from", to); err != nil {
			return nil, err
		}
		if err := tx.TransferFrom(asset, caller, owner, to, amount, ledger.JournalTypeTransferFrom); err != nil {
			return nil, fmt.Errorf("transfer from asset=%d: %w", asset, err)
		}
		spender := caller
		return &outcome{evt: &event.Transfer{AssetID: asset, From: owner, To: to, Spender: &spender, Amount: amount.Clone()}}, nil
	})
}

func (x *Exchange) Allowance(asset ledger.AssetID, owner, spender uuid.UUID) (*uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.knownAsset("allowance", asset); err != nil {
		return nil, err
	}
	return x.ledger.Fungible.Allowance(asset, owner, spender), nil
}

// Deposit credits native currency that arrived from outside the exchange.
// Only the owner (or the ingestion path acting as owner) may deposit.
func (x *Exchange) Deposit(ctx context.Context, account uuid.UUID, amount *uint256.Int) error {
	return x.execute(ctx, event.EventTypeNativeDeposited, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := x.requireOwner(caller, "deposit"); err != nil {
			return nil, err
		}
		if err := requirePositive("deposit", amount); err != nil {
			return nil, err
		}
		if err := requireRecipient("deposit", account); err != nil {
			return nil, err
		}
		if err := tx.Mint(ledger.FungibleInstrument(ledger.NativeAsset), account, amount, ledger.JournalTypeDeposit); err != nil {
			return nil, fmt.Errorf("deposit: %w", err)
		}
		return &outcome{evt: &event.NativeDeposited{Account: account, Amount: amount.Clone()}}, nil
	})
}

// Withdraw removes native currency from the caller's balance; the payout
// sink is responsible for delivering it.
func (x *Exchange) Withdraw(ctx context.Context, amount *uint256.Int) error {
	return x.execute(ctx, event.EventTypeNativeWithdrawn, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := requirePositive("withdraw", amount); err != nil {
			return nil, err
		}
		if err := tx.Burn(ledger.FungibleInstrument(ledger.NativeAsset), caller, amount, ledger.JournalTypeWithdrawal); err != nil {
			return nil, fmt.Errorf("withdraw: %w", err)
		}
		return &outcome{
			evt:     &event.NativeWithdrawn{Account: caller, Amount: amount.Clone()},
			payouts: []Payout{{Account: caller, Amount: amount.Clone(), Reason: PayoutWithdrawal}},
		}, nil
	})
}

// BalanceOf returns the committed balance; unknown assets and artists read
// as zero.
func (x *Exchange) BalanceOf(account uuid.UUID, ref Ref) *uint256.Int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ledger.BalanceOf(account, ref.instrument())
}

// TotalSupply returns the outstanding supply of the referenced instrument.
func (x *Exchange) TotalSupply(ref Ref) *uint256.Int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ledger.TotalSupply(ref.instrument())
}
