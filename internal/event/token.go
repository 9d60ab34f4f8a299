package event

import (
	"ArtistExchange/internal/ledger"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

func assetSubject(id ledger.AssetID) string {
	return fmt.Sprintf("asset.%d", id)
}

type TokenCreated struct {
	AssetID     ledger.AssetID `json:"asset_id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Creator     uuid.UUID      `json:"creator"`
	TotalSupply *uint256.Int   `json:"total_supply"`
}

func (e *TokenCreated) EventType() EventType { return EventTypeTokenCreated }
func (e *TokenCreated) Subject() string      { return assetSubject(e.AssetID) }

// Transfer covers both direct transfers and allowance spends; Spender is
// set only for the latter.
type Transfer struct {
	AssetID ledger.AssetID `json:"asset_id"`
	From    uuid.UUID      `json:"from"`
	To      uuid.UUID      `json:"to"`
	Spender *uuid.UUID     `json:"spender,omitempty"`
	Amount  *uint256.Int   `json:"amount"`
}

func (e *Transfer) EventType() EventType { return EventTypeTransfer }
func (e *Transfer) Subject() string      { return assetSubject(e.AssetID) }

type Approval struct {
	AssetID ledger.AssetID `json:"asset_id"`
	Owner   uuid.UUID      `json:"owner"`
	Spender uuid.UUID      `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}

func (e *Approval) EventType() EventType { return EventTypeApproval }
func (e *Approval) Subject() string      { return assetSubject(e.AssetID) }

type NativeDeposited struct {
	Account uuid.UUID    `json:"account"`
	Amount  *uint256.Int `json:"amount"`
}

func (e *NativeDeposited) EventType() EventType { return EventTypeNativeDeposited }
func (e *NativeDeposited) Subject() string      { return "account." + e.Account.String() }

type NativeWithdrawn struct {
	Account uuid.UUID    `json:"account"`
	Amount  *uint256.Int `json:"amount"`
}

func (e *NativeWithdrawn) EventType() EventType { return EventTypeNativeWithdrawn }
func (e *NativeWithdrawn) Subject() string      { return "account." + e.Account.String() }
