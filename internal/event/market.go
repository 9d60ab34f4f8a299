package event

import (
	"ArtistExchange/internal/ledger"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// --- Liquidity pool ---

type LiquidityAdded struct {
	AssetID       ledger.AssetID `json:"asset_id"`
	Provider      uuid.UUID      `json:"provider"`
	TokenAmount   *uint256.Int   `json:"token_amount"`
	NativeAmount  *uint256.Int   `json:"native_amount"`
	TokenReserve  *uint256.Int   `json:"token_reserve"`
	NativeReserve *uint256.Int   `json:"native_reserve"`
}

func (e *LiquidityAdded) EventType() EventType { return EventTypeLiquidityAdded }
func (e *LiquidityAdded) Subject() string      { return assetSubject(e.AssetID) }

type TokensPurchased struct {
	AssetID       ledger.AssetID `json:"asset_id"`
	Buyer         uuid.UUID      `json:"buyer"`
	NativeIn      *uint256.Int   `json:"native_in"`
	TokensOut     *uint256.Int   `json:"tokens_out"`
	TokenReserve  *uint256.Int   `json:"token_reserve"`
	NativeReserve *uint256.Int   `json:"native_reserve"`
}

func (e *TokensPurchased) EventType() EventType { return EventTypeTokensPurchased }
func (e *TokensPurchased) Subject() string      { return assetSubject(e.AssetID) }

type TokensSold struct {
	AssetID       ledger.AssetID `json:"asset_id"`
	Seller        uuid.UUID      `json:"seller"`
	TokensIn      *uint256.Int   `json:"tokens_in"`
	NativeOut     *uint256.Int   `json:"native_out"`
	TokenReserve  *uint256.Int   `json:"token_reserve"`
	NativeReserve *uint256.Int   `json:"native_reserve"`
}

func (e *TokensSold) EventType() EventType { return EventTypeTokensSold }
func (e *TokensSold) Subject() string      { return assetSubject(e.AssetID) }

// --- Bonding curve ---

func artistSubject(id ledger.ArtistID) string {
	return fmt.Sprintf("artist.%d", id)
}

type ArtistCreated struct {
	ArtistID    ledger.ArtistID `json:"artist_id"`
	BasePrice   *uint256.Int    `json:"base_price"`
	TotalSupply uint64          `json:"total_supply"`
}

func (e *ArtistCreated) EventType() EventType { return EventTypeArtistCreated }
func (e *ArtistCreated) Subject() string      { return artistSubject(e.ArtistID) }

type SharesPurchased struct {
	ArtistID      ledger.ArtistID `json:"artist_id"`
	Buyer         uuid.UUID       `json:"buyer"`
	Amount        uint64          `json:"amount"`
	Price         *uint256.Int    `json:"price"`
	Cost          *uint256.Int    `json:"cost"`
	Refund        *uint256.Int    `json:"refund"`
	CurrentSupply uint64          `json:"current_supply"`
}

func (e *SharesPurchased) EventType() EventType { return EventTypeSharesPurchased }
func (e *SharesPurchased) Subject() string      { return artistSubject(e.ArtistID) }

type SharesSold struct {
	ArtistID      ledger.ArtistID `json:"artist_id"`
	Seller        uuid.UUID       `json:"seller"`
	Amount        uint64          `json:"amount"`
	Payout        *uint256.Int    `json:"payout"`
	CurrentSupply uint64          `json:"current_supply"`
}

func (e *SharesSold) EventType() EventType { return EventTypeSharesSold }
func (e *SharesSold) Subject() string      { return artistSubject(e.ArtistID) }
