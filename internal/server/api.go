package server

import (
	"ArtistExchange/internal/ledger"
	"ArtistExchange/internal/persistence"
)

// Wire types shared by the gRPC service and the HTTP routes. Native and
// token amounts travel as decimal strings in whole units ("0.1"); share
// counts are plain integers.

type Empty struct{}

type CreateTokenRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"total_supply"`
}

type CreateTokenResponse struct {
	AssetID ledger.AssetID `json:"asset_id"`
}

type TransferRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
	To      string         `json:"to"`
	Amount  string         `json:"amount"`
}

// ApproveRequest accepts "exchange" as the spender to approve the pools.
type ApproveRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
	Spender string         `json:"spender"`
	Amount  string         `json:"amount"`
}

type TransferFromRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Amount  string         `json:"amount"`
}

type DepositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type WithdrawRequest struct {
	Amount string `json:"amount"`
}

type AddLiquidityRequest struct {
	AssetID      ledger.AssetID `json:"asset_id"`
	NativeAmount string         `json:"native_amount"`
}

type AddLiquidityResponse struct {
	TokensAdded string `json:"tokens_added"`
}

type BuyTokensRequest struct {
	AssetID      ledger.AssetID `json:"asset_id"`
	NativeIn     string         `json:"native_in"`
	MinTokensOut string         `json:"min_tokens_out,omitempty"`
}

type BuyTokensResponse struct {
	TokensOut string `json:"tokens_out"`
}

type SellTokensRequest struct {
	AssetID      ledger.AssetID `json:"asset_id"`
	TokenAmount  string         `json:"token_amount"`
	MinNativeOut string         `json:"min_native_out,omitempty"`
}

type SellTokensResponse struct {
	NativeOut string `json:"native_out"`
}

type CreateArtistRequest struct {
	ArtistID    ledger.ArtistID `json:"artist_id"`
	BasePrice   string          `json:"base_price"`
	TotalSupply uint64          `json:"total_supply"`
}

type BuySharesRequest struct {
	ArtistID ledger.ArtistID `json:"artist_id"`
	Amount   uint64          `json:"amount"`
	Payment  string          `json:"payment"`
}

type BuySharesResponse struct {
	Price  string `json:"price"`
	Cost   string `json:"cost"`
	Refund string `json:"refund"`
}

type SellSharesRequest struct {
	ArtistID ledger.ArtistID `json:"artist_id"`
	Amount   uint64          `json:"amount"`
}

type SellSharesResponse struct {
	Payout string `json:"payout"`
}

// TokenSummary is a registry asset plus its artist listing, when one exists.
type TokenSummary struct {
	AssetID     ledger.AssetID              `json:"asset_id"`
	Name        string                      `json:"name"`
	Symbol      string                      `json:"symbol"`
	Creator     string                      `json:"creator"`
	TotalSupply string                      `json:"total_supply"`
	CreatedAtUs int64                       `json:"created_at_us"`
	Artist      *persistence.ArtistMetadata `json:"artist,omitempty"`
}

type ListTokensResponse struct {
	Tokens []TokenSummary `json:"tokens"`
}

type TokenRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
}

type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

type LiquidityResponse struct {
	TokenReserve  string `json:"token_reserve"`
	NativeReserve string `json:"native_reserve"`
}

type PriceResponse struct {
	Price string `json:"price"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type TokenQuoteRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
	Amount  string         `json:"amount"`
}

type ArtistRequest struct {
	ArtistID ledger.ArtistID `json:"artist_id"`
}

type ArtistResponse struct {
	ArtistID      ledger.ArtistID `json:"artist_id"`
	BasePrice     string          `json:"base_price"`
	TotalSupply   uint64          `json:"total_supply"`
	CurrentSupply uint64          `json:"current_supply"`
	Reserve       string          `json:"reserve"`
	CurrentPrice  string          `json:"current_price"`
}

type ShareQuoteRequest struct {
	ArtistID ledger.ArtistID `json:"artist_id"`
	Amount   uint64          `json:"amount"`
}

// BalanceRequest reads one book: Kind is "native", "token" or "artist";
// ID is ignored for native.
type BalanceRequest struct {
	Account string `json:"account"`
	Kind    string `json:"kind"`
	ID      uint64 `json:"id"`
}

type AllowanceRequest struct {
	AssetID ledger.AssetID `json:"asset_id"`
	Owner   string         `json:"owner"`
	Spender string         `json:"spender"`
}

// QuoteRequest prices Amount against either engine: native in for
// "constant_product", a share count for "bonding_curve".
type QuoteRequest struct {
	Engine string `json:"engine"`
	ID     uint64 `json:"id"`
	Amount string `json:"amount"`
}

type StatusResponse struct {
	Sequence  int64  `json:"sequence"`
	StateHash string `json:"state_hash"`
	Tokens    int    `json:"tokens"`
}
