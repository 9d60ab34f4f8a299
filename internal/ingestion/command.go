package ingestion

import (
	"ArtistExchange/internal/bonding"
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Executor is the part of the exchange that inbound commands drive.
// *core.Exchange implements it.
type Executor interface {
	CreateToken(ctx context.Context, name, symbol string, totalSupply *uint256.Int) (ledger.AssetID, error)
	Transfer(ctx context.Context, asset ledger.AssetID, to uuid.UUID, amount *uint256.Int) error
	Approve(ctx context.Context, asset ledger.AssetID, spender uuid.UUID, amount *uint256.Int) error
	TransferFrom(ctx context.Context, asset ledger.AssetID, owner, to uuid.UUID, amount *uint256.Int) error
	Deposit(ctx context.Context, account uuid.UUID, amount *uint256.Int) error
	Withdraw(ctx context.Context, amount *uint256.Int) error
	AddLiquidity(ctx context.Context, asset ledger.AssetID, nativeAmount *uint256.Int) (*uint256.Int, error)
	BuyTokens(ctx context.Context, asset ledger.AssetID, minTokensOut, nativeIn *uint256.Int) (*uint256.Int, error)
	SellTokens(ctx context.Context, asset ledger.AssetID, tokenAmount, minNativeOut *uint256.Int) (*uint256.Int, error)
	CreateArtist(ctx context.Context, id ledger.ArtistID, basePrice *uint256.Int, totalSupply uint64) error
	BuyShares(ctx context.Context, id ledger.ArtistID, amount uint64, payment *uint256.Int) (*bonding.Purchase, error)
	SellShares(ctx context.Context, id ledger.ArtistID, amount uint64) (*uint256.Int, error)
}

// Meta is the envelope every inbound command carries.
type Meta struct {
	// CommandID doubles as the idempotency key.
	CommandID string
	Caller    uuid.UUID
	// Source and SourceSequence order commands per producer; a zero
	// sequence opts out of ordering checks.
	Source         string
	SourceSequence int64
	Timestamp      time.Time
}

// Command is a parsed inbound command ready to apply.
type Command struct {
	Meta
	Name string
	Op   Op
}

// Op is one exchange operation.
type Op interface {
	// EventType is the event the operation commits, used as the dedup
	// namespace for its command id.
	EventType() event.EventType
	Apply(ctx context.Context, x Executor) error
}

type CreateTokenOp struct {
	Name        string
	Symbol      string
	TotalSupply *uint256.Int
}

func (o *CreateTokenOp) EventType() event.EventType { return event.EventTypeTokenCreated }
func (o *CreateTokenOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.CreateToken(ctx, o.Name, o.Symbol, o.TotalSupply)
	return err
}

type TransferOp struct {
	Asset  ledger.AssetID
	To     uuid.UUID
	Amount *uint256.Int
}

func (o *TransferOp) EventType() event.EventType { return event.EventTypeTransfer }
func (o *TransferOp) Apply(ctx context.Context, x Executor) error {
	return x.Transfer(ctx, o.Asset, o.To, o.Amount)
}

type ApproveOp struct {
	Asset   ledger.AssetID
	Spender uuid.UUID
	Amount  *uint256.Int
}

func (o *ApproveOp) EventType() event.EventType { return event.EventTypeApproval }
func (o *ApproveOp) Apply(ctx context.Context, x Executor) error {
	return x.Approve(ctx, o.Asset, o.Spender, o.Amount)
}

type TransferFromOp struct {
	Asset  ledger.AssetID
	From   uuid.UUID
	To     uuid.UUID
	Amount *uint256.Int
}

func (o *TransferFromOp) EventType() event.EventType { return event.EventTypeTransfer }
func (o *TransferFromOp) Apply(ctx context.Context, x Executor) error {
	return x.TransferFrom(ctx, o.Asset, o.From, o.To, o.Amount)
}

type DepositOp struct {
	Account uuid.UUID
	Amount  *uint256.Int
}

func (o *DepositOp) EventType() event.EventType { return event.EventTypeNativeDeposited }
func (o *DepositOp) Apply(ctx context.Context, x Executor) error {
	return x.Deposit(ctx, o.Account, o.Amount)
}

type WithdrawOp struct {
	Amount *uint256.Int
}

func (o *WithdrawOp) EventType() event.EventType { return event.EventTypeNativeWithdrawn }
func (o *WithdrawOp) Apply(ctx context.Context, x Executor) error {
	return x.Withdraw(ctx, o.Amount)
}

type AddLiquidityOp struct {
	Asset        ledger.AssetID
	NativeAmount *uint256.Int
}

func (o *AddLiquidityOp) EventType() event.EventType { return event.EventTypeLiquidityAdded }
func (o *AddLiquidityOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.AddLiquidity(ctx, o.Asset, o.NativeAmount)
	return err
}

type BuyTokensOp struct {
	Asset        ledger.AssetID
	NativeIn     *uint256.Int
	MinTokensOut *uint256.Int
}

func (o *BuyTokensOp) EventType() event.EventType { return event.EventTypeTokensPurchased }
func (o *BuyTokensOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.BuyTokens(ctx, o.Asset, o.MinTokensOut, o.NativeIn)
	return err
}

type SellTokensOp struct {
	Asset        ledger.AssetID
	TokenAmount  *uint256.Int
	MinNativeOut *uint256.Int
}

func (o *SellTokensOp) EventType() event.EventType { return event.EventTypeTokensSold }
func (o *SellTokensOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.SellTokens(ctx, o.Asset, o.TokenAmount, o.MinNativeOut)
	return err
}

type CreateArtistOp struct {
	Artist      ledger.ArtistID
	BasePrice   *uint256.Int
	TotalSupply uint64
}

func (o *CreateArtistOp) EventType() event.EventType { return event.EventTypeArtistCreated }
func (o *CreateArtistOp) Apply(ctx context.Context, x Executor) error {
	return x.CreateArtist(ctx, o.Artist, o.BasePrice, o.TotalSupply)
}

type BuySharesOp struct {
	Artist  ledger.ArtistID
	Amount  uint64
	Payment *uint256.Int
}

func (o *BuySharesOp) EventType() event.EventType { return event.EventTypeSharesPurchased }
func (o *BuySharesOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.BuyShares(ctx, o.Artist, o.Amount, o.Payment)
	return err
}

type SellSharesOp struct {
	Artist ledger.ArtistID
	Amount uint64
}

func (o *SellSharesOp) EventType() event.EventType { return event.EventTypeSharesSold }
func (o *SellSharesOp) Apply(ctx context.Context, x Executor) error {
	_, err := x.SellShares(ctx, o.Artist, o.Amount)
	return err
}
