package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// PayoutReason says why native currency left an engine for an account.
type PayoutReason string

const (
	PayoutShareRefund PayoutReason = "share_refund"
	PayoutShareSale   PayoutReason = "share_sale"
	PayoutTokenSale   PayoutReason = "token_sale"
	PayoutWithdrawal  PayoutReason = "withdrawal"
)

// Payout announces native currency credited to (or, for withdrawals,
// released from the ledger for) an account.
type Payout struct {
	Sequence int64
	Account  uuid.UUID
	Amount   *uint256.Int
	Reason   PayoutReason
}

// PayoutSink is told about every payout once its operation has committed
// and the exchange is unlocked, so it may call back into the exchange.
type PayoutSink interface {
	OnPayout(ctx context.Context, p Payout)
}

// PayoutSinkFunc adapts a function to PayoutSink.
type PayoutSinkFunc func(ctx context.Context, p Payout)

func (f PayoutSinkFunc) OnPayout(ctx context.Context, p Payout) { f(ctx, p) }
