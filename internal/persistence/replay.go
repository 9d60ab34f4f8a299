package persistence

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/event"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// EventSource reads the event log in sequence order.
type EventSource interface {
	LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error)
}

// Replayer rebuilds engine state by re-executing logged operations from the
// exchange's next sequence onward. The engines are deterministic, so each
// re-executed operation must land on the logged state hash.
type Replayer struct {
	source    EventSource
	exchange  *core.Exchange
	batchSize int
}

func NewReplayer(source EventSource, x *core.Exchange) *Replayer {
	return &Replayer{source: source, exchange: x, batchSize: 1000}
}

// Run replays every logged event after the exchange's current position and
// returns how many were applied. Any divergence is an error: the process
// must not serve from a state the log does not describe.
func (r *Replayer) Run(ctx context.Context) (int64, error) {
	var replayed int64
	from := r.exchange.Sequence()

	for {
		rows, err := r.source.LoadEventsFrom(ctx, from, r.batchSize)
		if err != nil {
			return replayed, fmt.Errorf("load events from seq %d: %w", from, err)
		}
		if len(rows) == 0 {
			return replayed, nil
		}

		for _, row := range rows {
			if err := r.apply(ctx, row); err != nil {
				return replayed, err
			}
			replayed++
		}
		from = rows[len(rows)-1].Sequence + 1
	}
}

func (r *Replayer) apply(ctx context.Context, row EventRow) error {
	x := r.exchange
	if next := x.Sequence(); row.Sequence != next {
		return fmt.Errorf("event log gap: next sequence %d, log has %d", next, row.Sequence)
	}
	prev := x.StateHash()
	if !bytes.Equal(prev[:], row.PrevHash) {
		return fmt.Errorf("seq %d: prev hash %x does not match state %x", row.Sequence, row.PrevHash, prev)
	}

	et, ok := event.ParseEventType(row.EventType)
	if !ok {
		return fmt.Errorf("seq %d: unknown event type %q", row.Sequence, row.EventType)
	}

	opCtx := core.WithReplay(ctx)
	opCtx = core.WithIdempotencyKey(opCtx, row.IdempotencyKey)
	opCtx = core.WithTimestamp(opCtx, row.Timestamp)

	if err := reexecute(opCtx, x, et, row.Payload); err != nil {
		return fmt.Errorf("replay seq %d (%s): %w", row.Sequence, row.EventType, err)
	}

	got := x.StateHash()
	if !bytes.Equal(got[:], row.StateHash) {
		return fmt.Errorf("seq %d: state hash %x diverges from log %x", row.Sequence, got, row.StateHash)
	}
	return nil
}

// reexecute issues the operation that produced payload, as the account
// that originally called it.
func reexecute(ctx context.Context, x *core.Exchange, et event.EventType, payload []byte) error {
	switch et {
	case event.EventTypeTokenCreated:
		var e event.TokenCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		_, err := x.CreateToken(core.WithCaller(ctx, e.Creator), e.Name, e.Symbol, e.TotalSupply)
		return err

	case event.EventTypeTransfer:
		var e event.Transfer
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		if e.Spender != nil {
			return x.TransferFrom(core.WithCaller(ctx, *e.Spender), e.AssetID, e.From, e.To, e.Amount)
		}
		return x.Transfer(core.WithCaller(ctx, e.From), e.AssetID, e.To, e.Amount)

	case event.EventTypeApproval:
		var e event.Approval
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		return x.Approve(core.WithCaller(ctx, e.Owner), e.AssetID, e.Spender, e.Amount)

	case event.EventTypeNativeDeposited:
		var e event.NativeDeposited
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		return x.Deposit(core.WithCaller(ctx, x.Owner()), e.Account, e.Amount)

	case event.EventTypeNativeWithdrawn:
		var e event.NativeWithdrawn
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		return x.Withdraw(core.WithCaller(ctx, e.Account), e.Amount)

	case event.EventTypeLiquidityAdded:
		var e event.LiquidityAdded
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		_, err := x.AddLiquidity(core.WithCaller(ctx, e.Provider), e.AssetID, e.NativeAmount)
		return err

	case event.EventTypeTokensPurchased:
		var e event.TokensPurchased
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		// the logged output doubles as the slippage floor
		_, err := x.BuyTokens(core.WithCaller(ctx, e.Buyer), e.AssetID, e.TokensOut, e.NativeIn)
		return err

	case event.EventTypeTokensSold:
		var e event.TokensSold
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		_, err := x.SellTokens(core.WithCaller(ctx, e.Seller), e.AssetID, e.TokensIn, e.NativeOut)
		return err

	case event.EventTypeArtistCreated:
		var e event.ArtistCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		return x.CreateArtist(core.WithCaller(ctx, x.Owner()), e.ArtistID, e.BasePrice, e.TotalSupply)

	case event.EventTypeSharesPurchased:
		var e event.SharesPurchased
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		payment := new(uint256.Int).Add(e.Cost, e.Refund)
		_, err := x.BuyShares(core.WithCaller(ctx, e.Buyer), e.ArtistID, e.Amount, payment)
		return err

	case event.EventTypeSharesSold:
		var e event.SharesSold
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		_, err := x.SellShares(core.WithCaller(ctx, e.Seller), e.ArtistID, e.Amount)
		return err
	}

	return fmt.Errorf("event type %s is not replayable", et)
}
