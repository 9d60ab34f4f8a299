package core

import (
	"ArtistExchange/internal/bonding"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// CreateArtist opens a share market. Owner only.
func (x *Exchange) CreateArtist(ctx context.Context, id ledger.ArtistID, basePrice *uint256.Int, totalSupply uint64) error {
	return x.execute(ctx, event.EventTypeArtistCreated, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if err := x.requireOwner(caller, "create artist"); err != nil {
			return nil, err
		}
		if err := x.market.CreateArtist(id, basePrice, totalSupply); err != nil {
			return nil, err
		}
		return &outcome{evt: &event.ArtistCreated{ArtistID: id, BasePrice: basePrice.Clone(), TotalSupply: totalSupply}}, nil
	})
}

// GetCurrentPrice returns the unit price of the artist's next share.
func (x *Exchange) GetCurrentPrice(id ledger.ArtistID) (*uint256.Int, error) {
	return x.SpotPrice(EngineBondingCurve, uint64(id))
}

func (x *Exchange) GetArtist(id ledger.ArtistID) (bonding.Artist, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.market.Artist(id)
}

// GetShareSaleAmount quotes what selling amount shares would pay now.
func (x *Exchange) GetShareSaleAmount(id ledger.ArtistID, amount uint64) (*uint256.Int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.market.Payout(id, amount)
}

// BuyShares buys amount shares paying at most payment; the overpayment is
// refunded to the caller.
func (x *Exchange) BuyShares(ctx context.Context, id ledger.ArtistID, amount uint64, payment *uint256.Int) (*bonding.Purchase, error) {
	var purchase *bonding.Purchase
	err := x.execute(ctx, event.EventTypeSharesPurchased, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		if payment == nil {
			return nil, fmt.Errorf("buy shares: %w", errs.ErrInvalidAmount)
		}
		p, err := x.market.BuyShares(tx, caller, id, amount, payment)
		if err != nil {
			return nil, err
		}
		purchase = p

		a, _ := x.market.Artist(id)
		out := &outcome{evt: &event.SharesPurchased{
			ArtistID:      id,
			Buyer:         caller,
			Amount:        amount,
			Price:         p.Price,
			Cost:          p.Cost,
			Refund:        p.Refund,
			CurrentSupply: a.CurrentSupply,
		}}
		if !p.Refund.IsZero() {
			out.payouts = []Payout{{Account: caller, Amount: p.Refund.Clone(), Reason: PayoutShareRefund}}
		}
		return out, nil
	})
	return purchase, err
}

// SellShares redeems amount of the caller's shares and returns the payout.
func (x *Exchange) SellShares(ctx context.Context, id ledger.ArtistID, amount uint64) (*uint256.Int, error) {
	var payout *uint256.Int
	err := x.execute(ctx, event.EventTypeSharesSold, func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error) {
		paid, err := x.market.SellShares(tx, caller, id, amount)
		if err != nil {
			return nil, err
		}
		payout = paid

		a, _ := x.market.Artist(id)
		return &outcome{
			evt: &event.SharesSold{
				ArtistID:      id,
				Seller:        caller,
				Amount:        amount,
				Payout:        paid,
				CurrentSupply: a.CurrentSupply,
			},
			payouts: []Payout{{Account: caller, Amount: paid.Clone(), Reason: PayoutShareSale}},
		}, nil
	})
	return payout, err
}
