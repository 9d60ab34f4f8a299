package bonding

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	fpmath "ArtistExchange/internal/math"
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Artist is one share market. Price rises linearly from BasePrice at zero
// supply to 2*BasePrice at full supply.
type Artist struct {
	ID            ledger.ArtistID `json:"id"`
	BasePrice     *uint256.Int    `json:"base_price"`
	TotalSupply   uint64          `json:"total_supply"`
	CurrentSupply uint64          `json:"current_supply"`
	// Reserve is the native currency held for this artist's holders. Sells
	// never pay out more than it.
	Reserve *uint256.Int `json:"reserve"`
}

func (a *Artist) clone() *Artist {
	c := *a
	c.BasePrice = new(uint256.Int).Set(a.BasePrice)
	c.Reserve = new(uint256.Int).Set(a.Reserve)
	return &c
}

// priceAt returns basePrice * (totalSupply + supply) / totalSupply.
func (a *Artist) priceAt(supply uint64) (*uint256.Int, error) {
	total := uint256.NewInt(a.TotalSupply)
	pos := new(uint256.Int).Add(total, uint256.NewInt(supply))
	return fpmath.MulDiv(a.BasePrice, pos, total, fpmath.RoundDown)
}

// Market owns every artist's curve state. Mutating methods follow the same
// contract as the AMM: stage ledger moves, then update curve state last.
type Market struct {
	custody uuid.UUID
	artists map[ledger.ArtistID]*Artist
}

func NewMarket(custody uuid.UUID) *Market {
	return &Market{
		custody: custody,
		artists: make(map[ledger.ArtistID]*Artist),
	}
}

func (m *Market) Custody() uuid.UUID {
	return m.custody
}

func (m *Market) lookup(id ledger.ArtistID) (*Artist, error) {
	a, ok := m.artists[id]
	if !ok {
		return nil, fmt.Errorf("artist %d: %w", id, errs.ErrNotFound)
	}
	return a, nil
}

// Exists reports whether id has a market.
func (m *Market) Exists(id ledger.ArtistID) bool {
	_, ok := m.artists[id]
	return ok
}

// Artist returns a copy of the curve state of id.
func (m *Market) Artist(id ledger.ArtistID) (Artist, error) {
	a, err := m.lookup(id)
	if err != nil {
		return Artist{}, err
	}
	return *a.clone(), nil
}

// CreateArtist opens a market. Authorization is the caller's concern.
func (m *Market) CreateArtist(id ledger.ArtistID, basePrice *uint256.Int, totalSupply uint64) error {
	if _, ok := m.artists[id]; ok {
		return fmt.Errorf("create artist %d: %w", id, errs.ErrAlreadyExists)
	}
	if basePrice == nil || basePrice.IsZero() {
		return fmt.Errorf("create artist %d: base price must be positive: %w", id, errs.ErrInvalidAmount)
	}
	if totalSupply == 0 {
		return fmt.Errorf("create artist %d: total supply must be positive: %w", id, errs.ErrInvalidAmount)
	}

	// the top of the curve must be representable
	a := &Artist{ID: id, BasePrice: new(uint256.Int).Set(basePrice), TotalSupply: totalSupply, Reserve: fpmath.Zero()}
	top, err := a.priceAt(totalSupply)
	if err != nil {
		return fmt.Errorf("create artist %d: %w", id, err)
	}
	if _, err := fpmath.Mul(top, uint256.NewInt(totalSupply)); err != nil {
		return fmt.Errorf("create artist %d: %w", id, err)
	}

	m.artists[id] = a
	return nil
}

// CurrentPrice returns the unit price of the next share.
func (m *Market) CurrentPrice(id ledger.ArtistID) (*uint256.Int, error) {
	a, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return a.priceAt(a.CurrentSupply)
}

// Cost returns price * amount at the current position.
func (m *Market) Cost(id ledger.ArtistID, amount uint64) (*uint256.Int, error) {
	a, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	price, err := a.priceAt(a.CurrentSupply)
	if err != nil {
		return nil, err
	}
	return fpmath.Mul(price, uint256.NewInt(amount))
}

// Payout returns what selling amount shares would pay now.
func (m *Market) Payout(id ledger.ArtistID, amount uint64) (*uint256.Int, error) {
	a, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if amount > a.CurrentSupply {
		return nil, fmt.Errorf("payout artist %d: %w", id, errs.ErrInsufficientShares)
	}
	return a.payout(amount)
}

// A sale is priced at the position the curve returns to, so a buy followed
// by a sell of the same amount pays back exactly the cost.
func (a *Artist) payout(amount uint64) (*uint256.Int, error) {
	price, err := a.priceAt(a.CurrentSupply - amount)
	if err != nil {
		return nil, err
	}
	return fpmath.Mul(price, uint256.NewInt(amount))
}

// Purchase is the settled result of BuyShares.
type Purchase struct {
	Price  *uint256.Int
	Cost   *uint256.Int
	Refund *uint256.Int
}

// BuyShares takes payment from buyer, issues amount shares and refunds the
// overpayment.
func (m *Market) BuyShares(tx *ledger.Tx, buyer uuid.UUID, id ledger.ArtistID, amount uint64, payment *uint256.Int) (*Purchase, error) {
	a, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("buy shares: %w", err)
	}
	if amount == 0 {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, errs.ErrInvalidAmount)
	}
	if amount > a.TotalSupply-a.CurrentSupply {
		return nil, fmt.Errorf("buy shares artist=%d: %d + %d > %d: %w",
			id, a.CurrentSupply, amount, a.TotalSupply, errs.ErrSupplyExceeded)
	}

	price, err := a.priceAt(a.CurrentSupply)
	if err != nil {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
	}
	cost, err := fpmath.Mul(price, uint256.NewInt(amount))
	if err != nil {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
	}
	if payment.Lt(cost) {
		return nil, fmt.Errorf("buy shares artist=%d: payment %s < cost %s: %w",
			id, payment.Dec(), cost.Dec(), errs.ErrInsufficientPayment)
	}
	nextReserve, err := fpmath.Add(a.Reserve, cost)
	if err != nil {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
	}

	refund := new(uint256.Int).Sub(payment, cost)
	native := ledger.FungibleInstrument(ledger.NativeAsset)

	if err := tx.Transfer(native, buyer, m.custody, payment, ledger.JournalTypeSharePayment); err != nil {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
	}
	if err := tx.Mint(ledger.ShareInstrument(id), buyer, uint256.NewInt(amount), ledger.JournalTypeShareIssue); err != nil {
		return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
	}
	if !refund.IsZero() {
		if err := tx.Transfer(native, m.custody, buyer, refund, ledger.JournalTypeShareRefund); err != nil {
			return nil, fmt.Errorf("buy shares artist=%d: %w", id, err)
		}
	}

	a.CurrentSupply += amount
	a.Reserve = nextReserve
	return &Purchase{Price: price, Cost: cost, Refund: refund}, nil
}

// SellShares redeems amount of seller's shares and pays out native currency.
func (m *Market) SellShares(tx *ledger.Tx, seller uuid.UUID, id ledger.ArtistID, amount uint64) (*uint256.Int, error) {
	a, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("sell shares: %w", err)
	}
	if amount == 0 {
		return nil, fmt.Errorf("sell shares artist=%d: %w", id, errs.ErrInvalidAmount)
	}

	held := tx.BalanceOf(seller, ledger.ShareInstrument(id))
	if held.Lt(uint256.NewInt(amount)) {
		return nil, fmt.Errorf("sell shares artist=%d: holds %s, selling %d: %w", id, held.Dec(), amount, errs.ErrInsufficientShares)
	}

	payout, err := a.payout(amount)
	if err != nil {
		return nil, fmt.Errorf("sell shares artist=%d: %w", id, err)
	}
	if a.Reserve.Lt(payout) {
		return nil, fmt.Errorf("sell shares artist=%d: payout %s > reserve %s: %w",
			id, payout.Dec(), a.Reserve.Dec(), errs.ErrInsufficientLiquidity)
	}

	if err := tx.Burn(ledger.ShareInstrument(id), seller, uint256.NewInt(amount), ledger.JournalTypeShareRedeem); err != nil {
		return nil, fmt.Errorf("sell shares artist=%d: %w", id, err)
	}
	if err := tx.Transfer(ledger.FungibleInstrument(ledger.NativeAsset), m.custody, seller, payout, ledger.JournalTypeSharePayout); err != nil {
		return nil, fmt.Errorf("sell shares artist=%d: %w", id, err)
	}

	a.CurrentSupply -= amount
	a.Reserve = new(uint256.Int).Sub(a.Reserve, payout)
	return payout, nil
}

// Artists returns copies of every market ordered by id.
func (m *Market) Artists() []Artist {
	out := make([]Artist, 0, len(m.artists))
	for _, a := range m.artists {
		out = append(out, *a.clone())
	}
	slices.SortFunc(out, func(x, y Artist) int { return cmp.Compare(x.ID, y.ID) })
	return out
}

// Restore replaces every market.
func (m *Market) Restore(artists []Artist) error {
	next := make(map[ledger.ArtistID]*Artist, len(artists))
	for i := range artists {
		a := &artists[i]
		if a.BasePrice == nil || a.Reserve == nil || a.CurrentSupply > a.TotalSupply {
			return fmt.Errorf("restore artist %d: %w", a.ID, errs.ErrInvalidInput)
		}
		next[a.ID] = a.clone()
	}
	m.artists = next
	return nil
}
