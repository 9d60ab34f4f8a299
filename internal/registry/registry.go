package registry

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Asset is one registry-issued fungible token.
type Asset struct {
	ID          ledger.AssetID `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Creator     uuid.UUID      `json:"creator"`
	TotalSupply *uint256.Int   `json:"total_supply"`
	CreatedAt   int64          `json:"created_at"` // epoch microseconds
}

// Registry is the arena of issued assets. Ids are dense and start at 1; the
// slot for id 0 is the native currency and never holds a record.
type Registry struct {
	assets   []Asset
	bySymbol map[string]ledger.AssetID
}

func New() *Registry {
	return &Registry{
		bySymbol: make(map[string]ledger.AssetID),
	}
}

// Issue validates a new token, stages its initial mint to creator in tx and
// returns the record. The token is not visible until Record is called with
// the returned asset after tx commits.
func (r *Registry) Issue(
	tx *ledger.Tx,
	name, symbol string,
	totalSupply *uint256.Int,
	creator uuid.UUID,
	timestamp int64,
) (Asset, error) {
	name = strings.TrimSpace(name)
	symbol = strings.TrimSpace(symbol)
	if name == "" || symbol == "" {
		return Asset{}, fmt.Errorf("create token: name and symbol required: %w", errs.ErrInvalidInput)
	}
	if totalSupply == nil || totalSupply.IsZero() {
		return Asset{}, fmt.Errorf("create token %s: total supply must be positive: %w", symbol, errs.ErrInvalidAmount)
	}
	if _, ok := r.bySymbol[symbol]; ok {
		return Asset{}, fmt.Errorf("create token %s: %w", symbol, errs.ErrDuplicateSymbol)
	}

	asset := Asset{
		ID:          r.nextID(),
		Name:        name,
		Symbol:      symbol,
		Creator:     creator,
		TotalSupply: new(uint256.Int).Set(totalSupply),
		CreatedAt:   timestamp,
	}

	if err := tx.Mint(ledger.FungibleInstrument(asset.ID), creator, totalSupply, ledger.JournalTypeMint); err != nil {
		return Asset{}, fmt.Errorf("create token %s: %w", symbol, err)
	}

	return asset, nil
}

// Record makes an issued asset visible. Records must arrive in id order.
func (r *Registry) Record(a Asset) {
	if a.ID != r.nextID() {
		panic(fmt.Sprintf("registry: asset id %d recorded out of order, next is %d", a.ID, r.nextID()))
	}
	r.assets = append(r.assets, a)
	r.bySymbol[a.Symbol] = a.ID
}

func (r *Registry) nextID() ledger.AssetID {
	return ledger.AssetID(len(r.assets) + 1)
}

// Exists reports whether id was issued by the registry.
func (r *Registry) Exists(id ledger.AssetID) bool {
	return id != ledger.NativeAsset && int(id) <= len(r.assets)
}

// Get returns a copy of the asset record.
func (r *Registry) Get(id ledger.AssetID) (Asset, error) {
	if !r.Exists(id) {
		return Asset{}, fmt.Errorf("asset %d: %w", id, errs.ErrNotFound)
	}
	return r.assets[id-1].clone(), nil
}

// BySymbol resolves a symbol to its asset id.
func (r *Registry) BySymbol(symbol string) (ledger.AssetID, error) {
	id, ok := r.bySymbol[strings.TrimSpace(symbol)]
	if !ok {
		return 0, fmt.Errorf("symbol %q: %w", symbol, errs.ErrNotFound)
	}
	return id, nil
}

// All returns every asset in insertion order.
func (r *Registry) All() []Asset {
	out := make([]Asset, len(r.assets))
	for i, a := range r.assets {
		out[i] = a.clone()
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.assets)
}

// Restore replaces the registry contents; assets must be in id order.
func (r *Registry) Restore(assets []Asset) error {
	fresh := New()
	for _, a := range assets {
		if a.ID != fresh.nextID() {
			return fmt.Errorf("restore registry: asset %d out of order", a.ID)
		}
		if _, dup := fresh.bySymbol[a.Symbol]; dup {
			return fmt.Errorf("restore registry: symbol %s: %w", a.Symbol, errs.ErrDuplicateSymbol)
		}
		fresh.Record(a.clone())
	}
	*r = *fresh
	return nil
}

func (a Asset) clone() Asset {
	if a.TotalSupply != nil {
		a.TotalSupply = new(uint256.Int).Set(a.TotalSupply)
	}
	return a
}
