package ledger

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// table is the committed balance and supply state of one book.
// Zero balances are never stored.
type table struct {
	balances map[AccountKey]uint256.Int
	supply   map[Instrument]uint256.Int
}

func newTable() table {
	return table{
		balances: make(map[AccountKey]uint256.Int),
		supply:   make(map[Instrument]uint256.Int),
	}
}

func (t *table) balance(key AccountKey) *uint256.Int {
	v := t.balances[key]
	return &v
}

func (t *table) totalSupply(inst Instrument) *uint256.Int {
	v := t.supply[inst]
	return &v
}

func (t *table) setBalance(key AccountKey, v *uint256.Int) {
	if v.IsZero() {
		delete(t.balances, key)
		return
	}
	t.balances[key] = *v
}

func (t *table) setSupply(inst Instrument, v *uint256.Int) {
	if v.IsZero() {
		delete(t.supply, inst)
		return
	}
	t.supply[inst] = *v
}

// Ledger holds both books. All mutation goes through a Tx.
type Ledger struct {
	Fungible *FungibleLedger
	Shares   *ShareLedger
}

func New() *Ledger {
	return &Ledger{
		Fungible: &FungibleLedger{
			table:      newTable(),
			allowances: make(map[AllowanceKey]uint256.Int),
		},
		Shares: &ShareLedger{table: newTable()},
	}
}

func (l *Ledger) book(b Book) *table {
	if b == BookShares {
		return &l.Shares.table
	}
	return &l.Fungible.table
}

// BalanceOf returns the committed balance of holder in inst.
func (l *Ledger) BalanceOf(holder uuid.UUID, inst Instrument) *uint256.Int {
	return l.book(inst.Book).balance(NewAccountKey(holder, inst))
}

// TotalSupply returns the committed supply of inst.
func (l *Ledger) TotalSupply(inst Instrument) *uint256.Int {
	return l.book(inst.Book).totalSupply(inst)
}

// BalanceEntry is one non-zero balance, used by snapshots and hashing.
type BalanceEntry struct {
	Key    AccountKey   `json:"key"`
	Amount *uint256.Int `json:"amount"`
}

// SupplyEntry is one non-zero instrument supply.
type SupplyEntry struct {
	Instrument Instrument   `json:"instrument"`
	Amount     *uint256.Int `json:"amount"`
}

// AllowanceEntry is one non-zero allowance.
type AllowanceEntry struct {
	Key    AllowanceKey `json:"key"`
	Amount *uint256.Int `json:"amount"`
}

// Balances returns every non-zero balance of both books in a stable order.
func (l *Ledger) Balances() []BalanceEntry {
	out := make([]BalanceEntry, 0, len(l.Fungible.balances)+len(l.Shares.balances))
	for _, t := range []*table{&l.Fungible.table, &l.Shares.table} {
		for k, v := range t.balances {
			out = append(out, BalanceEntry{Key: k, Amount: new(uint256.Int).Set(&v)})
		}
	}
	slices.SortFunc(out, func(a, b BalanceEntry) int { return compareAccountKeys(a.Key, b.Key) })
	return out
}

// Supplies returns every non-zero supply of both books in a stable order.
func (l *Ledger) Supplies() []SupplyEntry {
	out := make([]SupplyEntry, 0, len(l.Fungible.supply)+len(l.Shares.supply))
	for _, t := range []*table{&l.Fungible.table, &l.Shares.table} {
		for inst, v := range t.supply {
			out = append(out, SupplyEntry{Instrument: inst, Amount: new(uint256.Int).Set(&v)})
		}
	}
	slices.SortFunc(out, func(a, b SupplyEntry) int { return compareInstruments(a.Instrument, b.Instrument) })
	return out
}

// Allowances returns every non-zero allowance in a stable order.
func (l *Ledger) Allowances() []AllowanceEntry {
	out := make([]AllowanceEntry, 0, len(l.Fungible.allowances))
	for k, v := range l.Fungible.allowances {
		out = append(out, AllowanceEntry{Key: k, Amount: new(uint256.Int).Set(&v)})
	}
	slices.SortFunc(out, func(a, b AllowanceEntry) int {
		if c := cmp.Compare(a.Key.Asset, b.Key.Asset); c != 0 {
			return c
		}
		if c := bytes.Compare(a.Key.Owner[:], b.Key.Owner[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Key.Spender[:], b.Key.Spender[:])
	})
	return out
}

// Restore replaces all state with the given entries. Used when loading a
// snapshot; callers validate invariants afterwards.
func (l *Ledger) Restore(balances []BalanceEntry, supplies []SupplyEntry, allowances []AllowanceEntry) {
	fresh := New()
	for _, e := range balances {
		fresh.book(e.Key.Instrument.Book).setBalance(e.Key, e.Amount)
	}
	for _, e := range supplies {
		fresh.book(e.Instrument.Book).setSupply(e.Instrument, e.Amount)
	}
	for _, e := range allowances {
		if !e.Amount.IsZero() {
			fresh.Fungible.allowances[e.Key] = *e.Amount
		}
	}
	*l.Fungible = *fresh.Fungible
	*l.Shares = *fresh.Shares
}

func compareInstruments(a, b Instrument) int {
	if c := cmp.Compare(a.Book, b.Book); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareAccountKeys(a, b AccountKey) int {
	if c := compareInstruments(a.Instrument, b.Instrument); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Scope, b.Scope); c != 0 {
		return c
	}
	return bytes.Compare(a.Holder[:], b.Holder[:])
}
