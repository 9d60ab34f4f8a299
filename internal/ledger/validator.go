package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	ledger *Ledger
}

func NewInvariantValidator(l *Ledger) *InvariantValidator {
	return &InvariantValidator{
		ledger: l,
	}
}

// ValidateBatchBalance verifies every entry in batch is well-formed.
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ComputeTotals sums every balance per instrument.
func (v *InvariantValidator) ComputeTotals() map[Instrument]*uint256.Int {
	totals := make(map[Instrument]*uint256.Int)
	for _, t := range []*table{&v.ledger.Fungible.table, &v.ledger.Shares.table} {
		for k, bal := range t.balances {
			sum, ok := totals[k.Instrument]
			if !ok {
				sum = new(uint256.Int)
				totals[k.Instrument] = sum
			}
			sum.Add(sum, &bal)
		}
	}
	return totals
}

// ValidateSupply verifies the balances of inst sum to its supply.
func (v *InvariantValidator) ValidateSupply(inst Instrument) error {
	sum := new(uint256.Int)
	t := v.ledger.book(inst.Book)
	for k, bal := range t.balances {
		if k.Instrument == inst {
			sum.Add(sum, &bal)
		}
	}

	if supply := t.totalSupply(inst); !supply.Eq(sum) {
		return fmt.Errorf("%s: balances sum to %s, supply is %s", inst, sum.Dec(), supply.Dec())
	}
	return nil
}

// ValidateGlobalSupply verifies supply conservation for every instrument.
func (v *InvariantValidator) ValidateGlobalSupply() error {
	totals := v.ComputeTotals()

	for _, t := range []*table{&v.ledger.Fungible.table, &v.ledger.Shares.table} {
		for inst, supply := range t.supply {
			sum, ok := totals[inst]
			if !ok {
				sum = new(uint256.Int)
			}
			if !supply.Eq(sum) {
				return fmt.Errorf("%s: balances sum to %s, supply is %s", inst, sum.Dec(), supply.Dec())
			}
			delete(totals, inst)
		}
	}

	for inst, sum := range totals {
		return fmt.Errorf("%s: balances sum to %s with no supply", inst, sum.Dec())
	}

	return nil
}
