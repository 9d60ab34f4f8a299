package ledger

import (
	"ArtistExchange/internal/errs"
	fpmath "ArtistExchange/internal/math"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var batchNamespace = uuid.MustParse("2b7e1f3a-9c4d-4e8a-b6f1-0d5c3a7e9b21")

// Tx stages ledger mutations for one operation. Reads see staged values;
// nothing reaches the committed tables until Commit. A failed operation
// calls Discard and leaves the ledger untouched.
type Tx struct {
	ledger     *Ledger
	batch      Batch
	balances   map[AccountKey]uint256.Int
	supply     map[Instrument]uint256.Int
	allowances map[AllowanceKey]uint256.Int
	done       bool
}

// Begin opens a transaction whose journals carry eventRef, sequence and
// timestamp (epoch microseconds).
func (l *Ledger) Begin(eventRef string, sequence, timestamp int64) *Tx {
	batchID := uuid.NewSHA1(batchNamespace, []byte(eventRef+"/"+strconv.FormatInt(sequence, 10)))
	return &Tx{
		ledger: l,
		batch: Batch{
			BatchID:   batchID,
			EventRef:  eventRef,
			Sequence:  sequence,
			Timestamp: timestamp,
		},
		balances:   make(map[AccountKey]uint256.Int),
		supply:     make(map[Instrument]uint256.Int),
		allowances: make(map[AllowanceKey]uint256.Int),
	}
}

// Timestamp returns the transaction's timestamp in epoch microseconds.
func (tx *Tx) Timestamp() int64 {
	return tx.batch.Timestamp
}

func (tx *Tx) balance(key AccountKey) *uint256.Int {
	if v, ok := tx.balances[key]; ok {
		return &v
	}
	return tx.ledger.book(key.Instrument.Book).balance(key)
}

func (tx *Tx) totalSupply(inst Instrument) *uint256.Int {
	if v, ok := tx.supply[inst]; ok {
		return &v
	}
	return tx.ledger.book(inst.Book).totalSupply(inst)
}

func (tx *Tx) allowance(key AllowanceKey) *uint256.Int {
	if v, ok := tx.allowances[key]; ok {
		return &v
	}
	v := tx.ledger.Fungible.allowances[key]
	return &v
}

// BalanceOf returns holder's balance of inst including staged changes.
func (tx *Tx) BalanceOf(holder uuid.UUID, inst Instrument) *uint256.Int {
	return tx.balance(NewAccountKey(holder, inst))
}

// TotalSupply returns inst's supply including staged changes.
func (tx *Tx) TotalSupply(inst Instrument) *uint256.Int {
	return tx.totalSupply(inst)
}

// Allowance returns the staged allowance of spender over owner's asset.
func (tx *Tx) Allowance(asset AssetID, owner, spender uuid.UUID) *uint256.Int {
	return tx.allowance(AllowanceKey{Asset: asset, Owner: owner, Spender: spender})
}

func insufficientFor(inst Instrument) error {
	if inst.Book == BookShares {
		return errs.ErrInsufficientShares
	}
	return errs.ErrInsufficientBalance
}

// move stages amount from credit to debit. External keys adjust supply
// instead of holding a balance.
func (tx *Tx) move(debit, credit AccountKey, amount *uint256.Int, jt JournalType) error {
	inst := debit.Instrument

	if credit.Scope == AccountScopeExternal {
		next, err := fpmath.Add(tx.totalSupply(inst), amount)
		if err != nil {
			return fmt.Errorf("mint %s: %w", inst, err)
		}
		tx.supply[inst] = *next
	} else {
		have := tx.balance(credit)
		if have.Lt(amount) {
			return fmt.Errorf("%s has %s, needs %s: %w", credit.AccountPath(), have.Dec(), amount.Dec(), insufficientFor(inst))
		}
		tx.balances[credit] = *new(uint256.Int).Sub(have, amount)
	}

	if debit.Scope == AccountScopeExternal {
		// Supply always covers the sum of balances, so this cannot underflow
		// once the credit side was checked.
		tx.supply[inst] = *new(uint256.Int).Sub(tx.totalSupply(inst), amount)
	} else {
		next, err := fpmath.Add(tx.balance(debit), amount)
		if err != nil {
			return fmt.Errorf("credit %s: %w", debit.AccountPath(), err)
		}
		tx.balances[debit] = *next
	}

	tx.batch.Journals = append(tx.batch.Journals, Journal{
		JournalID:     uuid.NewSHA1(tx.batch.BatchID, []byte(strconv.Itoa(len(tx.batch.Journals)))),
		BatchID:       tx.batch.BatchID,
		EventRef:      tx.batch.EventRef,
		Sequence:      tx.batch.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        *amount,
		JournalType:   jt,
		Timestamp:     tx.batch.Timestamp,
	})
	return nil
}

// Mint creates amount of inst for to. Minting zero is a no-op.
func (tx *Tx) Mint(inst Instrument, to uuid.UUID, amount *uint256.Int, jt JournalType) error {
	if amount.IsZero() {
		return nil
	}
	return tx.move(NewAccountKey(to, inst), NewIssuanceKey(inst), amount, jt)
}

// Burn destroys amount of inst held by from.
func (tx *Tx) Burn(inst Instrument, from uuid.UUID, amount *uint256.Int, jt JournalType) error {
	if amount.IsZero() {
		return fmt.Errorf("burn %s: %w", inst, errs.ErrInvalidAmount)
	}
	return tx.move(NewIssuanceKey(inst), NewAccountKey(from, inst), amount, jt)
}

// Transfer moves amount of inst from one holder to another. A transfer to
// oneself only checks the balance.
func (tx *Tx) Transfer(inst Instrument, from, to uuid.UUID, amount *uint256.Int, jt JournalType) error {
	if amount.IsZero() {
		return fmt.Errorf("transfer %s: %w", inst, errs.ErrInvalidAmount)
	}
	if from == to {
		if have := tx.BalanceOf(from, inst); have.Lt(amount) {
			return fmt.Errorf("self transfer %s: %w", inst, insufficientFor(inst))
		}
		return nil
	}
	return tx.move(NewAccountKey(to, inst), NewAccountKey(from, inst), amount, jt)
}

// Approve sets (not adds to) spender's allowance over owner's asset.
func (tx *Tx) Approve(asset AssetID, owner, spender uuid.UUID, amount *uint256.Int) {
	tx.allowances[AllowanceKey{Asset: asset, Owner: owner, Spender: spender}] = *amount
}

// TransferFrom spends spender's allowance over from's asset and moves the
// tokens to to. The allowance is checked before the balance.
func (tx *Tx) TransferFrom(asset AssetID, spender, from, to uuid.UUID, amount *uint256.Int, jt JournalType) error {
	if amount.IsZero() {
		return fmt.Errorf("transfer_from asset=%d: %w", asset, errs.ErrInvalidAmount)
	}

	key := AllowanceKey{Asset: asset, Owner: from, Spender: spender}
	allowed := tx.allowance(key)
	if allowed.Lt(amount) {
		return fmt.Errorf("allowance %s < %s: %w", allowed.Dec(), amount.Dec(), errs.ErrInsufficientAllowance)
	}

	if err := tx.Transfer(FungibleInstrument(asset), from, to, amount, jt); err != nil {
		return err
	}
	tx.allowances[key] = *new(uint256.Int).Sub(allowed, amount)
	return nil
}

// Commit validates the staged batch and applies it. The returned batch
// lists every journal in order.
func (tx *Tx) Commit() (*Batch, error) {
	if tx.done {
		return nil, fmt.Errorf("tx %s already finished", tx.batch.BatchID)
	}
	if err := tx.batch.Validate(); err != nil {
		return nil, err
	}
	tx.done = true

	for k, v := range tx.balances {
		tx.ledger.book(k.Instrument.Book).setBalance(k, &v)
	}
	for inst, v := range tx.supply {
		tx.ledger.book(inst.Book).setSupply(inst, &v)
	}
	for k, v := range tx.allowances {
		if v.IsZero() {
			delete(tx.ledger.Fungible.allowances, k)
		} else {
			tx.ledger.Fungible.allowances[k] = v
		}
	}

	batch := tx.batch
	return &batch, nil
}

// Discard drops every staged change.
func (tx *Tx) Discard() {
	tx.done = true
	tx.balances = nil
	tx.supply = nil
	tx.allowances = nil
}
