package ledger_test

import (
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/ledger"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var tokenA = ledger.FungibleInstrument(1)

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	holder := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewAccountKey(holder, tokenA)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:asset:1"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_SystemPath(t *testing.T) {
	key := ledger.NewAccountKey(ledger.ExchangeAccount, ledger.FungibleInstrument(ledger.NativeAsset))

	if key.Scope != ledger.AccountScopeSystem {
		t.Fatalf("exchange account should be system scope, got %d", key.Scope)
	}
	if path := key.AccountPath(); path != "system:exchange:native" {
		t.Errorf("got %q, want %q", path, "system:exchange:native")
	}
}

func TestAccountKey_IssuancePath(t *testing.T) {
	key := ledger.NewIssuanceKey(ledger.ShareInstrument(7))

	if path := key.AccountPath(); path != "external:issuance:shares:7" {
		t.Errorf("got %q, want %q", path, "external:issuance:shares:7")
	}
}

func TestSystemAccounts_Stable(t *testing.T) {
	if ledger.NewSystemAccount("exchange") != ledger.ExchangeAccount {
		t.Error("system account ids must be deterministic")
	}
	if ledger.ExchangeAccount == ledger.BondingAccount {
		t.Error("exchange and bonding custody must differ")
	}
	if ledger.IsSystemAccount(uuid.New()) {
		t.Error("random id should not be a system account")
	}
}

// ============================================================================
// Test: Tx staging
// ============================================================================

func TestTx_MintCommit(t *testing.T) {
	l := ledger.New()
	alice := uuid.New()

	tx := l.Begin("mint-1", 1, 1000)
	if err := tx.Mint(tokenA, alice, u(500), ledger.JournalTypeMint); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if got := l.BalanceOf(alice, tokenA); !got.IsZero() {
		t.Errorf("uncommitted mint visible: %s", got.Dec())
	}
	if got := tx.BalanceOf(alice, tokenA); got.Uint64() != 500 {
		t.Errorf("staged balance: got %d, want 500", got.Uint64())
	}

	batch, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(batch.Journals) != 1 {
		t.Fatalf("journals: got %d, want 1", len(batch.Journals))
	}
	j := batch.Journals[0]
	if j.CreditAccount.Scope != ledger.AccountScopeExternal || j.JournalType != ledger.JournalTypeMint {
		t.Errorf("unexpected journal %+v", j)
	}

	if got := l.BalanceOf(alice, tokenA); got.Uint64() != 500 {
		t.Errorf("balance: got %d, want 500", got.Uint64())
	}
	if got := l.TotalSupply(tokenA); got.Uint64() != 500 {
		t.Errorf("supply: got %d, want 500", got.Uint64())
	}
}

func TestTx_DiscardLeavesLedgerUntouched(t *testing.T) {
	l := ledger.New()
	alice, bob := uuid.New(), uuid.New()
	seed(t, l, alice, 100)

	tx := l.Begin("xfer", 2, 0)
	if err := tx.Transfer(tokenA, alice, bob, u(40), ledger.JournalTypeTransfer); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	tx.Discard()

	if got := l.BalanceOf(alice, tokenA); got.Uint64() != 100 {
		t.Errorf("alice: got %d, want 100", got.Uint64())
	}
	if got := l.BalanceOf(bob, tokenA); !got.IsZero() {
		t.Errorf("bob: got %d, want 0", got.Uint64())
	}
}

func TestTx_TransferInsufficientBalance(t *testing.T) {
	l := ledger.New()
	alice, bob := uuid.New(), uuid.New()
	seed(t, l, alice, 10)

	tx := l.Begin("xfer", 2, 0)
	defer tx.Discard()

	err := tx.Transfer(tokenA, alice, bob, u(11), ledger.JournalTypeTransfer)
	if !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestTx_TransferZeroRejected(t *testing.T) {
	l := ledger.New()
	tx := l.Begin("xfer", 1, 0)
	defer tx.Discard()

	err := tx.Transfer(tokenA, uuid.New(), uuid.New(), u(0), ledger.JournalTypeTransfer)
	if !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestTx_SelfTransferNoJournal(t *testing.T) {
	l := ledger.New()
	alice := uuid.New()
	seed(t, l, alice, 10)

	tx := l.Begin("self", 2, 0)
	if err := tx.Transfer(tokenA, alice, alice, u(10), ledger.JournalTypeTransfer); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	batch, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(batch.Journals) != 0 {
		t.Errorf("self transfer should not journal, got %d", len(batch.Journals))
	}
	if got := l.BalanceOf(alice, tokenA); got.Uint64() != 10 {
		t.Errorf("balance: got %d, want 10", got.Uint64())
	}
}

func TestTx_ApproveOverwrites(t *testing.T) {
	l := ledger.New()
	owner, spender := uuid.New(), uuid.New()

	tx := l.Begin("approve", 1, 0)
	tx.Approve(1, owner, spender, u(100))
	tx.Approve(1, owner, spender, u(30))
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got := l.Fungible.Allowance(1, owner, spender); got.Uint64() != 30 {
		t.Errorf("allowance: got %d, want 30", got.Uint64())
	}
}

func TestTx_TransferFrom(t *testing.T) {
	l := ledger.New()
	owner, spender, dest := uuid.New(), uuid.New(), uuid.New()
	seed(t, l, owner, 100)

	tx := l.Begin("approve", 2, 0)
	tx.Approve(1, owner, spender, u(60))
	mustCommit(t, tx)

	tx = l.Begin("pull", 3, 0)
	if err := tx.TransferFrom(1, spender, owner, dest, u(50), ledger.JournalTypeTransferFrom); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	mustCommit(t, tx)

	if got := l.Fungible.Allowance(1, owner, spender); got.Uint64() != 10 {
		t.Errorf("allowance: got %d, want 10", got.Uint64())
	}
	if got := l.Fungible.BalanceOf(1, dest); got.Uint64() != 50 {
		t.Errorf("dest: got %d, want 50", got.Uint64())
	}

	tx = l.Begin("pull-2", 4, 0)
	defer tx.Discard()
	err := tx.TransferFrom(1, spender, owner, dest, u(11), ledger.JournalTypeTransferFrom)
	if !errors.Is(err, errs.ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
}

func TestTx_TransferFromAllowanceCheckedFirst(t *testing.T) {
	l := ledger.New()
	owner, spender := uuid.New(), uuid.New()

	tx := l.Begin("pull", 1, 0)
	defer tx.Discard()
	err := tx.TransferFrom(1, spender, owner, spender, u(5), ledger.JournalTypeTransferFrom)
	if !errors.Is(err, errs.ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
}

func TestTx_BurnReducesSupply(t *testing.T) {
	l := ledger.New()
	alice := uuid.New()
	shares := ledger.ShareInstrument(1)

	tx := l.Begin("issue", 1, 0)
	if err := tx.Mint(shares, alice, u(5), ledger.JournalTypeShareIssue); err != nil {
		t.Fatal(err)
	}
	mustCommit(t, tx)

	tx = l.Begin("redeem", 2, 0)
	if err := tx.Burn(shares, alice, u(2), ledger.JournalTypeShareRedeem); err != nil {
		t.Fatal(err)
	}
	mustCommit(t, tx)

	if got := l.Shares.BalanceOf(1, alice); got.Uint64() != 3 {
		t.Errorf("shares: got %d, want 3", got.Uint64())
	}
	if got := l.Shares.Outstanding(1); got.Uint64() != 3 {
		t.Errorf("outstanding: got %d, want 3", got.Uint64())
	}

	tx = l.Begin("redeem-2", 3, 0)
	defer tx.Discard()
	if err := tx.Burn(shares, alice, u(4), ledger.JournalTypeShareRedeem); !errors.Is(err, errs.ErrInsufficientShares) {
		t.Errorf("got %v, want ErrInsufficientShares", err)
	}
}

func TestTx_CommitTwice(t *testing.T) {
	l := ledger.New()
	tx := l.Begin("once", 1, 0)
	mustCommit(t, tx)

	if _, err := tx.Commit(); err == nil {
		t.Error("second commit should fail")
	}
}

// ============================================================================
// Test: Batch validation
// ============================================================================

func TestBatch_Validate_SameAccount(t *testing.T) {
	batchID := uuid.New()
	key := ledger.NewAccountKey(uuid.New(), tokenA)
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  key,
			CreditAccount: key,
			Amount:        *u(1),
		}},
	}

	if err := batch.Validate(); err == nil {
		t.Error("expected error for same debit and credit account")
	}
}

func TestBatch_Validate_CrossInstrument(t *testing.T) {
	batchID := uuid.New()
	holder := uuid.New()
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  ledger.NewAccountKey(holder, tokenA),
			CreditAccount: ledger.NewAccountKey(holder, ledger.FungibleInstrument(2)),
			Amount:        *u(1),
		}},
	}

	if err := batch.Validate(); err == nil {
		t.Error("expected error for cross-instrument journal")
	}
}

func TestBatch_Validate_ZeroAmount(t *testing.T) {
	batchID := uuid.New()
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  ledger.NewAccountKey(uuid.New(), tokenA),
			CreditAccount: ledger.NewAccountKey(uuid.New(), tokenA),
		}},
	}

	if err := batch.Validate(); err == nil {
		t.Error("expected error for zero amount")
	}
}

// ============================================================================
// Test: Invariants
// ============================================================================

func TestValidator_SupplyConservedAcrossOperations(t *testing.T) {
	l := ledger.New()
	v := ledger.NewInvariantValidator(l)
	holders := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	seed(t, l, holders[0], 1_000)

	for i := int64(0); i < 30; i++ {
		from := holders[i%3]
		to := holders[(i+1)%3]
		tx := l.Begin("step", i+2, 0)
		amt := u(uint64(i%7 + 1))
		if err := tx.Transfer(tokenA, from, to, amt, ledger.JournalTypeTransfer); err != nil {
			tx.Discard()
			continue
		}
		mustCommit(t, tx)

		if err := v.ValidateSupply(tokenA); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if err := v.ValidateGlobalSupply(); err != nil {
		t.Errorf("global: %v", err)
	}
	if got := l.TotalSupply(tokenA); got.Uint64() != 1_000 {
		t.Errorf("supply drifted: %d", got.Uint64())
	}
}

func TestLedger_RestoreRoundTrip(t *testing.T) {
	l := ledger.New()
	alice, bob := uuid.New(), uuid.New()
	seed(t, l, alice, 70)

	tx := l.Begin("approve", 2, 0)
	tx.Approve(1, alice, bob, u(9))
	mustCommit(t, tx)

	restored := ledger.New()
	restored.Restore(l.Balances(), l.Supplies(), l.Allowances())

	if got := restored.BalanceOf(alice, tokenA); got.Uint64() != 70 {
		t.Errorf("balance: got %d, want 70", got.Uint64())
	}
	if got := restored.Fungible.Allowance(1, alice, bob); got.Uint64() != 9 {
		t.Errorf("allowance: got %d, want 9", got.Uint64())
	}
	if err := ledger.NewInvariantValidator(restored).ValidateGlobalSupply(); err != nil {
		t.Errorf("restored ledger invalid: %v", err)
	}
}

func seed(t *testing.T, l *ledger.Ledger, holder uuid.UUID, amount uint64) {
	t.Helper()
	tx := l.Begin("seed", 1, 0)
	if err := tx.Mint(tokenA, holder, u(amount), ledger.JournalTypeMint); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mustCommit(t, tx)
}

func mustCommit(t *testing.T, tx *ledger.Tx) *ledger.Batch {
	t.Helper()
	batch, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return batch
}
