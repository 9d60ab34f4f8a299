package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeMint JournalType = iota
	JournalTypeBurn
	JournalTypeTransfer
	JournalTypeTransferFrom
	JournalTypeDeposit
	JournalTypeWithdrawal
	JournalTypeLiquidityAdd
	JournalTypeSwapIn
	JournalTypeSwapOut
	JournalTypeSharePayment
	JournalTypeShareRefund
	JournalTypeShareIssue
	JournalTypeShareRedeem
	JournalTypeSharePayout
)

var journalTypeNames = map[JournalType]string{
	JournalTypeMint:         "mint",
	JournalTypeBurn:         "burn",
	JournalTypeTransfer:     "transfer",
	JournalTypeTransferFrom: "transfer_from",
	JournalTypeDeposit:      "deposit",
	JournalTypeWithdrawal:   "withdrawal",
	JournalTypeLiquidityAdd: "liquidity_add",
	JournalTypeSwapIn:       "swap_in",
	JournalTypeSwapOut:      "swap_out",
	JournalTypeSharePayment: "share_payment",
	JournalTypeShareRefund:  "share_refund",
	JournalTypeShareIssue:   "share_issue",
	JournalTypeShareRedeem:  "share_redeem",
	JournalTypeSharePayout:  "share_payout",
}

func (t JournalType) String() string {
	if s, ok := journalTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("journal_type(%d)", int32(t))
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups entries of one operation
	EventRef      string      // Idempotency key of source command
	Sequence      int64       // Global event sequence
	DebitAccount  AccountKey  // Account receiving value (balance increases)
	CreditAccount AccountKey  // Account giving value (balance decreases)
	Amount        uint256.Int // Base units, always positive
	JournalType   JournalType
	Timestamp     int64 // Epoch microseconds
}

// Instrument returns the instrument both legs of j move.
func (j *Journal) Instrument() Instrument {
	return j.DebitAccount.Instrument
}

// Batch is every journal produced by one committed operation.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed. Each entry moves one positive
// amount between two accounts of the same instrument, so every entry is
// balanced on its own. An empty batch is valid: approvals move no value.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount.IsZero() {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.Instrument != j.CreditAccount.Instrument {
			return fmt.Errorf("journal %s crosses instruments %s/%s",
				j.JournalID, j.DebitAccount.Instrument, j.CreditAccount.Instrument)
		}

		if j.DebitAccount.Scope == AccountScopeExternal && j.CreditAccount.Scope == AccountScopeExternal {
			return fmt.Errorf("journal %s moves between two external accounts", j.JournalID)
		}
	}

	return nil
}

