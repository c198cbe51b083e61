package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account categories accepted by the registry.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
	AccountTypeBusiness = "business"
)

// Account lifecycle states.
const (
	StatusActive = "active"
	StatusFrozen = "frozen"
	StatusClosed = "closed"
)

// Transaction types.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTransfer   = "transfer"
)

// Transaction states. A transaction is inserted as pending and flipped to
// completed inside the same unit of work; a failed unit rolls back the pending
// row as well, so no other state is ever observable.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Entry directions.
const (
	EntryDebit  = "debit"
	EntryCredit = "credit"
)

// Account holds the registry attributes consulted by the engine. Balance is
// never stored here; it is always derived from the account's entries.
type Account struct {
	ID        string
	UserID    string
	Type      string
	Currency  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction records one financial operation. Deposits populate the
// destination account only, withdrawals the source only, transfers both.
type Transaction struct {
	ID                   string
	Type                 string
	Status               string
	Amount               decimal.Decimal
	Currency             string
	SourceAccountID      string
	DestinationAccountID string
	Description          string
	CreatedAt            time.Time
	CompletedAt          time.Time
}

// Entry is one side of a double-entry posting. Entries are append-only and
// never edited after the unit of work that wrote them commits.
type Entry struct {
	ID            string
	AccountID     string
	TransactionID string
	Type          string
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// Signed returns the entry amount under the credit(+)/debit(-) convention.
func (e Entry) Signed() decimal.Decimal {
	if e.Type == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// LedgerLine is an entry joined with a summary of the transaction that
// produced it, for account statement listings.
type LedgerLine struct {
	Entry
	TransactionType        string
	TransactionStatus      string
	TransactionDescription string
}
