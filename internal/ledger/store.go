package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// Reads outside a unit of work observe committed state only.
type Store interface {
	CreateAccount(ctx context.Context, acct Account) error
	GetAccount(ctx context.Context, id string) (Account, error)

	// SumEntries aggregates the account's entries under the credit(+)/debit(-)
	// convention. An account with no entries sums to exactly zero.
	SumEntries(ctx context.Context, accountID string) (decimal.Decimal, error)

	// EntriesByAccount lists the account's entries newest first, each joined
	// with its transaction summary.
	EntriesByAccount(ctx context.Context, accountID string) ([]LedgerLine, error)

	// Begin opens a unit of work. The caller must finish it with Commit or
	// Rollback on every path.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork scopes a group of reads and writes that commit or roll back as
// one. Rollback after a successful Commit is a no-op, so callers defer it
// unconditionally.
type UnitOfWork interface {
	// LockAccount loads the account row and holds it against concurrent
	// writers until the unit finishes. Conflicting debits on the same account
	// serialize on this lock.
	LockAccount(ctx context.Context, id string) (Account, error)

	// SumEntries aggregates within the unit, observing its pending writes.
	SumEntries(ctx context.Context, accountID string) (decimal.Decimal, error)

	InsertTransaction(ctx context.Context, txn Transaction) error
	InsertEntry(ctx context.Context, entry Entry) error
	CompleteTransaction(ctx context.Context, id string, at time.Time) error
	SetAccountStatus(ctx context.Context, id, status string, at time.Time) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
