package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is a concurrency-safe in-memory store used by tests and
// database-less development mode. A unit of work holds the store mutex from
// Begin until Commit or Rollback, which serializes conflicting operations the
// way row locks do in Postgres.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[string]Account
	transactions map[string]Transaction
	entries      []Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]Account),
		transactions: make(map[string]Transaction),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.ID] = acct
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (s *MemoryStore) SumEntries(_ context.Context, accountID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(accountID), nil
}

func (s *MemoryStore) EntriesByAccount(_ context.Context, accountID string) ([]LedgerLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	var lines []LedgerLine
	// Newest first.
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.AccountID != accountID {
			continue
		}
		txn := s.transactions[entry.TransactionID]
		lines = append(lines, LedgerLine{
			Entry:                  entry,
			TransactionType:        txn.Type,
			TransactionStatus:      txn.Status,
			TransactionDescription: txn.Description,
		})
	}
	return lines, nil
}

// Begin acquires the store lock until the unit of work finishes.
func (s *MemoryStore) Begin(_ context.Context) (UnitOfWork, error) {
	s.mu.Lock()
	return &memoryUnitOfWork{store: s}, nil
}

func (s *MemoryStore) sumLocked(accountID string) decimal.Decimal {
	balance := decimal.Zero
	for _, entry := range s.entries {
		if entry.AccountID == accountID {
			balance = balance.Add(entry.Signed())
		}
	}
	return balance
}

// memoryUnitOfWork stages writes and applies them on Commit only, so a failed
// operation leaves no trace.
type memoryUnitOfWork struct {
	store         *MemoryStore
	pending       []func()
	stagedEntries []Entry
	done          bool
}

func (u *memoryUnitOfWork) LockAccount(_ context.Context, id string) (Account, error) {
	acct, ok := u.store.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (u *memoryUnitOfWork) SumEntries(_ context.Context, accountID string) (decimal.Decimal, error) {
	balance := u.store.sumLocked(accountID)
	for _, entry := range u.stagedEntries {
		if entry.AccountID == accountID {
			balance = balance.Add(entry.Signed())
		}
	}
	return balance, nil
}

func (u *memoryUnitOfWork) InsertTransaction(_ context.Context, txn Transaction) error {
	u.pending = append(u.pending, func() {
		u.store.transactions[txn.ID] = txn
	})
	return nil
}

func (u *memoryUnitOfWork) InsertEntry(_ context.Context, entry Entry) error {
	u.pending = append(u.pending, func() {
		u.store.entries = append(u.store.entries, entry)
	})
	u.stagedEntries = append(u.stagedEntries, entry)
	return nil
}

func (u *memoryUnitOfWork) CompleteTransaction(_ context.Context, id string, at time.Time) error {
	u.pending = append(u.pending, func() {
		txn := u.store.transactions[id]
		txn.Status = StatusCompleted
		txn.CompletedAt = at
		u.store.transactions[id] = txn
	})
	return nil
}

func (u *memoryUnitOfWork) SetAccountStatus(_ context.Context, id, status string, at time.Time) error {
	if _, ok := u.store.accounts[id]; !ok {
		return ErrNotFound
	}
	u.pending = append(u.pending, func() {
		acct := u.store.accounts[id]
		acct.Status = status
		acct.UpdatedAt = at
		u.store.accounts[id] = acct
	})
	return nil
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		// Cancellation before the commit point rolls the unit back entirely.
		u.finish()
		return err
	}
	for _, apply := range u.pending {
		apply()
	}
	u.finish()
	return nil
}

func (u *memoryUnitOfWork) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *memoryUnitOfWork) finish() {
	u.done = true
	u.pending = nil
	u.stagedEntries = nil
	u.store.mu.Unlock()
}
