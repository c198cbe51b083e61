package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/clearbook/clearbook/internal/events"
)

// Engine executes deposits, withdrawals and transfers. Each operation follows
// validate, authorize, write atomically, finalize: account checks run against
// committed state first, then a single unit of work locks the participating
// account rows, re-verifies every check against live state, writes the
// transaction with its entries, marks it completed and commits. A failure at
// any point before commit rolls the whole unit back, pending row included.
type Engine struct {
	store        Store
	baseCurrency string
	publisher    events.Publisher
}

// NewEngine builds the transaction engine. publisher may be nil.
func NewEngine(store Store, baseCurrency string, publisher events.Publisher) *Engine {
	return &Engine{store: store, baseCurrency: baseCurrency, publisher: publisher}
}

// DepositInput captures an already-validated deposit payload.
type DepositInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// WithdrawInput captures an already-validated withdrawal payload.
type WithdrawInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// TransferInput captures an already-validated transfer payload.
type TransferInput struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Currency             string
	Description          string
}

// Deposit credits an account and returns the completed transaction.
func (e *Engine) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	if err := validateAmount(in.Amount); err != nil {
		return Transaction{}, err
	}
	currency := e.currency(in.Currency)

	acct, err := e.store.GetAccount(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(acct, currency); err != nil {
		return Transaction{}, err
	}

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	live, err := uow.LockAccount(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(live, currency); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:                   uuid.NewString(),
		Type:                 TypeDeposit,
		Status:               StatusPending,
		Amount:               in.Amount,
		Currency:             currency,
		DestinationAccountID: in.AccountID,
		Description:          orDefault(in.Description, "Deposit"),
		CreatedAt:            now,
	}
	entry := Entry{
		ID:            uuid.NewString(),
		AccountID:     in.AccountID,
		TransactionID: txn.ID,
		Type:          EntryCredit,
		Amount:        in.Amount,
		CreatedAt:     now,
	}
	if err := e.writeAndComplete(ctx, uow, &txn, entry); err != nil {
		return Transaction{}, err
	}

	e.publishCompleted(ctx, txn)
	return txn, nil
}

// Withdraw debits an account, rejecting the operation with
// ErrInsufficientFunds when the derived balance cannot cover it. The funds
// check runs inside the unit of work against the locked account row, so two
// concurrent withdrawals cannot both observe the same pre-debit balance.
func (e *Engine) Withdraw(ctx context.Context, in WithdrawInput) (Transaction, error) {
	if err := validateAmount(in.Amount); err != nil {
		return Transaction{}, err
	}
	currency := e.currency(in.Currency)

	acct, err := e.store.GetAccount(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(acct, currency); err != nil {
		return Transaction{}, err
	}

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	live, err := uow.LockAccount(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(live, currency); err != nil {
		return Transaction{}, err
	}
	if err := requireFunds(ctx, uow, in.AccountID, in.Amount); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:              uuid.NewString(),
		Type:            TypeWithdrawal,
		Status:          StatusPending,
		Amount:          in.Amount,
		Currency:        currency,
		SourceAccountID: in.AccountID,
		Description:     orDefault(in.Description, "Withdrawal"),
		CreatedAt:       now,
	}
	entry := Entry{
		ID:            uuid.NewString(),
		AccountID:     in.AccountID,
		TransactionID: txn.ID,
		Type:          EntryDebit,
		Amount:        in.Amount,
		CreatedAt:     now,
	}
	if err := e.writeAndComplete(ctx, uow, &txn, entry); err != nil {
		return Transaction{}, err
	}

	e.publishCompleted(ctx, txn)
	return txn, nil
}

// Transfer moves funds between two accounts as one balanced posting: a debit
// entry on the source and a credit entry on the destination, both written
// before the transaction is marked completed and before commit. A transfer
// with only one leg persisted is never observable.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (Transaction, error) {
	if in.SourceAccountID == in.DestinationAccountID {
		return Transaction{}, fmt.Errorf("%w: source and destination accounts cannot be the same", ErrInvalidOperation)
	}
	if err := validateAmount(in.Amount); err != nil {
		return Transaction{}, err
	}
	currency := e.currency(in.Currency)

	// Load both participants in parallel; authoritative checks re-run under
	// lock inside the unit of work regardless of what this prefetch saw.
	var source, destination Account
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = e.store.GetAccount(gctx, in.SourceAccountID)
		return err
	})
	g.Go(func() error {
		var err error
		destination, err = e.store.GetAccount(gctx, in.DestinationAccountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(source, currency); err != nil {
		return Transaction{}, err
	}
	if err := checkOperable(destination, currency); err != nil {
		return Transaction{}, err
	}

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	// Fixed lock order by identifier avoids deadlock between crossing
	// transfers on the same account pair.
	for _, id := range lockOrder(in.SourceAccountID, in.DestinationAccountID) {
		live, err := uow.LockAccount(ctx, id)
		if err != nil {
			return Transaction{}, err
		}
		if err := checkOperable(live, currency); err != nil {
			return Transaction{}, err
		}
	}
	if err := requireFunds(ctx, uow, in.SourceAccountID, in.Amount); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:                   uuid.NewString(),
		Type:                 TypeTransfer,
		Status:               StatusPending,
		Amount:               in.Amount,
		Currency:             currency,
		SourceAccountID:      in.SourceAccountID,
		DestinationAccountID: in.DestinationAccountID,
		Description:          in.Description,
		CreatedAt:            now,
	}
	debit := Entry{
		ID:            uuid.NewString(),
		AccountID:     in.SourceAccountID,
		TransactionID: txn.ID,
		Type:          EntryDebit,
		Amount:        in.Amount,
		CreatedAt:     now,
	}
	credit := Entry{
		ID:            uuid.NewString(),
		AccountID:     in.DestinationAccountID,
		TransactionID: txn.ID,
		Type:          EntryCredit,
		Amount:        in.Amount,
		CreatedAt:     now,
	}
	if err := e.writeAndComplete(ctx, uow, &txn, debit, credit); err != nil {
		return Transaction{}, err
	}

	e.publishCompleted(ctx, txn)
	return txn, nil
}

// writeAndComplete inserts the pending transaction with all of its entries,
// marks it completed and commits the unit. On success txn reflects the
// committed state.
func (e *Engine) writeAndComplete(ctx context.Context, uow UnitOfWork, txn *Transaction, entries ...Entry) error {
	if err := uow.InsertTransaction(ctx, *txn); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := uow.InsertEntry(ctx, entry); err != nil {
			return err
		}
	}
	completedAt := time.Now().UTC()
	if err := uow.CompleteTransaction(ctx, txn.ID, completedAt); err != nil {
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}
	txn.Status = StatusCompleted
	txn.CompletedAt = completedAt
	return nil
}

func (e *Engine) publishCompleted(ctx context.Context, txn Transaction) {
	if e.publisher == nil {
		return
	}
	// Best effort: the transaction is already committed.
	_ = e.publisher.Publish(ctx, events.TransactionCompleted{
		TransactionID:        txn.ID,
		Type:                 txn.Type,
		Amount:               txn.Amount.String(),
		Currency:             txn.Currency,
		SourceAccountID:      txn.SourceAccountID,
		DestinationAccountID: txn.DestinationAccountID,
		CompletedAt:          txn.CompletedAt,
	})
}

func (e *Engine) currency(requested string) string {
	if requested == "" {
		return e.baseCurrency
	}
	return requested
}

func requireFunds(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal) error {
	balance, err := uow.SumEntries(ctx, accountID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

func checkOperable(acct Account, currency string) error {
	if acct.Status != StatusActive {
		return fmt.Errorf("%w: account %s is %s", ErrInvalidState, acct.ID, acct.Status)
	}
	if acct.Currency != currency {
		return fmt.Errorf("%w: account %s holds %s, requested %s", ErrCurrencyMismatch, acct.ID, acct.Currency, currency)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

func lockOrder(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
