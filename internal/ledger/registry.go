package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Registry handles account creation and lookup.
type Registry struct {
	store        Store
	calc         *Calculator
	baseCurrency string
}

// NewRegistry builds an account registry over the given store.
func NewRegistry(store Store, baseCurrency string) *Registry {
	return &Registry{store: store, calc: NewCalculator(store), baseCurrency: baseCurrency}
}

// CreateAccountInput captures data required to open an account.
type CreateAccountInput struct {
	UserID   string
	Type     string
	Currency string
}

// CreateAccount opens an active account with zero entries, hence zero balance.
// Currency defaults to the base currency when omitted.
func (r *Registry) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if _, err := uuid.Parse(in.UserID); err != nil {
		return Account{}, fmt.Errorf("%w: user id must be a UUID", ErrValidation)
	}
	switch in.Type {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeBusiness:
	default:
		return Account{}, fmt.Errorf("%w: unknown account type %q", ErrValidation, in.Type)
	}
	currency, err := normalizeCurrency(in.Currency, r.baseCurrency)
	if err != nil {
		return Account{}, err
	}

	now := time.Now().UTC()
	acct := Account{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// GetAccount looks up an account by identifier.
func (r *Registry) GetAccount(ctx context.Context, id string) (Account, error) {
	return r.store.GetAccount(ctx, id)
}

// GetAccountWithBalance returns the account together with its derived balance.
func (r *Registry) GetAccountWithBalance(ctx context.Context, id string) (Account, decimal.Decimal, error) {
	acct, err := r.store.GetAccount(ctx, id)
	if err != nil {
		return Account{}, decimal.Zero, err
	}
	balance, err := r.calc.Balance(ctx, id)
	if err != nil {
		return Account{}, decimal.Zero, err
	}
	return acct, balance, nil
}

// Ledger lists the account's entries newest first with transaction summaries.
func (r *Registry) Ledger(ctx context.Context, id string) ([]LedgerLine, error) {
	if _, err := r.store.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return r.store.EntriesByAccount(ctx, id)
}

// SetStatus freezes, closes or reactivates an account. The change runs inside
// a unit of work holding the account's row lock, so it cannot race a debit in
// flight: a withdrawal either completes before the flip or observes the new
// status when it locks the row.
func (r *Registry) SetStatus(ctx context.Context, id, status string) (Account, error) {
	switch status {
	case StatusActive, StatusFrozen, StatusClosed:
	default:
		return Account{}, fmt.Errorf("%w: unknown account status %q", ErrValidation, status)
	}

	uow, err := r.store.Begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	acct, err := uow.LockAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	now := time.Now().UTC()
	if err := uow.SetAccountStatus(ctx, id, status, now); err != nil {
		return Account{}, err
	}
	if err := uow.Commit(ctx); err != nil {
		return Account{}, err
	}

	acct.Status = status
	acct.UpdatedAt = now
	return acct, nil
}

func normalizeCurrency(currency, fallback string) (string, error) {
	if currency == "" {
		return fallback, nil
	}
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	code := [3]byte{}
	for i := 0; i < 3; i++ {
		c := currency[i]
		switch {
		case c >= 'A' && c <= 'Z':
			code[i] = c
		case c >= 'a' && c <= 'z':
			code[i] = c - 'a' + 'A'
		default:
			return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
		}
	}
	return string(code[:]), nil
}
