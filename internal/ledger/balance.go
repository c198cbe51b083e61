package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator derives account balances from the full entry history. No cached
// balance field exists anywhere; every read re-aggregates the store.
type Calculator struct {
	store Store
}

// NewCalculator builds a balance calculator over the given store.
func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// Balance sums the account's entries, credits positive and debits negative.
// An account with no entries has balance exactly zero.
func (c *Calculator) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.store.SumEntries(ctx, accountID)
}

// HasSufficientFunds reports whether the account's derived balance covers the
// amount. This read is advisory outside a unit of work; the engine re-checks
// against locked rows before any debit is written.
func (c *Calculator) HasSufficientFunds(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error) {
	balance, err := c.Balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}
