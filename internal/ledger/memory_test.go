package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestMemoryUnitOfWorkRollbackDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	acct := newTestAccount(t, store, "USD", StatusActive)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	txnID := uuid.NewString()
	if err := uow.InsertTransaction(ctx, Transaction{
		ID:                   txnID,
		Type:                 TypeDeposit,
		Status:               StatusPending,
		Amount:               decimal.RequireFromString("10.00"),
		Currency:             "USD",
		DestinationAccountID: acct.ID,
	}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	if err := uow.InsertEntry(ctx, Entry{
		ID:            uuid.NewString(),
		AccountID:     acct.ID,
		TransactionID: txnID,
		Type:          EntryCredit,
		Amount:        decimal.RequireFromString("10.00"),
	}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	balance, err := store.SumEntries(ctx, acct.ID)
	if err != nil {
		t.Fatalf("sum entries: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("rolled-back entry visible, balance %s", balance)
	}
	lines, err := store.EntriesByAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no entries after rollback, got %d", len(lines))
	}
}

func TestMemoryUnitOfWorkSumSeesStagedEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	acct := newTestAccount(t, store, "USD", StatusActive)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := uow.InsertEntry(ctx, Entry{
		ID:            uuid.NewString(),
		AccountID:     acct.ID,
		TransactionID: uuid.NewString(),
		Type:          EntryCredit,
		Amount:        decimal.RequireFromString("30.00"),
	}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	balance, err := uow.SumEntries(ctx, acct.ID)
	if err != nil {
		t.Fatalf("sum within unit: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected staged entry visible within unit, got %s", balance)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}

func TestMemoryUnitOfWorkCancelledCommitRollsBack(t *testing.T) {
	store := NewMemoryStore()
	acct := newTestAccount(t, store, "USD", StatusActive)

	ctx, cancel := context.WithCancel(context.Background())
	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := uow.InsertEntry(ctx, Entry{
		ID:            uuid.NewString(),
		AccountID:     acct.ID,
		TransactionID: uuid.NewString(),
		Type:          EntryCredit,
		Amount:        decimal.RequireFromString("5.00"),
	}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	cancel()
	if err := uow.Commit(ctx); err == nil {
		t.Fatal("expected commit to fail after cancellation")
	}

	balance, err := store.SumEntries(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("sum entries: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("cancelled unit left visible state, balance %s", balance)
	}
}

func TestMemoryUnitOfWorkSerializesConcurrentUnits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	acct := newTestAccount(t, store, "USD", StatusActive)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	second := make(chan struct{})
	go func() {
		u, err := store.Begin(ctx)
		if err == nil {
			u.Rollback(ctx) // nolint:errcheck
		}
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second unit started while first still open")
	case <-time.After(50 * time.Millisecond):
	}

	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second unit never acquired the store")
	}

	if _, err := store.GetAccount(ctx, acct.ID); err != nil {
		t.Fatalf("store unusable after units finished: %v", err)
	}
}
