package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists accounts, transactions and ledger entries in
// PostgreSQL. Row locks on accounts serialize conflicting debits.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, user_id, account_type, currency, status, created_at, updated_at`

func (s *PostgresStore) CreateAccount(ctx context.Context, acct Account) error {
	id, err := uuid.Parse(acct.ID)
	if err != nil {
		return fmt.Errorf("%w: account id: %v", ErrValidation, err)
	}
	userID, err := uuid.Parse(acct.UserID)
	if err != nil {
		return fmt.Errorf("%w: user id: %v", ErrValidation, err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (id, user_id, account_type, currency, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, acct.Type, acct.Currency, acct.Status, acct.CreatedAt.UTC(), acct.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert account: %v", ErrInternal, err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

func (s *PostgresStore) SumEntries(ctx context.Context, accountID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return decimal.Zero, ErrNotFound
	}
	return sumEntries(ctx, s.db, id)
}

func (s *PostgresStore) EntriesByAccount(ctx context.Context, accountID string) ([]LedgerLine, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrNotFound
	}
	const query = `
        SELECT e.id, e.account_id, e.transaction_id, e.entry_type, e.amount, e.created_at,
               t.type, t.status, COALESCE(t.description, '')
        FROM ledger_entries e
        INNER JOIN transactions t ON t.id = e.transaction_id
        WHERE e.account_id = $1
        ORDER BY e.created_at DESC, e.id DESC`
	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: query entries: %v", ErrInternal, err)
	}
	defer rows.Close()

	var lines []LedgerLine
	for rows.Next() {
		var line LedgerLine
		var entryID, acctID, txnID uuid.UUID
		if err := rows.Scan(&entryID, &acctID, &txnID, &line.Type, &line.Amount, &line.CreatedAt,
			&line.TransactionType, &line.TransactionStatus, &line.TransactionDescription); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrInternal, err)
		}
		line.ID = entryID.String()
		line.AccountID = acctID.String()
		line.TransactionID = txnID.String()
		line.CreatedAt = line.CreatedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entries: %v", ErrInternal, err)
	}
	return lines, nil
}

// Begin opens a storage-level transaction wrapped as a unit of work.
func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrInternal, err)
	}
	return &pgxUnitOfWork{tx: tx}, nil
}

type pgxUnitOfWork struct {
	tx pgx.Tx
}

func (u *pgxUnitOfWork) LockAccount(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := u.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	return scanAccount(row)
}

func (u *pgxUnitOfWork) SumEntries(ctx context.Context, accountID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return decimal.Zero, ErrNotFound
	}
	return sumEntries(ctx, u.tx, id)
}

func (u *pgxUnitOfWork) InsertTransaction(ctx context.Context, txn Transaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return fmt.Errorf("%w: transaction id: %v", ErrValidation, err)
	}
	_, err = u.tx.Exec(ctx, `INSERT INTO transactions
        (id, type, status, amount, currency, source_account_id, destination_account_id, description, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, '')::uuid, $8, $9)`,
		id, txn.Type, txn.Status, txn.Amount, txn.Currency,
		txn.SourceAccountID, txn.DestinationAccountID, txn.Description, txn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}
	return nil
}

func (u *pgxUnitOfWork) InsertEntry(ctx context.Context, entry Entry) error {
	_, err := u.tx.Exec(ctx, `INSERT INTO ledger_entries
        (id, account_id, transaction_id, entry_type, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.AccountID, entry.TransactionID, entry.Type, entry.Amount, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert entry: %v", ErrInternal, err)
	}
	return nil
}

func (u *pgxUnitOfWork) CompleteTransaction(ctx context.Context, id string, at time.Time) error {
	tag, err := u.tx.Exec(ctx, `UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1`,
		id, StatusCompleted, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: complete transaction: %v", ErrInternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s not in unit of work", ErrInternal, id)
	}
	return nil
}

func (u *pgxUnitOfWork) SetAccountStatus(ctx context.Context, id, status string, at time.Time) error {
	tag, err := u.tx.Exec(ctx, `UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: update account status: %v", ErrInternal, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *pgxUnitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	return nil
}

func (u *pgxUnitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: rollback: %v", ErrInternal, err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumEntries(ctx context.Context, q rowQuerier, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount ELSE -amount END), 0)
        FROM ledger_entries
        WHERE account_id = $1`
	var balance decimal.Decimal
	if err := q.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum entries: %v", ErrInternal, err)
	}
	return balance, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	var id, userID uuid.UUID
	if err := row.Scan(&id, &userID, &acct.Type, &acct.Currency, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("%w: scan account: %v", ErrInternal, err)
	}
	acct.ID = id.String()
	acct.UserID = userID.String()
	acct.CreatedAt = acct.CreatedAt.UTC()
	acct.UpdatedAt = acct.UpdatedAt.UTC()
	return acct, nil
}
