package ledger

import "errors"

// The engine reports failures through this closed set of sentinel errors.
// Callers dispatch with errors.Is, never by matching message text.
var (
	// ErrNotFound occurs when an account identifier does not resolve.
	ErrNotFound = errors.New("account not found")

	// ErrInvalidOperation occurs when an operation is malformed at the domain
	// level, such as a transfer between an account and itself.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidState occurs when an account is frozen or closed.
	ErrInvalidState = errors.New("account is not active")

	// ErrCurrencyMismatch occurs when the requested currency differs from the
	// account's currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientFunds occurs when the source account's derived balance
	// cannot cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrValidation occurs when input is malformed: unknown account type, bad
	// currency code, non-positive amount.
	ErrValidation = errors.New("validation failed")

	// ErrInternal tags storage-layer faults not attributable to caller input.
	// A completed unit of work never partially persists, so retrying after
	// ErrInternal is always safe.
	ErrInternal = errors.New("internal storage failure")
)
