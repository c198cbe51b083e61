package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes the account and transaction HTTP endpoints.
type Handler struct {
	registry *Registry
	engine   *Engine
}

// NewHandler builds the ledger HTTP handler.
func NewHandler(registry *Registry, engine *Engine) *Handler {
	return &Handler{registry: registry, engine: engine}
}

type createAccountRequest struct {
	UserID      string `json:"user_id"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type accountResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AccountType string    `json:"account_type"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Balance     string    `json:"balance,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type transactionResponse struct {
	ID                   string     `json:"id"`
	Type                 string     `json:"type"`
	Status               string     `json:"status"`
	Amount               string     `json:"amount"`
	Currency             string     `json:"currency"`
	SourceAccountID      string     `json:"source_account_id,omitempty"`
	DestinationAccountID string     `json:"destination_account_id,omitempty"`
	Description          string     `json:"description,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

type ledgerLineResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	EntryType     string    `json:"entry_type"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
	Transaction   struct {
		Type        string `json:"type"`
		Status      string `json:"status"`
		Description string `json:"description,omitempty"`
	} `json:"transaction"`
}

type transactionRequest struct {
	AccountID            string          `json:"account_id"`
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Description          string          `json:"description"`
}

// CreateAccount handles POST /accounts.
func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	acct, err := h.registry.CreateAccount(c.UserContext(), CreateAccountInput{
		UserID:   req.UserID,
		Type:     req.AccountType,
		Currency: req.Currency,
	})
	if err != nil {
		return failErr(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    toAccountResponse(acct, ""),
		"message": "Account created successfully",
	})
}

// GetAccount handles GET /accounts/:accountId, returning the account with its
// derived balance.
func (h *Handler) GetAccount(c *fiber.Ctx) error {
	acct, balance, err := h.registry.GetAccountWithBalance(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    toAccountResponse(acct, balance.StringFixed(2)),
	})
}

// GetAccountLedger handles GET /accounts/:accountId/ledger.
func (h *Handler) GetAccountLedger(c *fiber.Ctx) error {
	lines, err := h.registry.Ledger(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return failErr(c, err)
	}
	out := make([]ledgerLineResponse, 0, len(lines))
	for _, line := range lines {
		item := ledgerLineResponse{
			ID:            line.ID,
			TransactionID: line.TransactionID,
			EntryType:     line.Type,
			Amount:        line.Amount.StringFixed(2),
			CreatedAt:     line.CreatedAt,
		}
		item.Transaction.Type = line.TransactionType
		item.Transaction.Status = line.TransactionStatus
		item.Transaction.Description = line.TransactionDescription
		out = append(out, item)
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// SetAccountStatus handles PATCH /accounts/:accountId/status.
func (h *Handler) SetAccountStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	acct, err := h.registry.SetStatus(c.UserContext(), c.Params("accountId"), req.Status)
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    toAccountResponse(acct, ""),
		"message": "Account status updated",
	})
}

// Deposit handles POST /deposits.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	txn, err := h.engine.Deposit(c.UserContext(), DepositInput{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		return failErr(c, err)
	}
	return created(c, txn, "Deposit completed successfully")
}

// Withdraw handles POST /withdrawals.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	txn, err := h.engine.Withdraw(c.UserContext(), WithdrawInput{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		return failErr(c, err)
	}
	return created(c, txn, "Withdrawal completed successfully")
}

// Transfer handles POST /transfers.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	txn, err := h.engine.Transfer(c.UserContext(), TransferInput{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Description:          req.Description,
	})
	if err != nil {
		return failErr(c, err)
	}
	return created(c, txn, "Transfer completed successfully")
}

func created(c *fiber.Ctx, txn Transaction, message string) error {
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    toTransactionResponse(txn),
		"message": message,
	})
}

func toAccountResponse(acct Account, balance string) accountResponse {
	return accountResponse{
		ID:          acct.ID,
		UserID:      acct.UserID,
		AccountType: acct.Type,
		Currency:    acct.Currency,
		Status:      acct.Status,
		Balance:     balance,
		CreatedAt:   acct.CreatedAt,
		UpdatedAt:   acct.UpdatedAt,
	}
}

func toTransactionResponse(txn Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                   txn.ID,
		Type:                 txn.Type,
		Status:               txn.Status,
		Amount:               txn.Amount.StringFixed(2),
		Currency:             txn.Currency,
		SourceAccountID:      txn.SourceAccountID,
		DestinationAccountID: txn.DestinationAccountID,
		Description:          txn.Description,
		CreatedAt:            txn.CreatedAt,
	}
	if !txn.CompletedAt.IsZero() {
		completedAt := txn.CompletedAt
		resp.CompletedAt = &completedAt
	}
	return resp
}

// statusForError maps the engine's error taxonomy to HTTP statuses. The
// dispatch is on error identity, never on message text.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func failErr(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		// Storage faults are not attributable to caller input; hide details.
		return fail(c, status, "internal failure")
	}
	return fail(c, status, err.Error())
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
