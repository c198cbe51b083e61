package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/clearbook/internal/ledger"
)

// RegisterTransactionRoutes wires the engine's monetary operations.
func RegisterTransactionRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/transfers", h.Transfer)
}
