package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/clearbook/internal/ledger"
)

// RegisterAccountRoutes wires account registry endpoints.
func RegisterAccountRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/accounts", h.CreateAccount)
	r.Get("/accounts/:accountId", h.GetAccount)
	r.Get("/accounts/:accountId/ledger", h.GetAccountLedger)
	r.Patch("/accounts/:accountId/status", h.SetAccountStatus)
}
