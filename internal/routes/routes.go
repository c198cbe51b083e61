package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clearbook/clearbook/internal/config"
	"github.com/clearbook/clearbook/internal/events"
	"github.com/clearbook/clearbook/internal/ledger"
	"github.com/clearbook/clearbook/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside development the durable store and idempotency cache are not optional.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewMemoryStore()
	}

	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(d.Logger)
	}

	registry := ledger.NewRegistry(store, d.Cfg.BaseCurrency)
	engine := ledger.NewEngine(store, d.Cfg.BaseCurrency, publisher)
	handler := ledger.NewHandler(registry, engine)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
	RegisterAccountRoutes(api, handler)
	RegisterTransactionRoutes(api, handler)

	return nil
}
