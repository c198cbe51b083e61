package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clearbook/clearbook/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var executions atomic.Int64
	app.Post("/deposits", func(c *fiber.Ctx) error {
		executions.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})
	app.Post("/withdrawals", func(c *fiber.Ctx) error {
		executions.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})
	app.Get("/accounts", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &executions, cleanup
}

func postWithKey(t *testing.T, app *fiber.App, path, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	status, _ := postWithKey(t, app, "/deposits", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	app, _, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodGet, "/accounts", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GET /accounts: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	app, executions, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	status, first := postWithKey(t, app, "/deposits", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("first request: expected %d got %d", fiber.StatusCreated, status)
	}

	status, second := postWithKey(t, app, "/deposits", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("replay: expected %d got %d", fiber.StatusCreated, status)
	}
	if first != second {
		t.Fatalf("replayed body differs: %q vs %q", first, second)
	}
	if got := executions.Load(); got != 1 {
		t.Fatalf("handler executed %d times, want 1", got)
	}
}

func TestIdempotencyKeyIsScopedPerRoute(t *testing.T) {
	app, executions, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	if status, _ := postWithKey(t, app, "/deposits", "shared"); status != fiber.StatusCreated {
		t.Fatalf("deposit: unexpected status %d", status)
	}
	if status, _ := postWithKey(t, app, "/withdrawals", "shared"); status != fiber.StatusCreated {
		t.Fatalf("withdrawal: unexpected status %d", status)
	}
	if got := executions.Load(); got != 2 {
		t.Fatalf("handler executed %d times, want 2", got)
	}
}

func TestIdempotencyInProgressMarkerConflicts(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/deposits", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	// Simulate a concurrent first request that has reserved the key but not
	// yet stored its response.
	if err := mr.Set(idempotencyPrefix+"POST:/deposits:inflight", inProgressMarker); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	status, _ := postWithKey(t, app, "/deposits", "inflight")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
}
