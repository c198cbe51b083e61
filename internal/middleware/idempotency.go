package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	cacheOpTimeout       = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency gives unsafe HTTP methods at-most-once semantics: the first
// response for a given Idempotency-Key is cached in Redis and replayed for
// any retry, so a client re-sending a deposit after a network timeout cannot
// execute it twice. Keys are scoped per method and path.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := idempotencyPrefix + c.Method() + ":" + c.Path() + ":" + key

		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return replay(c, key, cached, logger)
		case err != redis.Nil:
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		// Reserve the key before running the handler so concurrent retries
		// observe the in-progress marker instead of executing again.
		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}

		stored := storedResponse{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			stored.Headers[string(k)] = string(v)
		})

		payload, err := json.Marshal(stored)
		if err != nil {
			logger.Error("failed to encode idempotent response", slog.String("key", key), slog.Any("error", err))
			release(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			release(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}

		return nil
	}
}

func replay(c *fiber.Ctx, key, cached string, logger *slog.Logger) error {
	if cached == inProgressMarker {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	for header, value := range stored.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(stored.Status).SendString(stored.Body)
}

// release drops a reservation, best effort.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}
