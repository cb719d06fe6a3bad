package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticValidator map[string]string

func (v staticValidator) Validate(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func whoami(c *fiber.Ctx) error { return c.SendString(UserID(c)) }

func TestJWTAuth(t *testing.T) {
	app := fiber.New()
	app.Use(JWTAuth(staticValidator{"good": "u1"}, zap.NewNop()))
	app.Get("/me", whoami)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer good", fiber.StatusOK, "u1"},
		{"lowercase scheme", "bearer good", fiber.StatusOK, "u1"},
		{"missing", "", fiber.StatusUnauthorized, ""},
		{"bad scheme", "Basic good", fiber.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(b))
			}
		})
	}
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func TestRateLimiterByUser(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}}
	rl := NewRateLimiter(counter, "dm:rl:", 2, time.Minute, zap.NewNop())

	app := fiber.New()
	app.Use(JWTAuth(staticValidator{"a": "u1", "b": "u2"}, zap.NewNop()))
	app.Use(rl.MiddlewareByKey(ByUser))
	app.Get("/me", whoami)

	call := func(token string) int {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, call("a"))
	assert.Equal(t, fiber.StatusOK, call("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("a"))
	assert.Equal(t, fiber.StatusOK, call("b"))
	assert.Equal(t, int64(3), counter.counts["dm:rl:user:u1"])
}

func TestRateLimiterFailsOpen(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rl := NewRateLimiter(&memCounter{err: errors.New("dial tcp: refused")}, "p:", 1, time.Minute, zap.New(core))

	app := fiber.New()
	app.Use(rl.MiddlewareByKey(ByUser))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
	assert.Equal(t, 3, logs.FilterMessage("rate limiter unavailable").Len())
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := fiber.New()
	app.Use(ZapLogger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadGateway, "upstream") })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, "/ok", completed[0].ContextMap()["path"])

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(fiber.StatusBadGateway), failed[0].ContextMap()["status"])
}
