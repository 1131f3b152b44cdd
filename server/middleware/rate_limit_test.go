package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiter_AllowPerKey(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Keys do not share a budget.
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultRate, rl.rate)
	assert.Equal(t, DefaultBurst, rl.burst)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	require.NoError(t, rl.Wait(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "a"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	e := echo.New()
	e.POST("/dialogs/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, rl.Middleware(func(c echo.Context) string { return c.Param("id") }))

	do := func(id string) int {
		req := httptest.NewRequest(http.MethodPost, "/dialogs/"+id, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("d1"))
	assert.Equal(t, http.StatusTooManyRequests, do("d1"))
	assert.Equal(t, http.StatusNoContent, do("d2"))
}
