package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestAllowRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New()
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("a", 2, 1))
	require.True(t, l.Allow("a", 2, 1))
	require.False(t, l.Allow("a", 2, 1))
	require.True(t, l.Allow("b", 2, 1))

	now = now.Add(time.Second)
	require.True(t, l.Allow("a", 2, 1))
	require.False(t, l.Allow("a", 2, 1))

	now = now.Add(time.Hour)
	l.Prune()
	require.Empty(t, l.m)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.POST("/proxy", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		Middleware(New(), 1, 0.001))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/proxy", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, do())
	require.Equal(t, http.StatusTooManyRequests, do())
}
