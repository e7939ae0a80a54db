package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func serve(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerErrorShapes(t *testing.T) {
	s := NewServer(routes(func(e *echo.Echo) {
		e.GET("/app", func(c echo.Context) error {
			return NotFoundError(CategoryNoDataFound, "nothing").WithParam("tokenAddress", "0xabc")
		})
		e.GET("/plain", func(c echo.Context) error { return errors.New("boom") })
		e.GET("/panic", func(c echo.Context) error { panic("bad") })
	}))

	rec := serve(s, http.MethodGet, "/app", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"No Data Found","message":"nothing","tokenAddress":"0xabc"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/plain", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error","message":"Something went wrong"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/panic", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Something went wrong")

	rec = serve(s, http.MethodGet, "/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":"Not Found"`)
}

func TestServerHealthAndCORS(t *testing.T) {
	s := NewServer(nil)

	rec := serve(s, http.MethodGet, "/healthz", map[string]string{echo.HeaderXRequestID: "req-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/healthz", map[string]string{echo.HeaderOrigin: "http://example.com"})
	require.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), "PAYMENT-REQUIRED")
	require.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), "PAYMENT-RESPONSE")
}

func TestJoinURL(t *testing.T) {
	u, err := JoinURL("http://127.0.0.1:4021/", "/ohlc")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:4021/ohlc", u)
}
