package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	"github.com/Kshitij0O7/bitquery-x402/internal/service/cache"
	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	httpmw "github.com/Kshitij0O7/bitquery-x402/pkg/http/middleware"
	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
	"github.com/Kshitij0O7/bitquery-x402/pkg/x402"
)

const payTo = "0x4C10192b9F6F4781BA5fb27145743630e4B0D3F8"

type fakeFacilitator struct {
	mu        sync.Mutex
	verifyErr error
	invalid   string
	settleErr error
	verified  int
	settled   int
}

func (f *fakeFacilitator) Verify(context.Context, *x402.PaymentPayload, x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.invalid != "" {
		return &x402.VerifyResponse{IsValid: false, InvalidReason: f.invalid}, nil
	}
	return &x402.VerifyResponse{IsValid: true}, nil
}

func (f *fakeFacilitator) Settle(_ context.Context, p *x402.PaymentPayload, req x402.PaymentRequirements) (*x402.SettleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled++
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return &x402.SettleResponse{Success: true, Transaction: "0xtx", Network: req.Network, Payer: p.Payload.Authorization.From}, nil
}

type recordingPublisher struct {
	events []*models.SettlementEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev *models.SettlementEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		X402Version:       2,
		MaxTimeoutSeconds: 300,
		Networks:          []config.NetworkPayee{{Network: "eip155:84532", PayTo: payTo}},
		Routes: map[string]config.Route{
			config.RouteOHLC:        {Price: "$0.001", Description: "OHLC series", MimeType: "application/json"},
			config.RouteLatestPrice: {Price: "$0.002", Description: "Latest price", MimeType: "application/json"},
		},
	}
}

func newTestServer(t *testing.T, f x402.Facilitator, opts ...PaywallOption) *echo.Echo {
	t.Helper()
	routes, err := BuildRoutes(testPaymentConfig())
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = xhttp.ErrorHandler(nil)
	e.Use(NewPaywall(routes, f, opts...).Middleware())
	e.POST(config.RouteOHLC, func(c echo.Context) error {
		if strings.Contains(c.Request().URL.RawQuery, "fail") {
			return xhttp.NotFoundError(xhttp.CategoryNoDataFound, "nothing")
		}
		return c.JSON(http.StatusOK, []string{"record"})
	})
	e.POST(config.RouteLatestPrice, func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`"1.23"`))
	})
	e.POST("/proxy", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})
	return e
}

func doRequest(e *echo.Echo, path, payment string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"tokenAddress":"0xabc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if payment != "" {
		req.Header.Set(x402.HeaderPaymentSignature, payment)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeChallenge(t *testing.T, rec *httptest.ResponseRecorder) x402.PaymentRequired {
	t.Helper()
	var pr x402.PaymentRequired
	require.NoError(t, x402.DecodeHeader(rec.Header().Get(x402.HeaderPaymentRequired), &pr))
	return pr
}

func signedPayment(t *testing.T, e *echo.Echo, path string, signer *x402.Signer) string {
	t.Helper()
	pr := decodeChallenge(t, doRequest(e, path, ""))
	p, err := signer.CreatePayment(pr.Accepts[0], &pr.Resource, pr.X402Version)
	require.NoError(t, err)
	h, err := x402.EncodeHeader(p)
	require.NoError(t, err)
	return h
}

func newSigner(t *testing.T) *x402.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return x402.NewSignerFromKey(key)
}

func TestChallengeWithoutPayment(t *testing.T) {
	f := &fakeFacilitator{}
	e := newTestServer(t, f)

	for path, amount := range map[string]string{config.RouteOHLC: "1000", config.RouteLatestPrice: "2000"} {
		rec := doRequest(e, path, "")
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.JSONEq(t, `{}`, rec.Body.String())

		pr := decodeChallenge(t, rec)
		require.Equal(t, x402.Version, pr.X402Version)
		require.Contains(t, pr.Resource.URL, path)
		require.Equal(t, "application/json", pr.Resource.MimeType)
		require.NotEmpty(t, pr.Resource.Description)
		require.Len(t, pr.Accepts, 1)
		require.Equal(t, x402.SchemeExact, pr.Accepts[0].Scheme)
		require.Equal(t, "eip155:84532", pr.Accepts[0].Network)
		require.Equal(t, payTo, pr.Accepts[0].PayTo)
		require.Equal(t, amount, pr.Accepts[0].Amount)
		require.NotEmpty(t, pr.Accepts[0].Price)
		require.Empty(t, pr.Error)
	}
	require.Zero(t, f.verified)
}

func TestChallengeIsStable(t *testing.T) {
	e := newTestServer(t, &fakeFacilitator{})

	first := doRequest(e, config.RouteOHLC, "")
	second := doRequest(e, config.RouteOHLC, "")
	require.Equal(t, http.StatusPaymentRequired, second.Code)
	require.Equal(t, first.Header().Get(x402.HeaderPaymentRequired), second.Header().Get(x402.HeaderPaymentRequired))
	require.Equal(t, first.Body.String(), second.Body.String())
}

func TestUnprotectedRoutePassesThrough(t *testing.T) {
	e := newTestServer(t, &fakeFacilitator{})
	rec := doRequest(e, "/proxy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get(x402.HeaderPaymentRequired))
}

func TestBypass(t *testing.T) {
	f := &fakeFacilitator{}
	e := newTestServer(t, f, WithBypass(true))
	rec := doRequest(e, config.RouteOHLC, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, f.verified)
	require.Zero(t, f.settled)
}

func TestPaidRequestSettles(t *testing.T) {
	f := &fakeFacilitator{}
	pub := &recordingPublisher{}
	e := newTestServer(t, f, WithSettlementPublisher(pub))
	signer := newSigner(t)

	rec := doRequest(e, config.RouteLatestPrice, signedPayment(t, e, config.RouteLatestPrice, signer))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `"1.23"`, rec.Body.String())

	var receipt x402.SettleResponse
	require.NoError(t, x402.DecodeHeader(rec.Header().Get(x402.HeaderPaymentResponse), &receipt))
	require.True(t, receipt.Success)
	require.Equal(t, "0xtx", receipt.Transaction)
	require.Equal(t, "2000", receipt.Amount)
	require.Equal(t, 1, f.settled)

	require.Len(t, pub.events, 1)
	require.Equal(t, config.RouteLatestPrice, pub.events[0].Route)
	require.Equal(t, signer.Address().Hex(), pub.events[0].Payer)
}

func TestEveryRequestRepays(t *testing.T) {
	e := newTestServer(t, &fakeFacilitator{})
	signer := newSigner(t)

	rec := doRequest(e, config.RouteOHLC, signedPayment(t, e, config.RouteOHLC, signer))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, config.RouteOHLC, "")
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestReplayedProofRejected(t *testing.T) {
	f := &fakeFacilitator{}
	e := newTestServer(t, f, WithReplayGuard(cache.NewTTLCache(), time.Minute))
	proof := signedPayment(t, e, config.RouteOHLC, newSigner(t))

	require.Equal(t, http.StatusOK, doRequest(e, config.RouteOHLC, proof).Code)

	rec := doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Equal(t, "payment nonce already used", decodeChallenge(t, rec).Error)
	require.Equal(t, 1, f.settled)
}

func TestInvalidProofs(t *testing.T) {
	signer := newSigner(t)

	t.Run("garbage header", func(t *testing.T) {
		e := newTestServer(t, &fakeFacilitator{})
		rec := doRequest(e, config.RouteOHLC, "!!!not-base64")
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Equal(t, "invalid payment header", decodeChallenge(t, rec).Error)
	})

	t.Run("proof for another route price", func(t *testing.T) {
		f := &fakeFacilitator{}
		e := newTestServer(t, f)
		proof := signedPayment(t, e, config.RouteOHLC, signer)
		rec := doRequest(e, config.RouteLatestPrice, proof)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Contains(t, decodeChallenge(t, rec).Error, "no matching payment requirements")
		require.Zero(t, f.verified)
	})

	t.Run("facilitator rejects", func(t *testing.T) {
		f := &fakeFacilitator{invalid: "insufficient_funds"}
		e := newTestServer(t, f)
		rec := doRequest(e, config.RouteOHLC, signedPayment(t, e, config.RouteOHLC, signer))
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Equal(t, "insufficient_funds", decodeChallenge(t, rec).Error)
		require.Zero(t, f.settled)
	})

	t.Run("facilitator down", func(t *testing.T) {
		f := &fakeFacilitator{verifyErr: errors.New("connection refused")}
		e := newTestServer(t, f)
		rec := doRequest(e, config.RouteOHLC, signedPayment(t, e, config.RouteOHLC, signer))
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Equal(t, "payment verification failed", decodeChallenge(t, rec).Error)
	})
}

func TestSettlementFailureWithholdsBody(t *testing.T) {
	f := &fakeFacilitator{settleErr: errors.New("tx reverted")}
	e := newTestServer(t, f)

	rec := doRequest(e, config.RouteOHLC, signedPayment(t, e, config.RouteOHLC, newSigner(t)))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "record")
	require.Empty(t, rec.Header().Get(x402.HeaderPaymentResponse))
	require.Equal(t, "payment settlement failed", decodeChallenge(t, rec).Error)
}

func TestHandlerErrorSkipsSettlement(t *testing.T) {
	f := &fakeFacilitator{}
	e := newTestServer(t, f)

	rec := doRequest(e, config.RouteOHLC+"?fail=1", signedPayment(t, e, config.RouteOHLC, newSigner(t)))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"No Data Found","message":"nothing"}`, rec.Body.String())
	require.Zero(t, f.settled)
	require.Empty(t, rec.Header().Get(x402.HeaderPaymentResponse))
}

func TestBuildRoutesRejectsBadConfig(t *testing.T) {
	cfg := testPaymentConfig()
	cfg.Networks = []config.NetworkPayee{{Network: "eip155:1", PayTo: payTo}}
	_, err := BuildRoutes(cfg)
	require.Error(t, err)

	cfg = testPaymentConfig()
	cfg.Routes[config.RouteVolume] = config.Route{Price: "free"}
	_, err = BuildRoutes(cfg)
	require.Error(t, err)

	cfg = testPaymentConfig()
	cfg.Networks = nil
	_, err = BuildRoutes(cfg)
	require.Error(t, err)
}

func TestHandlerPanicAnswersServerError(t *testing.T) {
	f := &fakeFacilitator{}
	routes, err := BuildRoutes(testPaymentConfig())
	require.NoError(t, err)

	blowUp := true
	e := echo.New()
	e.HTTPErrorHandler = xhttp.ErrorHandler(nil)
	e.Use(httpmw.Recover(logger.Nop()))
	e.Use(NewPaywall(routes, f, WithReplayGuard(cache.NewTTLCache(), time.Minute)).Middleware())
	e.POST(config.RouteOHLC, func(c echo.Context) error {
		if blowUp {
			_ = c.JSON(http.StatusOK, []string{"partial"})
			panic("boom")
		}
		return c.JSON(http.StatusOK, []string{"record"})
	})

	proof := signedPayment(t, e, config.RouteOHLC, newSigner(t))
	rec := doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error","message":"Something went wrong"}`, rec.Body.String())
	require.Empty(t, rec.Header().Get(x402.HeaderPaymentResponse))
	require.Zero(t, f.settled)

	// the unsettled authorization is still good
	blowUp = false
	rec = doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["record"]`, rec.Body.String())
	require.Equal(t, 1, f.settled)
}

func TestVerifyOutageKeepsProofUsable(t *testing.T) {
	f := &fakeFacilitator{verifyErr: errors.New("connection refused")}
	e := newTestServer(t, f, WithReplayGuard(cache.NewTTLCache(), time.Minute))
	proof := signedPayment(t, e, config.RouteOHLC, newSigner(t))

	rec := doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Equal(t, "payment verification failed", decodeChallenge(t, rec).Error)

	f.mu.Lock()
	f.verifyErr = nil
	f.mu.Unlock()

	rec = doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.settled)
}

func TestHandlerErrorReleasesNonce(t *testing.T) {
	f := &fakeFacilitator{}
	e := newTestServer(t, f, WithReplayGuard(cache.NewTTLCache(), time.Minute))
	proof := signedPayment(t, e, config.RouteOHLC, newSigner(t))

	require.Equal(t, http.StatusNotFound, doRequest(e, config.RouteOHLC+"?fail=1", proof).Code)
	require.Equal(t, http.StatusOK, doRequest(e, config.RouteOHLC, proof).Code)

	rec := doRequest(e, config.RouteOHLC, proof)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Equal(t, "payment nonce already used", decodeChallenge(t, rec).Error)
	require.Equal(t, 1, f.settled)
}
