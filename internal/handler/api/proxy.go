package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Kshitij0O7/bitquery-x402/internal/service/ratelimit"
	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	xlogger "github.com/Kshitij0O7/bitquery-x402/pkg/logger"
	"github.com/Kshitij0O7/bitquery-x402/pkg/x402"
)

// ProxyRequest asks the server to call one of its own paid routes.
type ProxyRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Body     any    `json:"body"`
}

// ProxyResponse wraps a successful relayed response.
type ProxyResponse struct {
	Data    any                  `json:"data"`
	Payment *x402.SettleResponse `json:"payment"`
	Status  int                  `json:"status"`
}

// ProxyHandler relays requests to the paid routes, paying with the server's
// own wallet. Demo only.
type ProxyHandler struct {
	logger  *xlogger.Logger
	client  *xhttp.Client
	baseURL string
	limit   echo.MiddlewareFunc
}

// NewProxyHandler creates the relay. A nil signer leaves the relay disabled.
func NewProxyHandler(logger *xlogger.Logger, cfg config.RelayConfig, signer *x402.Signer, limiter *ratelimit.Limiter) *ProxyHandler {
	h := &ProxyHandler{
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
	if signer != nil {
		h.client = xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithTransport(x402.NewTransport(signer, nil)),
		)
	}
	if limiter != nil {
		h.limit = ratelimit.Middleware(limiter, cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
	}
	return h
}

func (h *ProxyHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limit != nil {
		mw = append(mw, h.limit)
	}
	e.POST("/proxy", h.Proxy, mw...)
}

func (h *ProxyHandler) Proxy(c echo.Context) error {
	req := &ProxyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	if h.client == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(
			"Payment client not initialized. Set EVM_PRIVATE_KEY in .env file."))
	}

	if !config.IsReportRoute(req.Endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf(
			"Invalid endpoint. Allowed: %s", strings.Join(config.ReportRoutes, ", ")))
	}

	body := req.Body
	if body == nil {
		body = map[string]any{}
	}
	url, err := xhttp.JoinURL(h.baseURL, req.Endpoint)
	if err != nil {
		return h.internal(c, req.Endpoint, err)
	}

	resp, err := h.client.SendRequest(c.Request().Context(), &xhttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return h.internal(c, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return h.internal(c, req.Endpoint, fmt.Errorf("read response: %w", err))
	}
	var data any
	if err := sonic.ConfigStd.Unmarshal(raw, &data); err != nil {
		return h.internal(c, req.Endpoint, fmt.Errorf("decode response: %w", err))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	var payment *x402.SettleResponse
	if ok {
		payment, err = x402.ReceiptFromResponse(resp)
		if err != nil {
			h.logger.Warn("could not extract payment info",
				xlogger.String("endpoint", req.Endpoint),
				xlogger.Error(err),
			)
			payment = nil
		}
	}

	if !ok {
		return c.JSON(resp.StatusCode, mergeError(data, payment, resp.StatusCode))
	}

	h.logger.Info("proxied paid request",
		xlogger.String("endpoint", req.Endpoint),
		xlogger.Int("status", resp.StatusCode),
		xlogger.Bool("receipt", payment != nil),
	)
	return c.JSON(resp.StatusCode, ProxyResponse{
		Data:    data,
		Payment: payment,
		Status:  resp.StatusCode,
	})
}

// mergeError lays payment and status over the upstream error object.
func mergeError(data any, payment *x402.SettleResponse, status int) map[string]any {
	out := map[string]any{}
	if m, ok := data.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	} else if data != nil {
		out["data"] = data
	}
	out["payment"] = payment
	out["status"] = status
	return out
}

func (h *ProxyHandler) internal(c echo.Context, endpoint string, err error) error {
	h.logger.Error("proxy error",
		xlogger.String("endpoint", endpoint),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()).WithError(err))
}
