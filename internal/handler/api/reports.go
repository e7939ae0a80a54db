package api

import (
	"bytes"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	"github.com/Kshitij0O7/bitquery-x402/internal/usecase"
	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	xlogger "github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// ReportsHandler serves the four paid report routes.
type ReportsHandler struct {
	logger  *xlogger.Logger
	reports *usecase.ReportsUseCase
}

func NewReportsHandler(logger *xlogger.Logger, reports *usecase.ReportsUseCase) *ReportsHandler {
	return &ReportsHandler{logger: logger, reports: reports}
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST(config.RouteLatestPrice, h.LatestPrice)
	e.POST(config.RouteOHLC, h.OHLC)
	e.POST(config.RouteAveragePrice, h.AveragePrice)
	e.POST(config.RouteVolume, h.Volume)
}

func (h *ReportsHandler) LatestPrice(c echo.Context) error {
	req, verr := bindReport(c)
	if verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	price, err := h.reports.LatestPrice(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "latest price", req, err)
	}
	return xhttp.SuccessResponse(c, price)
}

func (h *ReportsHandler) OHLC(c echo.Context) error {
	req, verr := bindReport(c)
	if verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	res, err := h.reports.OHLC(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "ohlc", req, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsHandler) AveragePrice(c echo.Context) error {
	req, verr := bindReport(c)
	if verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	res, err := h.reports.AveragePrice(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "average price", req, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsHandler) Volume(c echo.Context) error {
	req, verr := bindReport(c)
	if verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	res, err := h.reports.Volume(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "volume", req, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsHandler) fail(c echo.Context, report string, req *models.ReportRequest, err error) error {
	fields := []xlogger.Field{
		xlogger.String("report", report),
		xlogger.String("token", req.TokenAddress),
		xlogger.Error(err),
	}
	if appErr, ok := err.(*xhttp.AppError); ok && appErr.Status < 500 {
		h.logger.Warn("report unavailable", fields...)
	} else {
		h.logger.Error("report failed", fields...)
	}
	return xhttp.AppErrorResponse(c, err)
}

// bindReport decodes a report body leniently: a body that is not JSON, or
// not a JSON object, counts as empty, so the caller sees the missing token
// rather than a decoding error.
func bindReport(c echo.Context) (*models.ReportRequest, *xhttp.AppError) {
	req := &models.ReportRequest{}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(c.Request().Body)
		if err == nil && len(bytes.TrimSpace(body)) > 0 {
			var decoded models.ReportRequest
			if sonic.ConfigStd.Unmarshal(body, &decoded) == nil {
				*req = decoded
			}
		}
	}
	if verr := xhttp.ValidateRequest(c, req); verr != nil {
		return nil, verr
	}
	return req, nil
}
