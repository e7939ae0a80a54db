package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// SuccessResponse writes data as a 200 JSON body.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// EmptyObjectResponse writes {} with the given status.
func EmptyObjectResponse(c echo.Context, status int) error {
	return c.JSONBlob(status, []byte("{}"))
}

// AppErrorResponse writes application error response. Errors that are not
// *AppError become a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.JSON(appErr.Status, appErr)
	}
	return c.JSON(http.StatusInternalServerError, InternalError("Something went wrong"))
}

// ErrorHandler renders errors escaping handlers (unknown routes, bad
// methods, middleware failures) in the same shape as handler errors.
func ErrorHandler(l *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			_ = c.JSON(appErr.Status, appErr)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
			_ = c.JSON(he.Code, NewAppError(he.Code, http.StatusText(he.Code), msg))
			return
		}

		if l != nil {
			l.Error("unhandled request error",
				logger.String("path", c.Request().URL.Path),
				logger.Error(err),
			)
		}
		_ = c.JSON(http.StatusInternalServerError, InternalError("Something went wrong"))
	}
}
