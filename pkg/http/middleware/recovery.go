package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// Recover turns handler panics into a 500 JSON body. The stack goes to the
// log only.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					l.Error("panic recovered",
						logger.String("path", c.Request().URL.Path),
						logger.Error(perr),
						logger.String("stack", string(debug.Stack())),
					)
					if !c.Response().Committed {
						err = c.JSON(http.StatusInternalServerError, map[string]string{
							"error":   "Internal Server Error",
							"message": "Something went wrong",
						})
					}
				}
			}()
			return next(c)
		}
	}
}
