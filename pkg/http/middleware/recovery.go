package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "TradeGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 with the usual error envelope.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				l.Error("http handler panic",
					applogger.String("panic", fmt.Sprint(r)),
					applogger.String("route", c.Path()),
					applogger.String("stack", string(debug.Stack())),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status": http.StatusInternalServerError,
					"data":   []map[string]string{{"code": "ERR_INTERNAL", "message": "something went wrong"}},
				})
			}()
			return next(c)
		}
	}
}
