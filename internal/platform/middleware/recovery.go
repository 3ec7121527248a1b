package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/pkg/apperr"
)

// Recovery turns a handler panic into an internal error so the client still
// gets the standard envelope. The stack is logged, never returned.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				evt := logger.Error().
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack())
				if rid, ok := c.Get("request_id").(string); ok {
					evt = evt.Str("request_id", rid)
				}
				if uid, ok := c.Get("user_id").(string); ok {
					evt = evt.Str("user_id", uid)
				}
				evt.Msg("panic recovered")
				err = apperr.New(apperr.KindInternal, "internal server error")
			}()
			return next(c)
		}
	}
}
