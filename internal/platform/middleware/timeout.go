package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/pkg/apperr"
)

// RequestTimeout puts a deadline on each request's context. The handler runs
// on the request goroutine and is expected to honour its context (pgx and the
// services do); when it returns after the deadline without having written a
// response, the client gets a 504 envelope. Websocket paths (/ws/) are
// long-lived and skipped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || strings.HasPrefix(c.Request().URL.Path, "/ws/") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
				if !c.Response().Committed {
					return gatewayTimeout(c)
				}
			}
			return err
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	return c.JSON(http.StatusGatewayTimeout, map[string]interface{}{
		"success": false,
		"error":   "request processing exceeded the allowed time limit",
		"kind":    apperr.KindTimeout,
	})
}
