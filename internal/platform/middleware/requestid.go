package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID propagates the caller's X-Request-ID or assigns a uuid, and
// stores it under "request_id" for the logging middlewares. Oversized ids
// are replaced.
func RequestID() echo.MiddlewareFunc {
	assign := echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		TargetHeader: RequestIDHeader,
		Generator:    uuid.NewString,
		RequestIDHandler: func(c echo.Context, rid string) {
			c.Set("request_id", rid)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := assign(next)
		return func(c echo.Context) error {
			if len(c.Request().Header.Get(RequestIDHeader)) > maxRequestIDLen {
				c.Request().Header.Del(RequestIDHeader)
			}
			return h(c)
		}
	}
}
