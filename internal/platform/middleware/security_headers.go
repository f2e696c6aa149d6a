package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders hardens responses of a JSON API that serves patient
// records and printable prescriptions. HSTS is only sent when
// strictTransport is set; TLS usually ends at the proxy in front of the
// server, so the header is written regardless of the request scheme.
func SecurityHeaders(strictTransport bool) echo.MiddlewareFunc {
	secure := echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return secure(func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Cache-Control", "no-store")
			if strictTransport {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		})
	}
}
