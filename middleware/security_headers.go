// middleware/security_headers.go
package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders hardens the JSON responses of the bot's HTTP endpoints.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Content-Security-Policy", "default-src 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Del("Server")
			h.Del("X-Powered-By")
			return next(c)
		}
	}
}
