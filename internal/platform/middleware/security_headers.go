package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the hardening headers of a JSON-only API. Responses
// under patientPrefixes carry examination results and must never be stored
// by a browser or proxy; protocol reference data may be cached but is
// revalidated on every use.
func SecurityHeaders(patientPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if c.Request().TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000")
			}

			h.Set("Cache-Control", "no-cache")
			path := c.Request().URL.Path
			for _, p := range patientPrefixes {
				if strings.HasPrefix(path, p) {
					h.Set("Cache-Control", "no-store")
					h.Set("Pragma", "no-cache")
					break
				}
			}
			return next(c)
		}
	}
}
