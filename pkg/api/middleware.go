package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/auth"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

const tenantContextKey = "eventsubd_tenant"

// requireAudience returns middleware guarding authenticated admin mutation
// endpoints: it verifies the bearer token against aud and stores the
// tenant it's scoped to in the echo context, so handlers never trust a
// tenant value a client merely put in its request body.
func (s *Server) requireAudience(aud auth.Audience) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return writeProblem(c, unauthorized("missing bearer token", c.Request().URL.Path))
			}
			token := strings.TrimPrefix(header, prefix)

			tenant, err := auth.Verify(token, s.sseSigningKey, aud, s.clock.Now())
			if err != nil {
				return writeProblem(c, problemError(err, c.Request().URL.Path))
			}
			c.Set(tenantContextKey, tenant)
			return next(c)
		}
	}
}

func authenticatedTenant(c *echo.Context) string {
	tenant, _ := c.Get(tenantContextKey).(string)
	return tenant
}
