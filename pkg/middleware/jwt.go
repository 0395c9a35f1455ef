package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

// JWTMiddleware verifies the bearer token and stores its claims under auth.ContextKey.
func JWTMiddleware(verifier auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Token")
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Token")
			}
			c.Set(auth.ContextKey, claims)
			return next(c)
		}
	}
}
