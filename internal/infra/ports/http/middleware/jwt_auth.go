package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/infra/appctx"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

const JWTCookie = "jwt"

func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(JWTCookie)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			}

			userID, err := usecase.ParseUserToken(cookie.Value, []byte(secret))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithUserID(c.Request().Context(), userID),
				),
			)

			return next(c)
		}
	}
}

// BuildCookieDomain возвращает значение для cookie.Domain или пустую строку, если Domain не нужно задавать.
//
// domain может быть как хостом, так и URL (http://example.com:3000).
func BuildCookieDomain(domain string) string {
	host := domain
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		host = u.Host
	}

	// Убираем порт: example.com:8080 -> example.com
	if i := strings.Index(host, ":"); i != -1 {
		host = host[:i]
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == "localhost" {
		return ""
	}

	// для IP адресов Domain не указываем
	if ip := net.ParseIP(host); ip != nil {
		return ""
	}

	// api.example.com -> .example.com
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "." + strings.Join(parts[len(parts)-2:], ".")
	}

	return ""
}
