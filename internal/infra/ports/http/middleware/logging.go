package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/infra/appctx"
)

// Кастомный логгер через slog
func SlogLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(
		middleware.RequestLoggerConfig{
			LogStatus:  true,
			LogURI:     true,
			LogMethod:  true,
			LogError:   true,
			LogLatency: true,

			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				level := slog.LevelInfo
				if v.Error != nil || v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				} else if v.Status >= http.StatusBadRequest {
					level = slog.LevelWarn
				}

				attrs := []slog.Attr{
					slog.Int("status", v.Status),
					slog.String("uri", v.URI),
					slog.String("method", v.Method),
					slog.Duration("latency", v.Latency.Round(time.Microsecond)),
				}

				if userID, ok := appctx.UserID(c.Request().Context()); ok {
					attrs = append(attrs, slog.Any(constant.UserID, userID))
				}

				if v.Error != nil {
					attrs = append(attrs, slog.Any(constant.Error, v.Error))
				}

				slog.LogAttrs(c.Request().Context(), level, "HTTP request", attrs...)

				return nil
			},
		},
	)
}
