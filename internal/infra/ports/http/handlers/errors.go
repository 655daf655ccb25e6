package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain"
)

// statusFor сопоставляет доменные ошибки HTTP статусам
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotRoomMember), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyMember):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error, msg string) error {
	status := statusFor(err)

	if status == http.StatusInternalServerError {
		slog.Error(msg, slog.Any(constant.Error, err))
		return c.JSON(status, map[string]string{"error": msg})
	}

	return c.JSON(status, map[string]string{"error": err.Error()})
}
