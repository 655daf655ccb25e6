package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/infra/appctx"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

// StreamHandler выдает токены медиа-сервера. Сами медиа-данные сервис не передает
type StreamHandler struct {
	roomUsecase usecase.RoomUsecase
	userUsecase usecase.UserUsecase
}

func NewStreamHandler(roomUsecase usecase.RoomUsecase, userUsecase usecase.UserUsecase) *StreamHandler {
	return &StreamHandler{
		roomUsecase: roomUsecase,
		userUsecase: userUsecase,
	}
}

// StartStream - токен хоста на публикацию
func (h *StreamHandler) StartStream(c echo.Context) error {
	roomID, user, err := h.resolve(c)
	if err != nil {
		return err
	}

	if user == nil {
		return nil
	}

	token, err := h.roomUsecase.StartStream(c.Request().Context(), roomID, user)
	if err != nil {
		if statusFor(err) == http.StatusForbidden {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "only the host can start the stream"})
		}

		return errorJSON(c, err, "could not issue media token")
	}

	return c.JSON(http.StatusOK, token)
}

// JoinStream - токен участника на просмотр
func (h *StreamHandler) JoinStream(c echo.Context) error {
	roomID, user, err := h.resolve(c)
	if err != nil {
		return err
	}

	if user == nil {
		return nil
	}

	token, err := h.roomUsecase.JoinStream(c.Request().Context(), roomID, user)
	if err != nil {
		if statusFor(err) == http.StatusForbidden {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "you must join the room to view the stream"})
		}

		return errorJSON(c, err, "could not issue media token")
	}

	return c.JSON(http.StatusOK, token)
}

// resolve возвращает nil пользователя, если ответ уже записан
func (h *StreamHandler) resolve(c echo.Context) (uuid.UUID, *models.User, error) {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return uuid.Nil, nil, c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, nil, c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room id"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return uuid.Nil, nil, errorJSON(c, err, "could not get user")
	}

	return roomID, user, nil
}
