package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/domain/input"
	"github.com/qrave1/SyncRoom/internal/infra/appctx"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

type RoomHandler struct {
	roomUsecase usecase.RoomUsecase
}

func NewRoomHandler(roomUsecase usecase.RoomUsecase) *RoomHandler {
	return &RoomHandler{roomUsecase: roomUsecase}
}

func (h *RoomHandler) ListRooms(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	rooms, err := h.roomUsecase.GetRoomsByUserID(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, err, "failed to get rooms")
	}

	resp := dto.ListRoomsResponse{
		Rooms: make([]dto.RoomResponse, 0, len(rooms)),
	}

	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, dto.NewRoomResponseFromModel(r))
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	var req dto.CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	room, err := h.roomUsecase.CreateRoom(
		c.Request().Context(),
		&input.CreateRoomInput{
			HostID:   userID,
			Name:     req.Name,
			VideoURL: req.VideoURL,
		},
	)
	if err != nil {
		return errorJSON(c, err, "failed to create room")
	}

	return c.JSON(http.StatusCreated, dto.NewRoomResponseFromModel(room))
}

func (h *RoomHandler) GetRoom(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room id"})
	}

	details, err := h.roomUsecase.GetRoomDetails(c.Request().Context(), roomID)
	if err != nil {
		return errorJSON(c, err, "failed to get room")
	}

	return c.JSON(http.StatusOK, dto.NewRoomDetailsResponse(details))
}

func (h *RoomHandler) JoinRoom(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room id"})
	}

	room, err := h.roomUsecase.JoinRoom(c.Request().Context(), roomID, userID)
	if err != nil {
		return errorJSON(c, err, "failed to join room")
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponseFromModel(room))
}

func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room id"})
	}

	if err = h.roomUsecase.DeleteRoom(c.Request().Context(), roomID, userID); err != nil {
		return errorJSON(c, err, "failed to delete room")
	}

	return c.NoContent(http.StatusNoContent)
}
