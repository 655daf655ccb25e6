package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/middleware"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

const tokenQueryParam = "token"

type WebSocketHandler struct {
	upgrader *websocket.Upgrader
	cfg      config.WebSocketConfig

	syncUsecase usecase.SyncUsecase
}

func NewWebSocketHandler(cfg *config.Config, syncUsecase usecase.SyncUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		cfg:         cfg.WebSocket,
		syncUsecase: syncUsecase,
	}
}

// Handle - GET /api/v1/rooms/:id/ws.
// Все проверки выполняются до upgrade, отказ - обычный HTTP ответ
func (h *WebSocketHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": domain.ErrRoomNotFound.Error()})
	}

	ticket, err := h.syncUsecase.Connect(ctx, roomID, credential(c))
	if err != nil {
		slog.Info(
			"websocket connection refused",
			slog.Any(constant.RoomID, roomID),
			slog.Any(constant.Error, err),
		)

		return errorJSON(c, err, "could not connect to room")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}

	client := newWSClient(ws, h.cfg)
	defer client.Close()

	conn, err := h.syncUsecase.Attach(ctx, ticket, client)
	if err != nil {
		slog.Error("attach to room", slog.Any(constant.RoomID, roomID), slog.Any(constant.Error, err))
		return nil
	}
	defer conn.Close()

	if err = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		msg, err := readMessage(ws, h.cfg.MaxMessageBytes)
		if errors.Is(err, errMessageTooLarge) {
			conn.Reject(err)
			continue
		}

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn(
					"webSocket read error",
					slog.Any(constant.ConnID, client.ID()),
					slog.Any(constant.Error, err),
				)
			}

			return nil
		}

		if err = conn.Handle(ctx, msg); err != nil {
			// участник уже отключен сессией
			slog.Debug("connection detached", slog.Any(constant.ConnID, client.ID()), slog.Any(constant.Error, err))
			return nil
		}
	}
}

// credential берется из cookie jwt, для клиентов без cookie - из ?token=
func credential(c echo.Context) string {
	if cookie, err := c.Cookie(middleware.JWTCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return c.QueryParam(tokenQueryParam)
}

var errMessageTooLarge = fmt.Errorf("%w: message is too large", domain.ErrMalformedMessage)

// readMessage читает одно сообщение не больше limit байт.
// Слишком большое сообщение вычитывается до конца и отбрасывается, соединение остается открытым
func readMessage(ws *websocket.Conn, limit int64) ([]byte, error) {
	for {
		messageType, r, err := ws.NextReader()
		if err != nil {
			return nil, err
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		msg, err := io.ReadAll(io.LimitReader(r, limit+1))
		if err != nil {
			return nil, err
		}

		if int64(len(msg)) > limit {
			if _, err = io.Copy(io.Discard, r); err != nil {
				return nil, err
			}

			return nil, errMessageTooLarge
		}

		return msg, nil
	}
}
