package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	roomHandler *handlers.RoomHandler,
	streamHandler *handlers.StreamHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
		}

		// sync-сокет проверяет credential сам: cookie или ?token=
		api.GET("/v1/rooms/:id/ws", wsHandler.Handle)

		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			v1.GET("/me", authHandler.GetMe)
			v1.GET("/users/online", authHandler.GetOnlineUsers)

			v1.GET("/rooms", roomHandler.ListRooms)
			v1.POST("/rooms", roomHandler.CreateRoom)
			v1.GET("/rooms/:id", roomHandler.GetRoom)
			v1.POST("/rooms/:id/join", roomHandler.JoinRoom)
			v1.DELETE("/rooms/:id", roomHandler.DeleteRoom)

			v1.POST("/rooms/:id/start-stream", streamHandler.StartStream)
			v1.GET("/rooms/:id/join-stream", streamHandler.JoinStream)
		}
	}

	return e
}
