package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/application/metric"
	"github.com/qrave1/SyncRoom/internal/domain/session"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/memory"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/redis"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/server"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	shutdownReason  = "server is shutting down"
)

func runApp(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepo(dbConn)
	roomRepo := repository.NewRoomRepo(dbConn)

	var (
		roomMeta    repository.RoomMetadataRepository = roomRepo
		invalidator usecase.RoomCacheInvalidator
	)

	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer rdb.Close()

		cache := redis.NewRoomMetadataCache(roomRepo, rdb, cfg.Redis.RoomTTL)
		roomMeta = cache
		invalidator = cache
	}

	wsConnRepo := memory.NewWSConnectionRepository()
	registry := memory.NewSessionRegistry(session.Options{
		ChatCapacity: cfg.Room.ChatCapacity,
		MaxChatBytes: cfg.Room.MaxChatBytes,
	})

	mediaTokens := usecase.NewMediaTokenIssuer(cfg.Media.Secret, cfg.Media.Issuer, cfg.Media.TokenTTL)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo, wsConnRepo)
	roomUsecase := usecase.NewRoomUsecase(roomRepo, registry, mediaTokens, invalidator)
	syncUsecase := usecase.NewSyncUsecase(cfg.Room.RequireMembership, userUsecase, roomMeta, roomRepo, registry, wsConnRepo)

	authHandler := handlers.NewAuthHandler(cfg, userUsecase)
	roomHandler := handlers.NewRoomHandler(roomUsecase)
	streamHandler := handlers.NewStreamHandler(roomUsecase, userUsecase)
	wsHandler := handlers.NewWebSocketHandler(cfg, syncUsecase)

	echoSrv := server.New(cfg, authHandler, roomHandler, streamHandler, wsHandler)
	metricsSrv := metric.NewServer()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server started", slog.String("port", cfg.Port))
		return serve(echoSrv, ":"+cfg.Port)
	})

	g.Go(func() error {
		slog.Info("metrics server started", slog.String("port", cfg.MetricPort))
		return serve(metricsSrv, ":"+cfg.MetricPort)
	})

	g.Go(func() error {
		<-gCtx.Done()

		slog.Info("shutting down servers")

		// hijacked websocket соединения Shutdown не закрывает
		registry.CloseAll(shutdownReason)

		timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer timeoutCancel()

		if err := echoSrv.Shutdown(timeoutCtx); err != nil {
			slog.Error("failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
		}

		if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
			slog.Error("failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	}
}

func serve(e *echo.Echo, addr string) error {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
