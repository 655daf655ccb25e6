package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/application/metric"
	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
	"github.com/qrave1/SyncRoom/internal/domain/session"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/memory"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres/repository"
)

const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeMalformed = "malformed"

	playbackWriteTimeout = 3 * time.Second
)

// Authenticator проверяет credential подключения
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*models.User, error)
}

// Ticket - подключение, прошедшее все проверки, но еще не присоединенное к сессии
type Ticket struct {
	Room models.RoomMetadata
	User models.User
}

// SyncUsecase - шлюз подключений к живым сессиям комнат
type SyncUsecase interface {
	// Connect проверяет пользователя и комнату. При ошибке состояние сессий не меняется
	Connect(ctx context.Context, roomID uuid.UUID, credential string) (*Ticket, error)

	// Attach присоединяет подключение к сессии, клиент сразу получает sync
	Attach(ctx context.Context, ticket *Ticket, conn session.Conn) (*Connection, error)
}

type syncUsecase struct {
	requireMembership bool

	auth     Authenticator
	rooms    repository.RoomMetadataRepository
	recorder repository.PlaybackRecorder
	registry memory.SessionRegistry
	wsRepo   memory.WebsocketConnectionRepository
}

func NewSyncUsecase(
	requireMembership bool,
	auth Authenticator,
	rooms repository.RoomMetadataRepository,
	recorder repository.PlaybackRecorder,
	registry memory.SessionRegistry,
	wsRepo memory.WebsocketConnectionRepository,
) SyncUsecase {
	return &syncUsecase{
		requireMembership: requireMembership,
		auth:              auth,
		rooms:             rooms,
		recorder:          recorder,
		registry:          registry,
		wsRepo:            wsRepo,
	}
}

func (uc *syncUsecase) Connect(ctx context.Context, roomID uuid.UUID, credential string) (*Ticket, error) {
	user, err := uc.auth.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	room, err := uc.rooms.GetMetadata(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if uc.requireMembership && user.ID != room.HostID {
		ok, err := uc.rooms.IsMember(ctx, roomID, user.ID)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, domain.ErrNotRoomMember
		}
	}

	return &Ticket{Room: *room, User: *user}, nil
}

func (uc *syncUsecase) Attach(ctx context.Context, ticket *Ticket, conn session.Conn) (*Connection, error) {
	p := runtime.NewParticipant(ticket.User.ID, ticket.User.Username, ticket.Room.HostID)
	p.ConnID = conn.ID()

	// учитываем соединение до Attach, чтобы онлайн-список не отставал от sync
	uc.wsRepo.Add(ticket.Room.ID, p)

	s, err := uc.registry.Join(ticket.Room.ID, ticket.Room.HostID, p, conn)
	if err != nil {
		uc.wsRepo.Remove(p.ConnID)
		return nil, fmt.Errorf("join room session: %w", err)
	}

	c := &Connection{
		participant: p,
		roomID:      ticket.Room.ID,
		session:     s,
		uc:          uc,
	}

	// комнату могли удалить между Connect и Join; удаление после этой проверки закроет сессию само
	if _, err = uc.rooms.GetMetadata(ctx, ticket.Room.ID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			uc.registry.Close(ticket.Room.ID, roomDeletedReason)
			c.Close()

			return nil, err
		}

		slog.Warn("recheck room on attach", slog.Any(constant.RoomID, ticket.Room.ID), slog.Any(constant.Error, err))
	}

	return c, nil
}

// Connection - присоединенный к сессии участник
type Connection struct {
	participant runtime.Participant
	roomID      uuid.UUID
	session     *session.Session
	uc          *syncUsecase

	closeOnce sync.Once
}

func (c *Connection) Participant() runtime.Participant {
	return c.participant
}

func (c *Connection) RoomID() uuid.UUID {
	return c.roomID
}

// Handle обрабатывает одно входящее сообщение.
// Ошибки отдельного сообщения уходят отправителю и не рвут соединение;
// ошибка возвращается, только если участник больше не в сессии
func (c *Connection) Handle(ctx context.Context, raw []byte) error {
	connID := c.participant.ConnID

	in, err := events.Parse(raw)
	if err != nil {
		metric.RecordWSMessage(inboundLabel(err), outcomeMalformed)

		slog.Debug(
			"malformed message",
			slog.Any(constant.RoomID, c.roomID),
			slog.Any(constant.ConnID, connID),
			slog.Any(constant.Error, err),
		)

		c.session.Reject(connID, err)
		return nil
	}

	res, err := c.session.Handle(connID, in)
	switch {
	case errors.Is(err, session.ErrNotAttached):
		return err

	case errors.Is(err, domain.ErrMalformedMessage):
		metric.RecordWSMessage(in.Type(), outcomeMalformed)
		return nil

	case err != nil:
		metric.RecordWSMessage(in.Type(), outcomeRejected)

		slog.Info(
			"message rejected",
			slog.String(constant.Type, in.Type()),
			slog.Any(constant.RoomID, c.roomID),
			slog.Any(constant.UserID, c.participant.UserID),
			slog.Any(constant.Error, err),
		)

		return nil
	}

	metric.RecordWSMessage(in.Type(), outcomeOK)

	if res.Playback != nil {
		c.recordPlayback(ctx, *res.Playback)
	}

	return nil
}

// Reject отправляет участнику error, не трогая состояние комнаты
func (c *Connection) Reject(err error) {
	metric.RecordWSMessage(inboundLabel(err), outcomeMalformed)

	c.session.Reject(c.participant.ConnID, err)
}

// Close отсоединяет участника от сессии. Повторный вызов ничего не делает
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.uc.registry.Leave(c.roomID, c.participant.ConnID)
		c.uc.wsRepo.Remove(c.participant.ConnID)
	})
}

func (c *Connection) recordPlayback(ctx context.Context, st runtime.PlaybackState) {
	if c.uc.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, playbackWriteTimeout)
	defer cancel()

	if err := c.uc.recorder.UpdatePlayback(ctx, c.roomID, st); err != nil {
		slog.Warn(
			"record playback state",
			slog.Any(constant.RoomID, c.roomID),
			slog.Any(constant.Error, err),
		)
	}
}

func inboundLabel(err error) string {
	if errors.Is(err, domain.ErrUnknownMessageType) {
		return "unknown"
	}

	return "invalid"
}
