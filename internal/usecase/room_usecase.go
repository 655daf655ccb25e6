package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/input"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/output"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/memory"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres/repository"
)

const roomDeletedReason = "room was deleted by the host"

// RoomCacheInvalidator сбрасывает закэшированные метаданные комнаты
type RoomCacheInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type RoomUsecase interface {
	CreateRoom(ctx context.Context, in *input.CreateRoomInput) (*models.Room, error)
	GetRoomsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Room, error)
	GetRoomDetails(ctx context.Context, roomID uuid.UUID) (*output.RoomDetails, error)

	JoinRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error)
	DeleteRoom(ctx context.Context, roomID, userID uuid.UUID) error

	// Токены медиа-сервера
	StartStream(ctx context.Context, roomID uuid.UUID, user *models.User) (*output.MediaToken, error)
	JoinStream(ctx context.Context, roomID uuid.UUID, user *models.User) (*output.MediaToken, error)
}

type roomUsecase struct {
	roomRepo repository.RoomRepository
	registry memory.SessionRegistry
	tokens   *MediaTokenIssuer

	// cache может быть nil, если Redis не настроен
	cache RoomCacheInvalidator
}

func NewRoomUsecase(
	roomRepo repository.RoomRepository,
	registry memory.SessionRegistry,
	tokens *MediaTokenIssuer,
	cache RoomCacheInvalidator,
) RoomUsecase {
	return &roomUsecase{
		roomRepo: roomRepo,
		registry: registry,
		tokens:   tokens,
		cache:    cache,
	}
}

// CreateRoom создает комнату, создатель становится хостом и участником
func (uc *roomUsecase) CreateRoom(ctx context.Context, in *input.CreateRoomInput) (*models.Room, error) {
	room := models.NewRoom(in)

	if err := uc.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	slog.Info("room created", slog.Any(constant.RoomID, room.ID), slog.Any(constant.UserID, room.HostID))

	return room, nil
}

func (uc *roomUsecase) GetRoomsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	return uc.roomRepo.GetRoomsByUserID(ctx, userID)
}

func (uc *roomUsecase) GetRoomDetails(ctx context.Context, roomID uuid.UUID) (*output.RoomDetails, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	members, err := uc.roomRepo.GetMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	details := &output.RoomDetails{Room: room, Members: members}

	if s, ok := uc.registry.Get(roomID); ok {
		snap := s.Snapshot()

		details.Live = &output.LiveRoom{
			Status:       snap.Playback.Status,
			Position:     snap.Position,
			Participants: snap.Participants,
			ChatLen:      snap.ChatLen,
		}
	}

	return details, nil
}

func (uc *roomUsecase) JoinRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err = uc.roomRepo.AddMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	return room, nil
}

// DeleteRoom удаляет комнату и отключает всех, кто в ней сейчас
func (uc *roomUsecase) DeleteRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	if room.HostID != userID {
		return domain.ErrForbidden
	}

	if err = uc.roomRepo.Delete(ctx, roomID); err != nil {
		return err
	}

	if uc.cache != nil {
		if err = uc.cache.Invalidate(ctx, roomID); err != nil {
			slog.Warn("invalidate room cache", slog.Any(constant.RoomID, roomID), slog.Any(constant.Error, err))
		}
	}

	uc.registry.Close(roomID, roomDeletedReason)

	slog.Info("room deleted", slog.Any(constant.RoomID, roomID), slog.Any(constant.UserID, userID))

	return nil
}

// StartStream выдает хосту токен на публикацию потока
func (uc *roomUsecase) StartStream(ctx context.Context, roomID uuid.UUID, user *models.User) (*output.MediaToken, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.HostID != user.ID {
		return nil, domain.ErrForbidden
	}

	return uc.tokens.Issue(user.ID, user.Username, roomID, GrantPublish)
}

// JoinStream выдает участнику токен на просмотр потока
func (uc *roomUsecase) JoinStream(ctx context.Context, roomID uuid.UUID, user *models.User) (*output.MediaToken, error) {
	if _, err := uc.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	ok, err := uc.roomRepo.IsMember(ctx, roomID, user.ID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return uc.tokens.Issue(user.ID, user.Username, roomID, GrantView)
}

