package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

// RoomMetadataRepository - то, что нужно шлюзу подключений для проверки комнаты
type RoomMetadataRepository interface {
	GetMetadata(ctx context.Context, id uuid.UUID) (*models.RoomMetadata, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// PlaybackRecorder сохраняет последнее закоммиченное состояние плеера
type PlaybackRecorder interface {
	UpdatePlayback(ctx context.Context, roomID uuid.UUID, st runtime.PlaybackState) error
}

type RoomRepository interface {
	RoomMetadataRepository
	PlaybackRecorder

	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, roomID, userID uuid.UUID) error
	GetMembers(ctx context.Context, roomID uuid.UUID) ([]*models.User, error)
	GetRoomsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Room, error)
}

type roomRepo struct {
	db *sqlx.DB
}

func NewRoomRepo(db *sqlx.DB) RoomRepository {
	return &roomRepo{db: db}
}

const roomColumns = `id, host_id, name, video_url, playback_state, playback_position,
	playback_updated_at, created_at, updated_at`

// Create сохраняет комнату и делает создателя ее участником
func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO rooms (id, host_id, name, video_url, playback_state, playback_position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		room.ID,
		room.HostID,
		room.Name,
		room.VideoURL,
		room.PlaybackState,
		room.PlaybackPosition,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)", room.ID, room.HostID)
	if err != nil {
		return fmt.Errorf("add host to room: %w", err)
	}

	return tx.Commit()
}

func (r *roomRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room

	err := r.db.GetContext(ctx, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}

		return nil, fmt.Errorf("get room: %w", err)
	}

	return &room, nil
}

func (r *roomRepo) GetMetadata(ctx context.Context, id uuid.UUID) (*models.RoomMetadata, error) {
	room, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	meta := room.Metadata()

	return &meta, nil
}

func (r *roomRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	if aff, err := res.RowsAffected(); err == nil && aff == 0 {
		return domain.ErrRoomNotFound
	}

	return nil
}

func (r *roomRepo) AddMember(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)", roomID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}

		return fmt.Errorf("add room member: %w", err)
	}

	return nil
}

func (r *roomRepo) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool

	err := r.db.GetContext(
		ctx,
		&exists,
		"SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)",
		roomID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("check room member: %w", err)
	}

	return exists, nil
}

func (r *roomRepo) GetMembers(ctx context.Context, roomID uuid.UUID) ([]*models.User, error) {
	var users []*models.User

	query := `
		SELECT u.id, u.username, u.created_at, u.updated_at
		FROM users u
		INNER JOIN room_members rm ON u.id = rm.user_id
		WHERE rm.room_id = $1
		ORDER BY rm.joined_at
	`

	if err := r.db.SelectContext(ctx, &users, query, roomID); err != nil {
		return nil, fmt.Errorf("get room members: %w", err)
	}

	return users, nil
}

func (r *roomRepo) GetRoomsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	var rooms []*models.Room

	query := `
		SELECT r.id, r.host_id, r.name, r.video_url, r.playback_state, r.playback_position,
			r.playback_updated_at, r.created_at, r.updated_at
		FROM rooms r
		INNER JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = $1
		ORDER BY r.created_at DESC
	`

	if err := r.db.SelectContext(ctx, &rooms, query, userID); err != nil {
		return nil, fmt.Errorf("get rooms by user: %w", err)
	}

	return rooms, nil
}

// UpdatePlayback не перезаписывает более свежее состояние
func (r *roomRepo) UpdatePlayback(ctx context.Context, roomID uuid.UUID, st runtime.PlaybackState) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE rooms
		SET playback_state = $1, playback_position = $2, playback_updated_at = $3, updated_at = $4
		WHERE id = $5 AND (playback_updated_at IS NULL OR playback_updated_at <= $3)`,
		string(st.Status),
		st.Position,
		st.UpdatedAt,
		time.Now(),
		roomID,
	)
	if err != nil {
		return fmt.Errorf("update room playback: %w", err)
	}

	return nil
}
