package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres/repository"
)

const (
	roomKeyPrefix = "syncroom:room:"
	lookupTimeout = 5 * time.Second
)

// RoomMetadataCache - read-through кэш метаданных комнаты поверх БД.
// Ошибки Redis не ломают подключение: идем напрямую в БД
type RoomMetadataCache struct {
	next   repository.RoomMetadataRepository
	client *redis.Client
	ttl    time.Duration

	group singleflight.Group
}

var _ repository.RoomMetadataRepository = (*RoomMetadataCache)(nil)

func NewRoomMetadataCache(next repository.RoomMetadataRepository, client *redis.Client, ttl time.Duration) *RoomMetadataCache {
	return &RoomMetadataCache{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func (c *RoomMetadataCache) GetMetadata(ctx context.Context, id uuid.UUID) (*models.RoomMetadata, error) {
	key := roomKeyPrefix + id.String()

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var meta models.RoomMetadata
		if err = json.Unmarshal(data, &meta); err == nil {
			return &meta, nil
		}

		slog.Warn("decode cached room", slog.Any(constant.RoomID, id), slog.Any(constant.Error, err))
	case !errors.Is(err, redis.Nil):
		slog.Warn("redis get room", slog.Any(constant.RoomID, id), slog.Any(constant.Error, err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// запрос общий для всех ожидающих и не зависит от отмены первого из них
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		meta, err := c.next.GetMetadata(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := c.set(ctx, key, meta); err != nil {
			slog.Warn("redis set room", slog.Any(constant.RoomID, id), slog.Any(constant.Error, err))
		}

		return meta, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.RoomMetadata), nil
}

func (c *RoomMetadataCache) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return c.next.IsMember(ctx, roomID, userID)
}

// Invalidate удаляет комнату из кэша, например после удаления
func (c *RoomMetadataCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, roomKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("redis del room: %w", err)
	}

	return nil
}

func (c *RoomMetadataCache) set(ctx context.Context, key string, meta *models.RoomMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, c.ttl).Err()
}
