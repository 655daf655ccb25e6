package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/domain/input"
)

// Room - метаданные комнаты в БД. Живое состояние хранит session.Session,
// в строку пишется только последнее закоммиченное состояние плеера.
type Room struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	HostID            uuid.UUID  `json:"host_id" db:"host_id"`
	Name              string     `json:"name" db:"name"`
	VideoURL          *string    `json:"video_url" db:"video_url"`
	PlaybackState     string     `json:"playback_state" db:"playback_state"`
	PlaybackPosition  float64    `json:"current_timestamp" db:"playback_position"`
	PlaybackUpdatedAt *time.Time `json:"playback_updated_at" db:"playback_updated_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// RoomMetadata - то, что нужно шлюзу подключений
type RoomMetadata struct {
	ID     uuid.UUID `json:"id"`
	HostID uuid.UUID `json:"host_id"`
	Name   string    `json:"name"`
}

func (r *Room) Metadata() RoomMetadata {
	return RoomMetadata{ID: r.ID, HostID: r.HostID, Name: r.Name}
}

func NewRoom(input *input.CreateRoomInput) *Room {
	name := input.Name
	if name == "" {
		name = DefaultRoomName
	}

	return &Room{
		ID:            uuid.New(),
		HostID:        input.HostID,
		Name:          name,
		VideoURL:      input.VideoURL,
		PlaybackState: "paused",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

const DefaultRoomName = "New Theatre Room"
