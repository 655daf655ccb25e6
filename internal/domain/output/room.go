package output

import (
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

// RoomDetails - комната, ее участники и живое состояние, если сессия открыта
type RoomDetails struct {
	Room    *models.Room   `json:"room"`
	Members []*models.User `json:"members"`
	Live    *LiveRoom      `json:"live,omitempty"`
}

type LiveRoom struct {
	Status       runtime.PlaybackStatus `json:"status"`
	Position     float64                `json:"position"`
	Participants []runtime.Participant  `json:"participants"`
	ChatLen      int                    `json:"chat_len"`
}

// MediaToken - токен медиа-сервера для публикации или просмотра потока
type MediaToken struct {
	Token     string `json:"media_token"`
	ExpiresAt int64  `json:"expires_at"`
}
