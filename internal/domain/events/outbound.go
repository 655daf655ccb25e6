package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

// Outbound - сообщения сервера клиенту
type Outbound interface {
	outbound()
}

// ControlMessage - эхо авторизованной команды хоста
type ControlMessage struct {
	Type string   `json:"type"`
	Time *float64 `json:"time,omitempty"`
}

type ChatMessage struct {
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  int64     `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PlaybackView struct {
	Status    runtime.PlaybackStatus `json:"status"`
	Position  float64                `json:"position"`
	UpdatedAt int64                  `json:"updatedAt"`
}

type ParticipantView struct {
	ID       uuid.UUID    `json:"id"`
	UserID   uuid.UUID    `json:"userId"`
	Username string       `json:"username"`
	Role     runtime.Role `json:"role"`
}

// SyncMessage - полное состояние комнаты для подключившегося (или переподключившегося) клиента
type SyncMessage struct {
	Type         string            `json:"type"`
	HostID       uuid.UUID         `json:"hostId"`
	Self         ParticipantView   `json:"self"`
	Playback     PlaybackView      `json:"playback"`
	Chat         []ChatMessage     `json:"chat"`
	Participants []ParticipantView `json:"participants"`
}

type ParticipantsMessage struct {
	Type         string            `json:"type"`
	Participants []ParticipantView `json:"participants"`
}

func (ControlMessage) outbound()      {}
func (ChatMessage) outbound()         {}
func (ErrorMessage) outbound()        {}
func (SyncMessage) outbound()         {}
func (ParticipantsMessage) outbound() {}

func PlayMessage() ControlMessage {
	return ControlMessage{Type: TypePlay}
}

func PauseMessage() ControlMessage {
	return ControlMessage{Type: TypePause}
}

func SeekMessage(t float64) ControlMessage {
	return ControlMessage{Type: TypeSeek, Time: &t}
}

func NewErrorMessage(text string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: text}
}

func NewChatMessage(e runtime.ChatEntry) ChatMessage {
	return ChatMessage{
		Type:       TypeChat,
		Message:    e.Text,
		SenderID:   e.SenderID,
		SenderName: e.SenderName,
		Timestamp:  e.Timestamp.UnixMilli(),
	}
}

func NewPlaybackView(st runtime.PlaybackState, now time.Time) PlaybackView {
	return PlaybackView{
		Status:    st.Status,
		Position:  st.EffectivePosition(now),
		UpdatedAt: st.UpdatedAt.UnixMilli(),
	}
}

func NewParticipantView(p runtime.Participant) ParticipantView {
	return ParticipantView{
		ID:       p.ConnID,
		UserID:   p.UserID,
		Username: p.Username,
		Role:     p.Role,
	}
}

func Encode(msg Outbound) ([]byte, error) {
	return json.Marshal(msg)
}
