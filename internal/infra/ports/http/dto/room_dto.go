package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/output"
)

type CreateRoomRequest struct {
	Name     string  `json:"name"`
	VideoURL *string `json:"video_url"`
}

type RoomResponse struct {
	ID            uuid.UUID `json:"id"`
	HostID        uuid.UUID `json:"host_id"`
	Name          string    `json:"name"`
	VideoURL      *string   `json:"video_url"`
	PlaybackState string    `json:"playback_state"`
	Position      float64   `json:"current_timestamp"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewRoomResponseFromModel(r *models.Room) RoomResponse {
	return RoomResponse{
		ID:            r.ID,
		HostID:        r.HostID,
		Name:          r.Name,
		VideoURL:      r.VideoURL,
		PlaybackState: r.PlaybackState,
		Position:      r.PlaybackPosition,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

type MemberResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type RoomDetailsResponse struct {
	RoomResponse

	Members []MemberResponse `json:"members"`
	Live    *output.LiveRoom `json:"live,omitempty"`
}

func NewRoomDetailsResponse(d *output.RoomDetails) RoomDetailsResponse {
	resp := RoomDetailsResponse{
		RoomResponse: NewRoomResponseFromModel(d.Room),
		Members:      make([]MemberResponse, 0, len(d.Members)),
		Live:         d.Live,
	}

	for _, m := range d.Members {
		resp.Members = append(resp.Members, MemberResponse{ID: m.ID, Username: m.Username})
	}

	return resp
}
