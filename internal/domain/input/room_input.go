package input

import "github.com/google/uuid"

type CreateRoomInput struct {
	HostID   uuid.UUID `json:"host_id"`
	Name     string    `json:"name"`
	VideoURL *string   `json:"video_url"`
}
