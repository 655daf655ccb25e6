package runtime

import "github.com/google/uuid"

type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

// Participant - одно подключение к комнате.
// Один пользователь с двух вкладок - два участника с одинаковым UserID
type Participant struct {
	ConnID   uuid.UUID `json:"conn_id"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}

func NewParticipant(userID uuid.UUID, username string, hostID uuid.UUID) Participant {
	role := RoleMember
	if userID == hostID {
		role = RoleHost
	}

	return Participant{
		ConnID:   uuid.New(),
		UserID:   userID,
		Username: username,
		Role:     role,
	}
}

func (p Participant) IsHost() bool {
	return p.Role == RoleHost
}
