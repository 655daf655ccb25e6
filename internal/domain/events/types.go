package events

// Типы сообщений протокола синхронизации
const (
	TypePlay         = "play"
	TypePause        = "pause"
	TypeSeek         = "seek"
	TypeChat         = "chat"
	TypeSync         = "sync"
	TypeError        = "error"
	TypeParticipants = "participants"
)
