package domain

import "errors"

// Ошибки подключения: соединение отклоняется до какого-либо изменения состояния сессии
var (
	ErrUnauthenticated = errors.New("invalid or expired credential")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotRoomMember   = errors.New("user is not a member of the room")
)

// Ошибки сообщений: касаются одного сообщения, отправитель получает error
var (
	ErrNotHost            = errors.New("only the host can control playback")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrChatTooLong        = errors.New("chat message is too long")
)

// ErrSendFailed - доставка одному получателю не удалась, получатель считается отключенным
var ErrSendFailed = errors.New("send to connection failed")

// Ошибки REST слоя
var (
	ErrAlreadyMember = errors.New("user already in this room")
	ErrForbidden     = errors.New("forbidden")
)

// Ошибки пользователей
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
