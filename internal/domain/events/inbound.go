package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/qrave1/SyncRoom/internal/domain"
)

// Inbound - закрытое множество входящих сообщений клиента.
// Реализации: Play, Pause, Seek, Chat, SyncRequest
type Inbound interface {
	Type() string
	inbound()
}

// Control - команды управления плеером, доступны только хосту
type Control interface {
	Inbound
	control()
}

type Play struct{}

type Pause struct{}

type Seek struct {
	Time float64
}

type Chat struct {
	Message string
}

// SyncRequest - клиент просит повторно прислать состояние комнаты
type SyncRequest struct{}

func (Play) Type() string        { return TypePlay }
func (Pause) Type() string       { return TypePause }
func (Seek) Type() string        { return TypeSeek }
func (Chat) Type() string        { return TypeChat }
func (SyncRequest) Type() string { return TypeSync }

func (Play) inbound()        {}
func (Pause) inbound()       {}
func (Seek) inbound()        {}
func (Chat) inbound()        {}
func (SyncRequest) inbound() {}

func (Play) control()  {}
func (Pause) control() {}
func (Seek) control()  {}

type envelope struct {
	Type    string          `json:"type"`
	Time    json.RawMessage `json:"time"`
	Message json.RawMessage `json:"message"`
}

var null = []byte("null")

// Parse разбирает входящее сообщение. Ошибки оборачивают domain.ErrMalformedMessage,
// неизвестный тип - еще и domain.ErrUnknownMessageType
func Parse(data []byte) (Inbound, error) {
	var env envelope

	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypePlay:
		return Play{}, nil

	case TypePause:
		return Pause{}, nil

	case TypeSeek:
		if len(env.Time) == 0 || bytes.Equal(env.Time, null) {
			return nil, fmt.Errorf("%w: seek requires time", domain.ErrMalformedMessage)
		}

		var t float64
		if err := json.Unmarshal(env.Time, &t); err != nil {
			return nil, fmt.Errorf("%w: seek time must be a number", domain.ErrMalformedMessage)
		}

		if t < 0 {
			return nil, fmt.Errorf("%w: seek time must be non-negative", domain.ErrMalformedMessage)
		}

		return Seek{Time: t}, nil

	case TypeChat:
		if len(env.Message) == 0 || bytes.Equal(env.Message, null) {
			return nil, fmt.Errorf("%w: chat requires message", domain.ErrMalformedMessage)
		}

		var text string
		if err := json.Unmarshal(env.Message, &text); err != nil {
			return nil, fmt.Errorf("%w: chat message must be a string", domain.ErrMalformedMessage)
		}

		return Chat{Message: text}, nil

	case TypeSync:
		return SyncRequest{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", domain.ErrMalformedMessage)

	default:
		return nil, fmt.Errorf("%w: %w %q", domain.ErrMalformedMessage, domain.ErrUnknownMessageType, env.Type)
	}
}
