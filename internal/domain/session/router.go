package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

const notHostText = "You are not the host, you cannot control playback."

type Audience int

const (
	AudienceAll Audience = iota
	AudienceSender
)

// Decision - результат маршрутизации одного входящего сообщения.
// Router ничего не меняет сам, изменения коммитит Session под своей блокировкой
type Decision struct {
	Playback *runtime.PlaybackState
	Chat     *runtime.ChatEntry
	Message  events.Outbound
	Audience Audience
	Sync     bool
	Err      error
}

// Router классифицирует входящие сообщения и проверяет права отправителя
type Router struct {
	MaxChatBytes int
}

func (r Router) Route(current runtime.PlaybackState, sender runtime.Participant, in events.Inbound, now time.Time) Decision {
	switch cmd := in.(type) {
	case events.Control:
		return r.routeControl(current, sender, cmd, now)

	case events.Chat:
		return r.routeChat(sender, cmd, now)

	case events.SyncRequest:
		return Decision{Sync: true, Audience: AudienceSender}

	default:
		return reject(fmt.Errorf("%w %q", domain.ErrUnknownMessageType, in.Type()))
	}
}

func (r Router) routeControl(current runtime.PlaybackState, sender runtime.Participant, cmd events.Control, now time.Time) Decision {
	if !sender.IsHost() {
		return reject(domain.ErrNotHost)
	}

	var (
		next runtime.PlaybackState
		msg  events.ControlMessage
	)

	switch c := cmd.(type) {
	case events.Play:
		next = current.Play(now)
		msg = events.PlayMessage()

	case events.Pause:
		next = current.Pause(now)
		msg = events.PauseMessage()

	case events.Seek:
		next = current.Seek(c.Time, now)
		msg = events.SeekMessage(c.Time)

	default:
		return reject(fmt.Errorf("%w %q", domain.ErrUnknownMessageType, cmd.Type()))
	}

	return Decision{Playback: &next, Message: msg, Audience: AudienceAll}
}

func (r Router) routeChat(sender runtime.Participant, cmd events.Chat, now time.Time) Decision {
	text := strings.TrimSpace(cmd.Message)

	if text == "" {
		return reject(fmt.Errorf("%w: chat message is empty", domain.ErrMalformedMessage))
	}

	if r.MaxChatBytes > 0 && len(text) > r.MaxChatBytes {
		return reject(fmt.Errorf("%w: limit is %d bytes", domain.ErrChatTooLong, r.MaxChatBytes))
	}

	entry := runtime.ChatEntry{
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		Text:       text,
		Timestamp:  now,
	}

	return Decision{Chat: &entry, Message: events.NewChatMessage(entry), Audience: AudienceAll}
}

func reject(err error) Decision {
	return Decision{
		Err:      err,
		Message:  events.NewErrorMessage(ErrorText(err)),
		Audience: AudienceSender,
	}
}

// ErrorText - текст error сообщения для клиента
func ErrorText(err error) string {
	if errors.Is(err, domain.ErrNotHost) {
		return notHostText
	}

	return err.Error()
}
