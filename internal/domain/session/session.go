package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/application/metric"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

var (
	ErrSessionClosed = errors.New("room session closed")
	ErrNotAttached   = errors.New("connection is not attached to the room")
)

// Conn - исходящая сторона подключения участника.
// Send не должен блокироваться: ошибка означает, что соединение мертво или не успевает читать
type Conn interface {
	ID() uuid.UUID
	Send(data []byte) error
	Close()
}

type Options struct {
	ChatCapacity int
	MaxChatBytes int

	// Now - источник времени, по умолчанию time.Now
	Now func() time.Time

	// OnClose вызывается один раз, когда из сессии уходит последний участник.
	// Вызов происходит под блокировкой сессии
	OnClose func(*Session)
}

// Result - то, что закоммитила сессия при обработке сообщения
type Result struct {
	Playback *runtime.PlaybackState
	Chat     *runtime.ChatEntry
}

type Snapshot struct {
	RoomID       uuid.UUID
	HostID       uuid.UUID
	Playback     runtime.PlaybackState
	Position     float64
	Participants []runtime.Participant
	ChatLen      int
}

type member struct {
	participant runtime.Participant
	conn        Conn
}

// Session - живое состояние одной комнаты. Все изменения идут под mu,
// поэтому в комнате одновременно выполняется не больше одной мутации.
type Session struct {
	roomID  uuid.UUID
	hostID  uuid.UUID
	router  Router
	now     func() time.Time
	onClose func(*Session)

	mu         sync.Mutex
	members    map[uuid.UUID]*member
	order      []uuid.UUID
	playback   runtime.PlaybackState
	transcript *runtime.Transcript
	closed     bool
}

func New(roomID, hostID uuid.UUID, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		roomID:     roomID,
		hostID:     hostID,
		router:     Router{MaxChatBytes: opts.MaxChatBytes},
		now:        now,
		onClose:    opts.OnClose,
		members:    make(map[uuid.UUID]*member),
		playback:   runtime.NewPlaybackState(now()),
		transcript: runtime.NewTranscript(opts.ChatCapacity),
	}
}

func (s *Session) RoomID() uuid.UUID {
	return s.roomID
}

func (s *Session) HostID() uuid.UUID {
	return s.hostID
}

// Attach добавляет участника и сразу отправляет ему sync с текущим состоянием
func (s *Session) Attach(p runtime.Participant, conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.members[p.ConnID] = &member{participant: p, conn: conn}
	s.order = append(s.order, p.ConnID)

	slog.Info(
		"participant attached",
		slog.Any(constant.RoomID, s.roomID),
		slog.Any(constant.UserID, p.UserID),
		slog.Any(constant.ConnID, p.ConnID),
		slog.String("role", string(p.Role)),
	)

	if err := s.sendLocked(p.ConnID, s.syncMessageLocked(p)); err != nil {
		return fmt.Errorf("send sync: %w", err)
	}

	s.broadcastLocked(s.participantsMessageLocked())

	return nil
}

// Detach убирает участника. Возвращает true, если сессия опустела и закрыта.
// Уход хоста права управления никому не передает
func (s *Session) Detach(connID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[connID]
	if !ok {
		return s.closed
	}

	s.removeLocked(connID)

	slog.Info(
		"participant detached",
		slog.Any(constant.RoomID, s.roomID),
		slog.Any(constant.UserID, m.participant.UserID),
		slog.Any(constant.ConnID, connID),
	)

	if len(s.members) == 0 {
		s.closeLocked()
		return true
	}

	s.broadcastLocked(s.participantsMessageLocked())

	return s.closed
}

// Handle маршрутизирует входящее сообщение и коммитит решение роутера
func (s *Session) Handle(connID uuid.UUID, in events.Inbound) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[connID]
	if !ok {
		return Result{}, ErrNotAttached
	}

	d := s.router.Route(s.playback, m.participant, in, s.now())

	if d.Err != nil {
		_ = s.sendLocked(connID, d.Message)
		return Result{}, d.Err
	}

	if d.Playback != nil {
		s.playback = *d.Playback
	}

	if d.Chat != nil {
		s.transcript.Append(*d.Chat)
	}

	switch {
	case d.Sync:
		_ = s.sendLocked(connID, s.syncMessageLocked(m.participant))
	case d.Audience == AudienceSender:
		_ = s.sendLocked(connID, d.Message)
	default:
		s.broadcastLocked(d.Message)
	}

	return Result{Playback: d.Playback, Chat: d.Chat}, nil
}

func (s *Session) ApplyControl(connID uuid.UUID, cmd events.Control) (runtime.PlaybackState, error) {
	res, err := s.Handle(connID, cmd)
	if err != nil {
		return runtime.PlaybackState{}, err
	}

	return *res.Playback, nil
}

func (s *Session) AppendChat(connID uuid.UUID, text string) (runtime.ChatEntry, error) {
	res, err := s.Handle(connID, events.Chat{Message: text})
	if err != nil {
		return runtime.ChatEntry{}, err
	}

	return *res.Chat, nil
}

// Reject отправляет error только указанному участнику
func (s *Session) Reject(connID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.sendLocked(connID, events.NewErrorMessage(ErrorText(err)))
}

// Broadcast рассылает сообщение всем подключенным участникам
func (s *Session) Broadcast(msg events.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.broadcastLocked(msg)
}

// Close отключает всех участников, например при удалении комнаты
func (s *Session) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if reason != "" {
		if data, err := events.Encode(events.NewErrorMessage(reason)); err == nil {
			s.deliverLocked(data)
		}
	}

	for _, id := range append([]uuid.UUID(nil), s.order...) {
		m := s.members[id]
		s.removeLocked(id)
		m.conn.Close()
	}

	s.closeLocked()
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.members)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := make([]runtime.Participant, 0, len(s.order))
	for _, id := range s.order {
		participants = append(participants, s.members[id].participant)
	}

	return Snapshot{
		RoomID:       s.roomID,
		HostID:       s.hostID,
		Playback:     s.playback,
		Position:     s.playback.EffectivePosition(s.now()),
		Participants: participants,
		ChatLen:      s.transcript.Len(),
	}
}

func (s *Session) syncMessageLocked(p runtime.Participant) events.SyncMessage {
	entries := s.transcript.Entries()

	chat := make([]events.ChatMessage, 0, len(entries))
	for _, e := range entries {
		chat = append(chat, events.NewChatMessage(e))
	}

	return events.SyncMessage{
		Type:         events.TypeSync,
		HostID:       s.hostID,
		Self:         events.NewParticipantView(p),
		Playback:     events.NewPlaybackView(s.playback, s.now()),
		Chat:         chat,
		Participants: s.participantViewsLocked(),
	}
}

func (s *Session) participantsMessageLocked() events.ParticipantsMessage {
	return events.ParticipantsMessage{
		Type:         events.TypeParticipants,
		Participants: s.participantViewsLocked(),
	}
}

func (s *Session) participantViewsLocked() []events.ParticipantView {
	views := make([]events.ParticipantView, 0, len(s.order))
	for _, id := range s.order {
		views = append(views, events.NewParticipantView(s.members[id].participant))
	}

	return views
}

// sendLocked отправляет одному участнику. При ошибке участник отключается
func (s *Session) sendLocked(connID uuid.UUID, msg events.Outbound) error {
	m, ok := s.members[connID]
	if !ok {
		return ErrNotAttached
	}

	data, err := events.Encode(msg)
	if err != nil {
		slog.Error("encode outbound message", slog.Any(constant.Error, err))
		return err
	}

	if err = m.conn.Send(data); err != nil {
		s.dropLocked([]uuid.UUID{connID}, err)

		if !s.closed {
			s.broadcastLocked(s.participantsMessageLocked())
		}

		return err
	}

	return nil
}

// broadcastLocked рассылает всем. Неудачная отправка одному получателю отключает
// только его, остальные получают сообщение и обновленный список участников
func (s *Session) broadcastLocked(msg events.Outbound) {
	data, err := events.Encode(msg)
	if err != nil {
		slog.Error("encode outbound message", slog.Any(constant.Error, err))
		return
	}

	failed := s.deliverLocked(data)

	for len(failed) > 0 {
		s.dropLocked(failed, nil)

		if s.closed {
			return
		}

		data, err = events.Encode(s.participantsMessageLocked())
		if err != nil {
			slog.Error("encode participants message", slog.Any(constant.Error, err))
			return
		}

		failed = s.deliverLocked(data)
	}
}

func (s *Session) deliverLocked(data []byte) []uuid.UUID {
	var failed []uuid.UUID

	for _, id := range s.order {
		if err := s.members[id].conn.Send(data); err != nil {
			slog.Warn(
				"send to participant failed",
				slog.Any(constant.RoomID, s.roomID),
				slog.Any(constant.ConnID, id),
				slog.Any(constant.Error, err),
			)

			failed = append(failed, id)
		}
	}

	return failed
}

// dropLocked отключает участников, которым не удалось доставить сообщение
func (s *Session) dropLocked(ids []uuid.UUID, cause error) {
	for _, id := range ids {
		m, ok := s.members[id]
		if !ok {
			continue
		}

		s.removeLocked(id)
		m.conn.Close()
		metric.IncrementDroppedRecipients()

		slog.Warn(
			"participant dropped",
			slog.Any(constant.RoomID, s.roomID),
			slog.Any(constant.ConnID, id),
			slog.Any(constant.Error, cause),
		)
	}

	if len(s.members) == 0 {
		s.closeLocked()
	}
}

func (s *Session) removeLocked(connID uuid.UUID) {
	delete(s.members, connID)

	for i, id := range s.order {
		if id == connID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}

	s.closed = true

	slog.Info("room session closed", slog.Any(constant.RoomID, s.roomID))

	if s.onClose != nil {
		s.onClose(s)
	}
}
