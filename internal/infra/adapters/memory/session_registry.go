package memory

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/application/metric"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
	"github.com/qrave1/SyncRoom/internal/domain/session"
)

// SessionRegistry - живые сессии комнат процесса.
// Сессия создается при первом подключении и удаляется, когда уходит последний участник
type SessionRegistry interface {
	Join(roomID, hostID uuid.UUID, p runtime.Participant, conn session.Conn) (*session.Session, error)
	Leave(roomID, connID uuid.UUID)

	Get(roomID uuid.UUID) (*session.Session, bool)
	Len() int

	// Close отключает всех участников комнаты
	Close(roomID uuid.UUID, reason string)
	CloseAll(reason string)
}

type sessionRegistry struct {
	opts session.Options

	// sessions хранит map[room_id]*session.Session
	sessions map[uuid.UUID]*session.Session
	mu       sync.Mutex
}

func NewSessionRegistry(opts session.Options) SessionRegistry {
	return &sessionRegistry{
		opts:     opts,
		sessions: make(map[uuid.UUID]*session.Session),
	}
}

func (r *sessionRegistry) Join(roomID, hostID uuid.UUID, p runtime.Participant, conn session.Conn) (*session.Session, error) {
	for {
		s := r.getOrCreate(roomID, hostID)

		err := s.Attach(p, conn)
		if errors.Is(err, session.ErrSessionClosed) {
			// сессия опустела между getOrCreate и Attach
			r.remove(s)
			continue
		}

		if err != nil {
			return nil, err
		}

		return s, nil
	}
}

func (r *sessionRegistry) Leave(roomID, connID uuid.UUID) {
	s, ok := r.Get(roomID)
	if !ok {
		return
	}

	// при опустевшей сессии OnClose сам уберет ее из реестра
	s.Detach(connID)
}

func (r *sessionRegistry) Get(roomID uuid.UUID) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[roomID]
	return s, ok
}

func (r *sessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

func (r *sessionRegistry) Close(roomID uuid.UUID, reason string) {
	s, ok := r.Get(roomID)
	if !ok {
		return
	}

	s.Close(reason)
}

func (r *sessionRegistry) CloseAll(reason string) {
	r.mu.Lock()
	all := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close(reason)
	}
}

func (r *sessionRegistry) getOrCreate(roomID, hostID uuid.UUID) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[roomID]; ok {
		return s
	}

	opts := r.opts
	opts.OnClose = r.remove

	s := session.New(roomID, hostID, opts)
	r.sessions[roomID] = s

	metric.IncrementActiveRooms()
	slog.Info("room session created", slog.Any(constant.RoomID, roomID))

	return s
}

// remove удаляет сессию, только если в реестре лежит именно она
func (r *sessionRegistry) remove(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.RoomID()]; ok && cur == s {
		delete(r.sessions, s.RoomID())
		metric.DecrementActiveRooms()
	}
}
