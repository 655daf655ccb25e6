package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/application/metric"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

// WebsocketConnectionRepository учитывает активные sync-соединения процесса
type WebsocketConnectionRepository interface {
	Add(roomID uuid.UUID, p runtime.Participant)
	Remove(connID uuid.UUID)

	// GetAllConnected возвращает пользователей, у которых есть хотя бы одно соединение
	GetAllConnected() []uuid.UUID
	Count() int
}

type wsConnection struct {
	roomID      uuid.UUID
	participant runtime.Participant
}

type wsConnectionRepository struct {
	// wsConns хранит map[conn_id]*wsConnection
	wsConns map[uuid.UUID]*wsConnection

	mu sync.RWMutex
}

func NewWSConnectionRepository() WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns: make(map[uuid.UUID]*wsConnection, 10),
	}
}

func (w *wsConnectionRepository) Add(roomID uuid.UUID, p runtime.Participant) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.wsConns[p.ConnID]; exists {
		return
	}

	w.wsConns[p.ConnID] = &wsConnection{roomID: roomID, participant: p}

	// Увеличиваем счетчик активных WS соединений
	metric.IncrementWSActiveConnections()
}

func (w *wsConnectionRepository) Remove(connID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Проверяем, существует ли соединение перед удалением
	if _, exists := w.wsConns[connID]; exists {
		delete(w.wsConns, connID)

		// Уменьшаем счетчик активных WS соединений
		metric.DecrementWSActiveConnections()
	}
}

func (w *wsConnectionRepository) GetAllConnected() []uuid.UUID {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{}, len(w.wsConns))
	userIDs := make([]uuid.UUID, 0, len(w.wsConns))

	for _, c := range w.wsConns {
		if _, ok := seen[c.participant.UserID]; ok {
			continue
		}

		seen[c.participant.UserID] = struct{}{}
		userIDs = append(userIDs, c.participant.UserID)
	}

	return userIDs
}

func (w *wsConnectionRepository) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.wsConns)
}
