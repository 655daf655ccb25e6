package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/session"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/memory"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

type stubAuth map[string]models.User

func (a stubAuth) Authenticate(_ context.Context, credential string) (*models.User, error) {
	u, ok := a[credential]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	return &u, nil
}

type stubRooms struct {
	room    models.RoomMetadata
	members map[uuid.UUID]bool
}

func (r *stubRooms) GetMetadata(_ context.Context, id uuid.UUID) (*models.RoomMetadata, error) {
	if id != r.room.ID {
		return nil, domain.ErrRoomNotFound
	}

	m := r.room
	return &m, nil
}

func (r *stubRooms) IsMember(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return r.members[userID], nil
}

type wsEnv struct {
	srv      *httptest.Server
	registry memory.SessionRegistry
	roomID   uuid.UUID
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()

	host := models.User{ID: uuid.New(), Username: "host"}
	member := models.User{ID: uuid.New(), Username: "member"}
	outsider := models.User{ID: uuid.New(), Username: "outsider"}

	roomID := uuid.New()

	rooms := &stubRooms{
		room:    models.RoomMetadata{ID: roomID, HostID: host.ID, Name: "cinema"},
		members: map[uuid.UUID]bool{host.ID: true, member.ID: true},
	}

	auth := stubAuth{"host": host, "member": member, "outsider": outsider}

	registry := memory.NewSessionRegistry(session.Options{ChatCapacity: 20, MaxChatBytes: 2048})

	cfg := &config.Config{
		Debug: true,
		WebSocket: config.WebSocketConfig{
			PingInterval:    time.Second,
			PongWait:        5 * time.Second,
			WriteWait:       time.Second,
			MaxMessageBytes: config.MinMessageBytes(2048),
			SendBuffer:      16,
		},
	}

	uc := usecase.NewSyncUsecase(true, auth, rooms, nil, registry, memory.NewWSConnectionRepository())

	e := echo.New()
	e.GET("/api/v1/rooms/:id/ws", NewWebSocketHandler(cfg, uc).Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		registry.CloseAll("")
		srv.Close()
	})

	return &wsEnv{srv: srv, registry: registry, roomID: roomID}
}

func (env *wsEnv) url(roomID string, token string) string {
	return "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/rooms/" + roomID + "/ws?token=" + token
}

func (env *wsEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(env.url(env.roomID.String(), token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

type frame struct {
	Type         string           `json:"type"`
	Time         *float64         `json:"time"`
	Message      string           `json:"message"`
	SenderName   string           `json:"senderName"`
	HostID       uuid.UUID        `json:"hostId"`
	Playback     map[string]any   `json:"playback"`
	Chat         []map[string]any `json:"chat"`
	Participants []map[string]any `json:"participants"`
}

// next возвращает следующее сообщение, пропуская обновления списка участников
func next(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()

	for {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))

		var f frame
		require.NoError(t, ws.ReadJSON(&f))

		if f.Type != events.TypeParticipants {
			return f
		}
	}
}

func TestWebSocketHandler_Refusals(t *testing.T) {
	env := newWSEnv(t)

	tests := []struct {
		name   string
		room   string
		token  string
		status int
	}{
		{name: "bad credential", room: env.roomID.String(), token: "nobody", status: http.StatusUnauthorized},
		{name: "unknown room", room: uuid.NewString(), token: "member", status: http.StatusNotFound},
		{name: "invalid room id", room: "not-a-uuid", token: "member", status: http.StatusNotFound},
		{name: "not a member", room: env.roomID.String(), token: "outsider", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(env.url(tt.room, tt.token), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	assert.Equal(t, 0, env.registry.Len())
}

func TestWebSocketHandler_WatchParty(t *testing.T) {
	env := newWSEnv(t)

	host := env.dial(t, "host")
	hostSync := next(t, host)
	assert.Equal(t, events.TypeSync, hostSync.Type)
	assert.Equal(t, "paused", hostSync.Playback["status"])

	member := env.dial(t, "member")
	memberSync := next(t, member)
	assert.Equal(t, events.TypeSync, memberSync.Type)
	assert.Len(t, memberSync.Participants, 2)

	require.NoError(t, host.WriteJSON(map[string]any{"type": "seek", "time": 30}))

	for _, ws := range []*websocket.Conn{host, member} {
		f := next(t, ws)
		assert.Equal(t, events.TypeSeek, f.Type)
		require.NotNil(t, f.Time)
		assert.Equal(t, 30.0, *f.Time)
	}

	require.NoError(t, member.WriteJSON(map[string]any{"type": "play"}))

	rejected := next(t, member)
	assert.Equal(t, events.TypeError, rejected.Type)
	assert.Equal(t, "You are not the host, you cannot control playback.", rejected.Message)

	require.NoError(t, member.WriteJSON(map[string]any{"type": "chat", "message": "popcorn?"}))

	// хост не получил ничего после seek, кроме чата
	for _, ws := range []*websocket.Conn{host, member} {
		f := next(t, ws)
		assert.Equal(t, events.TypeChat, f.Type)
		assert.Equal(t, "popcorn?", f.Message)
		assert.Equal(t, "member", f.SenderName)
	}

	require.NoError(t, member.WriteMessage(websocket.TextMessage, []byte("{oops")))
	assert.Equal(t, events.TypeError, next(t, member).Type)

	require.NoError(t, member.WriteJSON(map[string]any{"type": "sync"}))
	resync := next(t, member)
	assert.Equal(t, events.TypeSync, resync.Type)
	assert.Equal(t, 30.0, resync.Playback["position"])
	require.Len(t, resync.Chat, 1)
}

func TestWebSocketHandler_RoomDestroyedAfterLastLeave(t *testing.T) {
	env := newWSEnv(t)

	ws := env.dial(t, "member")
	next(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "chat", "message": "hello"}))
	assert.Equal(t, events.TypeChat, next(t, ws).Type)

	require.NoError(t, ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))
	_ = ws.Close()

	require.Eventually(t, func() bool {
		return env.registry.Len() == 0
	}, 3*time.Second, 10*time.Millisecond)

	again := env.dial(t, "member")
	fresh := next(t, again)
	assert.Equal(t, events.TypeSync, fresh.Type)
	assert.Empty(t, fresh.Chat, "rejoined room starts with an empty transcript")
	assert.Equal(t, 0.0, fresh.Playback["position"])
}

func TestWebSocketHandler_OversizedMessagesKeepConnection(t *testing.T) {
	env := newWSEnv(t)

	ws := env.dial(t, "member")
	next(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "chat", "message": strings.Repeat("a", 3000)}))
	tooLong := next(t, ws)
	assert.Equal(t, events.TypeError, tooLong.Type)
	assert.Contains(t, tooLong.Message, domain.ErrChatTooLong.Error())

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "chat", "message": strings.Repeat("a", 20000)}))
	tooLarge := next(t, ws)
	assert.Equal(t, events.TypeError, tooLarge.Type)
	assert.Contains(t, tooLarge.Message, "too large")

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "chat", "message": "still here"}))
	f := next(t, ws)
	assert.Equal(t, events.TypeChat, f.Type)
	assert.Equal(t, "still here", f.Message)
	assert.Equal(t, 1, env.registry.Len())
}
