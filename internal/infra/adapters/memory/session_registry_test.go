package memory

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
	"github.com/qrave1/SyncRoom/internal/domain/session"
)

type nopConn struct {
	id uuid.UUID

	mu     sync.Mutex
	count  int
	closed bool
}

func newNopConn() *nopConn { return &nopConn{id: uuid.New()} }

func (c *nopConn) ID() uuid.UUID { return c.id }

func (c *nopConn) Send([]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrSendFailed
	}
	c.count++
	return nil
}

func (c *nopConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func participant(hostID uuid.UUID, conn *nopConn) runtime.Participant {
	p := runtime.NewParticipant(uuid.New(), "user", hostID)
	p.ConnID = conn.ID()
	return p
}

func newTestRegistry() SessionRegistry {
	return NewSessionRegistry(session.Options{ChatCapacity: 10, MaxChatBytes: 2048})
}

func TestSessionRegistry_ConcurrentFirstJoin(t *testing.T) {
	reg := newTestRegistry()
	roomID, hostID := uuid.New(), uuid.New()

	const joiners = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions = make(map[*session.Session]struct{})
	)

	start := make(chan struct{})
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			conn := newNopConn()
			s, err := reg.Join(roomID, hostID, participant(hostID, conn), conn)
			require.NoError(t, err)

			mu.Lock()
			sessions[s] = struct{}{}
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, sessions, 1, "exactly one session for a brand-new room")
	assert.Equal(t, 1, reg.Len())

	s, ok := reg.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, joiners, s.Len())
}

func TestSessionRegistry_DestroyedOnLastLeaveAndRejoinedFresh(t *testing.T) {
	reg := newTestRegistry()
	roomID, hostID := uuid.New(), uuid.New()

	hostConn := newNopConn()
	host := runtime.NewParticipant(hostID, "host", hostID)
	host.ConnID = hostConn.ID()

	memberConn := newNopConn()
	member := participant(hostID, memberConn)

	first, err := reg.Join(roomID, hostID, host, hostConn)
	require.NoError(t, err)
	_, err = reg.Join(roomID, hostID, member, memberConn)
	require.NoError(t, err)

	_, err = first.Handle(host.ConnID, events.Seek{Time: 99})
	require.NoError(t, err)
	_, err = first.AppendChat(member.ConnID, "hi")
	require.NoError(t, err)

	reg.Leave(roomID, host.ConnID)
	_, ok := reg.Get(roomID)
	assert.True(t, ok, "session survives while participants remain")

	reg.Leave(roomID, member.ConnID)
	_, ok = reg.Get(roomID)
	assert.False(t, ok, "session destroyed when count reaches zero")
	assert.True(t, first.Closed())
	assert.Equal(t, 0, reg.Len())

	againConn := newNopConn()
	again, err := reg.Join(roomID, hostID, participant(hostID, againConn), againConn)
	require.NoError(t, err)

	assert.NotSame(t, first, again)

	snap := again.Snapshot()
	assert.Equal(t, runtime.StatusPaused, snap.Playback.Status)
	assert.Equal(t, 0.0, snap.Playback.Position)
	assert.Equal(t, 0, snap.ChatLen)
}

func TestSessionRegistry_RoomsAreIndependent(t *testing.T) {
	reg := newTestRegistry()
	hostID := uuid.New()

	c1, c2 := newNopConn(), newNopConn()

	s1, err := reg.Join(uuid.New(), hostID, participant(hostID, c1), c1)
	require.NoError(t, err)
	s2, err := reg.Join(uuid.New(), hostID, participant(hostID, c2), c2)
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, reg.Len())
}

func TestSessionRegistry_Close(t *testing.T) {
	reg := newTestRegistry()
	roomID, hostID := uuid.New(), uuid.New()

	c1, c2 := newNopConn(), newNopConn()
	_, err := reg.Join(roomID, hostID, participant(hostID, c1), c1)
	require.NoError(t, err)
	_, err = reg.Join(roomID, hostID, participant(hostID, c2), c2)
	require.NoError(t, err)

	reg.Close(roomID, "room deleted")

	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
	assert.Equal(t, 0, reg.Len())

	// Leave после закрытия - no-op
	reg.Leave(roomID, c1.ID())
}

func TestSessionRegistry_LeaveUnknownRoom(t *testing.T) {
	reg := newTestRegistry()

	assert.NotPanics(t, func() { reg.Leave(uuid.New(), uuid.New()) })
}

func TestWSConnectionRepository_DistinctUsers(t *testing.T) {
	repo := NewWSConnectionRepository()

	userID := uuid.New()
	roomID := uuid.New()

	tab1 := runtime.Participant{ConnID: uuid.New(), UserID: userID}
	tab2 := runtime.Participant{ConnID: uuid.New(), UserID: userID}
	other := runtime.Participant{ConnID: uuid.New(), UserID: uuid.New()}

	repo.Add(roomID, tab1)
	repo.Add(roomID, tab2)
	repo.Add(roomID, other)

	assert.Equal(t, 3, repo.Count())
	assert.ElementsMatch(t, []uuid.UUID{userID, other.UserID}, repo.GetAllConnected())

	repo.Remove(tab1.ConnID)
	repo.Remove(tab1.ConnID)

	assert.Equal(t, 2, repo.Count())
	assert.ElementsMatch(t, []uuid.UUID{userID, other.UserID}, repo.GetAllConnected())
}
