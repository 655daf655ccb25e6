package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/events"
	"github.com/qrave1/SyncRoom/internal/domain/runtime"
)

type fakeConn struct {
	id uuid.UUID

	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail || c.closed {
		return domain.ErrSendFailed
	}

	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func (c *fakeConn) setFail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fail = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

type wireMsg struct {
	Type         string                   `json:"type"`
	Time         *float64                 `json:"time"`
	Message      string                   `json:"message"`
	SenderID     uuid.UUID                `json:"senderId"`
	HostID       uuid.UUID                `json:"hostId"`
	Self         events.ParticipantView   `json:"self"`
	Playback     events.PlaybackView      `json:"playback"`
	Chat         []events.ChatMessage     `json:"chat"`
	Participants []events.ParticipantView `json:"participants"`
}

func (c *fakeConn) received(t *testing.T) []wireMsg {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]wireMsg, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var m wireMsg
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}

	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = nil
}

// ofType оставляет сообщения указанных типов
func ofType(msgs []wireMsg, types ...string) []wireMsg {
	var out []wireMsg
	for _, m := range msgs {
		for _, typ := range types {
			if m.Type == typ {
				out = append(out, m)
			}
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type roomFixture struct {
	session *Session
	clock   *fakeClock
	hostID  uuid.UUID
	closes  int
}

func newRoom(t *testing.T, capacity int) *roomFixture {
	t.Helper()

	f := &roomFixture{clock: newFakeClock(), hostID: uuid.New()}
	f.session = New(uuid.New(), f.hostID, Options{
		ChatCapacity: capacity,
		MaxChatBytes: 2048,
		Now:          f.clock.Now,
		OnClose:      func(*Session) { f.closes++ },
	})

	return f
}

func (f *roomFixture) join(t *testing.T, userID uuid.UUID, name string) (runtime.Participant, *fakeConn) {
	t.Helper()

	conn := newFakeConn()
	p := runtime.NewParticipant(userID, name, f.hostID)
	p.ConnID = conn.ID()

	require.NoError(t, f.session.Attach(p, conn))

	return p, conn
}

func TestAttach_SendsSyncFirst(t *testing.T) {
	room := newRoom(t, 200)

	host, hostConn := room.join(t, room.hostID, "host")

	msgs := hostConn.received(t)
	require.NotEmpty(t, msgs)

	syncMsg := msgs[0]
	assert.Equal(t, events.TypeSync, syncMsg.Type)
	assert.Equal(t, room.hostID, syncMsg.HostID)
	assert.Equal(t, host.ConnID, syncMsg.Self.ID)
	assert.Equal(t, runtime.RoleHost, syncMsg.Self.Role)
	assert.Equal(t, runtime.StatusPaused, syncMsg.Playback.Status)
	assert.Equal(t, 0.0, syncMsg.Playback.Position)
	assert.Empty(t, syncMsg.Chat)
	require.Len(t, syncMsg.Participants, 1)

	_, memberConn := room.join(t, uuid.New(), "member")

	memberSync := memberConn.received(t)[0]
	assert.Equal(t, runtime.RoleMember, memberSync.Self.Role)
	assert.Len(t, memberSync.Participants, 2)

	// хост узнает о новом участнике
	presence := ofType(hostConn.received(t), events.TypeParticipants)
	require.NotEmpty(t, presence)
	assert.Len(t, presence[len(presence)-1].Participants, 2)
}

func TestHandle_HostControlConverges(t *testing.T) {
	room := newRoom(t, 200)

	host, hostConn := room.join(t, room.hostID, "host")
	_, m1 := room.join(t, uuid.New(), "m1")
	_, m2 := room.join(t, uuid.New(), "m2")

	for _, c := range []*fakeConn{hostConn, m1, m2} {
		c.reset()
	}

	_, err := room.session.Handle(host.ConnID, events.Play{})
	require.NoError(t, err)

	room.clock.Advance(5 * time.Second)

	res, err := room.session.Handle(host.ConnID, events.Seek{Time: 120})
	require.NoError(t, err)
	require.NotNil(t, res.Playback)
	assert.Equal(t, runtime.StatusPlaying, res.Playback.Status)
	assert.Equal(t, 120.0, res.Playback.Position)

	room.clock.Advance(2 * time.Second)

	st, err := room.session.ApplyControl(host.ConnID, events.Pause{})
	require.NoError(t, err)
	assert.Equal(t, runtime.StatusPaused, st.Status)
	assert.InDelta(t, 122.0, st.Position, 1e-9)

	var sequences [][]string
	for _, c := range []*fakeConn{hostConn, m1, m2} {
		var seq []string
		for _, m := range ofType(c.received(t), events.TypePlay, events.TypePause, events.TypeSeek) {
			seq = append(seq, m.Type)
		}
		sequences = append(sequences, seq)
	}

	want := []string{events.TypePlay, events.TypeSeek, events.TypePause}
	for _, seq := range sequences {
		assert.Equal(t, want, seq)
	}

	snap := room.session.Snapshot()
	assert.Equal(t, st, snap.Playback)
}

func TestHandle_NonHostControlRejected(t *testing.T) {
	room := newRoom(t, 200)

	host, hostConn := room.join(t, room.hostID, "host")
	member, memberConn := room.join(t, uuid.New(), "member")

	before := room.session.Snapshot().Playback

	for _, cmd := range []events.Inbound{events.Play{}, events.Pause{}, events.Seek{Time: 10}} {
		hostConn.reset()
		memberConn.reset()

		_, err := room.session.Handle(member.ConnID, cmd)
		require.ErrorIs(t, err, domain.ErrNotHost)

		assert.Equal(t, before, room.session.Snapshot().Playback)

		got := memberConn.received(t)
		require.Len(t, got, 1, "exactly one error for %s", cmd.Type())
		assert.Equal(t, events.TypeError, got[0].Type)
		assert.Equal(t, notHostText, got[0].Message)

		assert.Empty(t, hostConn.received(t))
	}

	// следующий play от хоста получают оба
	hostConn.reset()
	memberConn.reset()

	_, err := room.session.Handle(host.ConnID, events.Play{})
	require.NoError(t, err)

	assert.Len(t, ofType(hostConn.received(t), events.TypePlay), 1)
	assert.Len(t, ofType(memberConn.received(t), events.TypePlay), 1)
}

func TestHandle_SeekWhilePaused(t *testing.T) {
	room := newRoom(t, 200)

	host, hostConn := room.join(t, room.hostID, "host")
	_, memberConn := room.join(t, uuid.New(), "member")

	_, err := room.session.Handle(host.ConnID, events.Seek{Time: 42.5})
	require.NoError(t, err)

	for _, c := range []*fakeConn{hostConn, memberConn} {
		seeks := ofType(c.received(t), events.TypeSeek)
		require.Len(t, seeks, 1)
		require.NotNil(t, seeks[0].Time)
		assert.Equal(t, 42.5, *seeks[0].Time)
	}

	room.clock.Advance(time.Hour)

	snap := room.session.Snapshot()
	assert.Equal(t, runtime.StatusPaused, snap.Playback.Status)
	assert.Equal(t, 42.5, snap.Position)
}

func TestHandle_ChatBroadcastIncludesSender(t *testing.T) {
	room := newRoom(t, 200)

	_, hostConn := room.join(t, room.hostID, "host")
	member, memberConn := room.join(t, uuid.New(), "member")

	entry, err := room.session.AppendChat(member.ConnID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", entry.Text)
	assert.Equal(t, member.UserID, entry.SenderID)

	for _, c := range []*fakeConn{hostConn, memberConn} {
		chats := ofType(c.received(t), events.TypeChat)
		require.Len(t, chats, 1)
		assert.Equal(t, "hello", chats[0].Message)
		assert.Equal(t, member.UserID, chats[0].SenderID)
	}
}

func TestHandle_ChatValidation(t *testing.T) {
	room := newRoom(t, 200)

	member, memberConn := room.join(t, uuid.New(), "member")
	memberConn.reset()

	_, err := room.session.AppendChat(member.ConnID, "   ")
	require.ErrorIs(t, err, domain.ErrMalformedMessage)

	_, err = room.session.AppendChat(member.ConnID, string(make([]byte, 2049)))
	require.Error(t, err)

	long := make([]rune, 2049)
	for i := range long {
		long[i] = 'a'
	}
	_, err = room.session.AppendChat(member.ConnID, string(long))
	require.ErrorIs(t, err, domain.ErrChatTooLong)

	errs := ofType(memberConn.received(t), events.TypeError)
	assert.Len(t, errs, 3)
	assert.Equal(t, 0, room.session.Snapshot().ChatLen)
}

func TestLateJoiner_GetsRetainedTranscriptAndLatestPlayback(t *testing.T) {
	const capacity = 5

	room := newRoom(t, capacity)
	host, _ := room.join(t, room.hostID, "host")

	for i := 0; i < 8; i++ {
		_, err := room.session.AppendChat(host.ConnID, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	_, err := room.session.Handle(host.ConnID, events.Play{})
	require.NoError(t, err)
	room.clock.Advance(3 * time.Second)
	_, err = room.session.Handle(host.ConnID, events.Seek{Time: 60})
	require.NoError(t, err)
	room.clock.Advance(2 * time.Second)

	_, lateConn := room.join(t, uuid.New(), "late")

	syncMsg := lateConn.received(t)[0]
	require.Equal(t, events.TypeSync, syncMsg.Type)

	require.Len(t, syncMsg.Chat, capacity)
	for i, m := range syncMsg.Chat {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+3), m.Message)
	}

	assert.Equal(t, runtime.StatusPlaying, syncMsg.Playback.Status)
	assert.InDelta(t, 62.0, syncMsg.Playback.Position, 1e-9)
}

func TestSyncRequest_OnlyToSender(t *testing.T) {
	room := newRoom(t, 200)

	_, hostConn := room.join(t, room.hostID, "host")
	member, memberConn := room.join(t, uuid.New(), "member")

	hostConn.reset()
	memberConn.reset()

	_, err := room.session.Handle(member.ConnID, events.SyncRequest{})
	require.NoError(t, err)

	assert.Len(t, ofType(memberConn.received(t), events.TypeSync), 1)
	assert.Empty(t, hostConn.received(t))
}

func TestBroadcast_FailedRecipientIsDetached(t *testing.T) {
	room := newRoom(t, 200)

	host, hostConn := room.join(t, room.hostID, "host")
	_, broken := room.join(t, uuid.New(), "broken")
	_, healthy := room.join(t, uuid.New(), "healthy")

	broken.setFail()
	hostConn.reset()
	healthy.reset()

	_, err := room.session.Handle(host.ConnID, events.Play{})
	require.NoError(t, err, "one failed recipient does not fail the command")

	assert.True(t, broken.isClosed())
	assert.Equal(t, 2, room.session.Len())

	for _, c := range []*fakeConn{hostConn, healthy} {
		got := c.received(t)
		assert.Len(t, ofType(got, events.TypePlay), 1)

		presence := ofType(got, events.TypeParticipants)
		require.NotEmpty(t, presence)
		assert.Len(t, presence[len(presence)-1].Participants, 2)
	}
}

func TestDetach_LastParticipantClosesSession(t *testing.T) {
	room := newRoom(t, 200)

	host, _ := room.join(t, room.hostID, "host")
	member, memberConn := room.join(t, uuid.New(), "member")

	assert.False(t, room.session.Detach(host.ConnID))
	assert.Equal(t, 0, room.closes)

	// хост ушел, управление не передается
	memberConn.reset()
	_, err := room.session.Handle(member.ConnID, events.Play{})
	require.ErrorIs(t, err, domain.ErrNotHost)

	assert.True(t, room.session.Detach(member.ConnID))
	assert.Equal(t, 1, room.closes)
	assert.True(t, room.session.Closed())

	// повторный Detach ничего не ломает
	assert.True(t, room.session.Detach(member.ConnID))
	assert.Equal(t, 1, room.closes)

	conn := newFakeConn()
	err = room.session.Attach(runtime.NewParticipant(uuid.New(), "x", room.hostID), conn)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestHandle_UnknownConnection(t *testing.T) {
	room := newRoom(t, 200)
	room.join(t, room.hostID, "host")

	_, err := room.session.Handle(uuid.New(), events.Play{})
	require.ErrorIs(t, err, ErrNotAttached)
}

func TestReject_SendsErrorToSenderOnly(t *testing.T) {
	room := newRoom(t, 200)

	_, hostConn := room.join(t, room.hostID, "host")
	member, memberConn := room.join(t, uuid.New(), "member")

	hostConn.reset()
	memberConn.reset()

	_, err := events.Parse([]byte(`{"type":"rewind"}`))
	require.Error(t, err)

	room.session.Reject(member.ConnID, err)

	got := memberConn.received(t)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeError, got[0].Type)
	assert.Empty(t, hostConn.received(t))
}

func TestClose_DisconnectsEveryone(t *testing.T) {
	room := newRoom(t, 200)

	_, c1 := room.join(t, room.hostID, "host")
	_, c2 := room.join(t, uuid.New(), "member")

	room.session.Close("room deleted")

	assert.True(t, c1.isClosed())
	assert.True(t, c2.isClosed())
	assert.Equal(t, 0, room.session.Len())
	assert.Equal(t, 1, room.closes)
}

func TestHandle_ConcurrentHostCommandsAreSerialized(t *testing.T) {
	room := newRoom(t, 50)

	host, hostConn := room.join(t, room.hostID, "host")
	_, m1 := room.join(t, uuid.New(), "m1")
	_, m2 := room.join(t, uuid.New(), "m2")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()
			_, _ = room.session.Handle(host.ConnID, events.Seek{Time: float64(i)})
		}(i)

		go func(i int) {
			defer wg.Done()
			_, _ = room.session.AppendChat(host.ConnID, fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()

	// все получатели видят один и тот же порядок команд
	seq := func(c *fakeConn) []float64 {
		var out []float64
		for _, m := range ofType(c.received(t), events.TypeSeek) {
			out = append(out, *m.Time)
		}
		return out
	}

	hostSeq := seq(hostConn)
	require.Len(t, hostSeq, 20)
	assert.Equal(t, hostSeq, seq(m1))
	assert.Equal(t, hostSeq, seq(m2))

	// итоговое состояние соответствует последней разосланной команде
	assert.Equal(t, hostSeq[len(hostSeq)-1], room.session.Snapshot().Playback.Position)
}
