package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylabs/chatrelay/internal/model"
)

type fakeSession struct {
	mu        sync.Mutex
	id        string
	userID    int64
	alive     bool
	sent      []model.Message
	sendErr   error
	closeCode CloseCode
	closed    bool
}

func newFakeSession(id string, userID int64) *fakeSession {
	return &fakeSession{id: id, userID: userID, alive: true}
}

func (f *fakeSession) ID() string    { return f.id }
func (f *fakeSession) UserID() int64 { return f.userID }

func (f *fakeSession) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeSession) Send(msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSession) Close(code CloseCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	f.closed = true
	f.closeCode = code
	return nil
}

func (f *fakeSession) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

func (f *fakeSession) received() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestConnectEnforcesCap(t *testing.T) {
	r := New(5, nil)

	sessions := make([]*fakeSession, 0, 5)
	for i := 0; i < 5; i++ {
		s := newFakeSession(fmt.Sprintf("s%d", i), 1)
		require.True(t, r.Connect(s), "session %d should connect", i)
		sessions = append(sessions, s)
	}

	sixth := newFakeSession("s5", 1)
	assert.False(t, r.Connect(sixth), "sixth session must be rejected")
	assert.True(t, sixth.closed, "rejected session must be closed")
	assert.Equal(t, ClosePolicyViolation, sixth.closeCode)

	// No existing session was evicted.
	assert.Equal(t, 5, r.Count(1))
	for _, s := range sessions {
		assert.True(t, s.Alive())
	}
}

func TestConnectPrunesDeadSessions(t *testing.T) {
	r := New(2, nil)

	a := newFakeSession("a", 1)
	b := newFakeSession("b", 1)
	require.True(t, r.Connect(a))
	require.True(t, r.Connect(b))

	c := newFakeSession("c", 1)
	require.False(t, r.Connect(c), "cap reached")

	// Teardown happens elsewhere; the registry only observes it lazily.
	a.kill()
	d := newFakeSession("d", 1)
	assert.True(t, r.Connect(d), "dead session should be pruned on connect")
	assert.Equal(t, 2, r.Count(1))
}

func TestCapIsPerUser(t *testing.T) {
	r := New(1, nil)

	require.True(t, r.Connect(newFakeSession("a", 1)))
	assert.True(t, r.Connect(newFakeSession("b", 2)), "other users have their own cap")
	assert.False(t, r.Connect(newFakeSession("c", 1)))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := New(5, nil)

	s := newFakeSession("a", 1)
	require.True(t, r.Connect(s))

	r.Disconnect(s)
	assert.Equal(t, 0, r.Count(1))

	// Second disconnect and unknown session are no-ops.
	r.Disconnect(s)
	r.Disconnect(newFakeSession("ghost", 1))
}

func TestBroadcastReachesAllLiveSessions(t *testing.T) {
	r := New(5, nil)

	a := newFakeSession("a", 1)
	b := newFakeSession("b", 1)
	other := newFakeSession("c", 2)
	require.True(t, r.Connect(a))
	require.True(t, r.Connect(b))
	require.True(t, r.Connect(other))

	msg := model.Message{ID: 1, UserID: 1, Content: "hi"}
	r.Broadcast(1, msg)

	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, other.received(), "broadcast is scoped to one user")
}

func TestBroadcastSurvivesFailedSends(t *testing.T) {
	r := New(5, nil)

	broken := newFakeSession("a", 1)
	broken.sendErr = errors.New("write on closed connection")
	healthy := newFakeSession("b", 1)
	require.True(t, r.Connect(broken))
	require.True(t, r.Connect(healthy))

	r.Broadcast(1, model.Message{ID: 1, UserID: 1, Content: "hi"})

	assert.Len(t, healthy.received(), 1, "failed send must not block siblings")
}

func TestBroadcastSkipsDeadSessions(t *testing.T) {
	r := New(5, nil)

	dead := newFakeSession("a", 1)
	live := newFakeSession("b", 1)
	require.True(t, r.Connect(dead))
	require.True(t, r.Connect(live))
	dead.kill()

	r.Broadcast(1, model.Message{ID: 1, UserID: 1, Content: "hi"})

	assert.Empty(t, dead.received())
	assert.Len(t, live.received(), 1)
}

func TestCloseAllClosesEverySession(t *testing.T) {
	r := New(5, nil)

	a := newFakeSession("a", 1)
	b := newFakeSession("b", 1)
	c := newFakeSession("c", 2)
	require.True(t, r.Connect(a))
	require.True(t, r.Connect(b))
	require.True(t, r.Connect(c))

	r.CloseAll(CloseNormal, "shutting down")

	for _, s := range []*fakeSession{a, b, c} {
		assert.True(t, s.closed, "session %s must be closed", s.id)
		assert.Equal(t, CloseNormal, s.closeCode)
	}
	assert.Equal(t, 0, r.Count(1))
	assert.Equal(t, 0, r.Count(2))
}

func TestDisconnectOneLeavesSiblingsReachable(t *testing.T) {
	r := New(5, nil)

	a := newFakeSession("a", 1)
	b := newFakeSession("b", 1)
	require.True(t, r.Connect(a))
	require.True(t, r.Connect(b))

	r.Disconnect(a)
	r.Broadcast(1, model.Message{ID: 1, UserID: 1, Content: "hi"})

	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
}
