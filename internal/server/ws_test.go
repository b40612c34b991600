package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylabs/chatrelay/internal/registry"
)

// sessionPair upgrades one connection against a throwaway server and
// returns the server-side session together with the client end.
func sessionPair(t *testing.T) (*wsSession, *websocket.Conn) {
	t.Helper()

	sessions := make(chan *wsSession, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessions <- newWSSession(conn, 1, nil)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case sess := <-sessions:
		return sess, client
	case <-time.After(2 * time.Second):
		t.Fatal("no session established")
		return nil, nil
	}
}

func TestCloseReleasesTransport(t *testing.T) {
	sess, _ := sessionPair(t)

	require.NoError(t, sess.Close(registry.CloseNormal, "bye"))
	assert.False(t, sess.Alive())

	_, err := sess.conn.NetConn().Write([]byte{0})
	assert.True(t, errors.Is(err, net.ErrClosed), "transport must be closed, got %v", err)
}

func TestCloseAfterClientDisconnectStillReleasesTransport(t *testing.T) {
	sess, client := sessionPair(t)

	// The client goes away first; the failed read marks the session dead
	// before any teardown runs.
	require.NoError(t, client.Close())
	sess.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := sess.Receive(context.Background())
	require.Error(t, err)
	require.False(t, sess.Alive())

	// Teardown still has to release the descriptor even though the
	// session was already marked dead.
	require.NoError(t, sess.Close(registry.CloseNormal, ""))
	_, err = sess.conn.NetConn().Write([]byte{0})
	assert.True(t, errors.Is(err, net.ErrClosed), "transport must be closed, got %v", err)
}

func TestCloseIsIdempotentOnTransport(t *testing.T) {
	sess, _ := sessionPair(t)

	require.NoError(t, sess.Close(registry.CloseNormal, ""))
	// A second close must not panic and must leave the conn closed.
	_ = sess.Close(registry.CloseNormal, "")
	_, err := sess.conn.NetConn().Write([]byte{0})
	assert.True(t, errors.Is(err, net.ErrClosed))
}
