package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relaylabs/chatrelay/internal/model"
	"github.com/relaylabs/chatrelay/internal/registry"
	"github.com/relaylabs/chatrelay/internal/store"
)

// errSessionClosed is returned by writes on a session whose transport has
// already gone away.
var errSessionClosed = errors.New("session closed")

const closeWriteTimeout = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay has no cross-origin policy of its own; deployments put
	// one at the edge.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket establishes a session for ?user_id=N and runs its
// receive loop. Unknown users and over-cap connects get a policy close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID < 1 {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	_, lookupErr := s.store.GetUser(r.Context(), userID)
	if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
		s.logger.Error("user lookup failed", "user_id", userID, "error", lookupErr)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	sess := newWSSession(conn, userID, s.logger)
	// The transport is released here no matter how the session ends; a
	// disconnect mid-loop must not strand the descriptor.
	defer sess.Close(registry.CloseNormal, "")

	if lookupErr != nil {
		_ = sess.Close(registry.ClosePolicyViolation, "unknown user")
		return
	}

	if !s.registry.Connect(sess) {
		// The registry closed the session with a policy violation.
		return
	}

	s.dispatcher.Serve(r.Context(), sess)
}

// wsSession adapts a websocket connection to the session contract shared
// by the registry and the dispatcher.
type wsSession struct {
	id     string
	userID int64
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newWSSession(conn *websocket.Conn, userID int64, logger *slog.Logger) *wsSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsSession{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		logger: logger,
	}
}

func (s *wsSession) ID() string    { return s.id }
func (s *wsSession) UserID() int64 { return s.userID }

func (s *wsSession) Alive() bool {
	return !s.closed.Load()
}

// Receive blocks for the next text frame. Any read error marks the
// session dead and surfaces as a disconnect signal.
func (s *wsSession) Receive(_ context.Context) (string, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.closed.Store(true)
		return "", err
	}
	return string(data), nil
}

func (s *wsSession) Send(msg model.Message) error {
	return s.writeJSON(msg)
}

// SendError delivers an inline error frame; the session stays open.
func (s *wsSession) SendError(message string) error {
	return s.writeJSON(map[string]string{"error": message})
}

func (s *wsSession) writeJSON(payload any) error {
	if s.closed.Load() {
		return errSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(payload); err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

// Close tears the transport down, releasing its descriptor. The close
// frame is only written on the first call; the session may already be
// marked dead by a failed read or write, and the conn must be closed
// regardless.
func (s *wsSession) Close(code registry.CloseCode, reason string) error {
	if !s.closed.Swap(true) {
		s.writeMu.Lock()
		deadline := time.Now().Add(closeWriteTimeout)
		msg := websocket.FormatCloseMessage(int(code), reason)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			s.logger.Debug("write close frame failed", "session_id", s.id, "error", err)
		}
		s.writeMu.Unlock()
	}
	return s.conn.Close()
}
