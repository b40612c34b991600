package registry

import (
	"log/slog"
	"sync"

	"github.com/relaylabs/chatrelay/internal/model"
)

// CloseCode mirrors the RFC 6455 close codes the relay uses.
type CloseCode int

const (
	// CloseNormal signals an orderly shutdown.
	CloseNormal CloseCode = 1000
	// ClosePolicyViolation signals a policy rejection: over the session
	// cap or an unknown user. Clients must not auto-reconnect on it.
	ClosePolicyViolation CloseCode = 1008
)

// Session is one live duplex channel bound to a single user. The registry
// holds the handle without owning it; Alive reports whether the transport
// underneath is still usable.
type Session interface {
	ID() string
	UserID() int64
	Alive() bool
	Send(msg model.Message) error
	Close(code CloseCode, reason string) error
}

// Registry multiplexes live sessions per user under a per-user cap.
type Registry struct {
	maxPerUser int
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[int64][]Session
}

// New creates a registry enforcing the given per-user session cap.
func New(maxPerUser int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		maxPerUser: maxPerUser,
		logger:     logger,
		sessions:   make(map[int64][]Session),
	}
}

// Connect registers a session under its user. Dead sessions recorded for
// the user are pruned first. If the live count would exceed the cap the
// just-added session is closed with a policy violation and Connect
// returns false; existing sessions are never evicted.
func (r *Registry) Connect(s Session) bool {
	userID := s.UserID()

	r.mu.Lock()
	live := pruneDead(r.sessions[userID])
	over := len(live)+1 > r.maxPerUser
	if !over {
		live = append(live, s)
	}
	r.setLocked(userID, live)
	r.mu.Unlock()

	if over {
		if err := s.Close(ClosePolicyViolation, "too many sessions"); err != nil {
			r.logger.Debug("close rejected session", "user_id", userID, "error", err)
		}
		r.logger.Warn("session cap reached", "user_id", userID, "cap", r.maxPerUser)
		return false
	}

	r.logger.Debug("session connected", "user_id", userID, "session_id", s.ID(), "live", len(live))
	return true
}

// Disconnect removes the session from the user's set. It is idempotent:
// a session already pruned or never registered is a no-op.
func (r *Registry) Disconnect(s Session) {
	userID := s.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.sessions[userID]
	for i, other := range live {
		if other.ID() == s.ID() {
			live = append(live[:i], live[i+1:]...)
			break
		}
	}
	r.setLocked(userID, live)
}

// Broadcast delivers a message to every live session for the user.
// Delivery is best-effort per session: one dead peer never blocks its
// siblings and failures do not propagate past the registry.
func (r *Registry) Broadcast(userID int64, msg model.Message) {
	r.mu.Lock()
	live := r.sessions[userID]
	targets := make([]Session, 0, len(live))
	for _, s := range live {
		if s.Alive() {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			r.logger.Debug("broadcast send failed", "user_id", userID, "session_id", s.ID(), "error", err)
		}
	}
}

// CloseAll closes every registered session and empties the registry.
// Hijacked connections are invisible to the HTTP server's shutdown, so
// this is how receive loops observe a stop and exit.
func (r *Registry) CloseAll(code CloseCode, reason string) {
	r.mu.Lock()
	var all []Session
	for _, sessions := range r.sessions {
		all = append(all, sessions...)
	}
	r.sessions = make(map[int64][]Session)
	r.mu.Unlock()

	for _, s := range all {
		if err := s.Close(code, reason); err != nil {
			r.logger.Debug("close session", "session_id", s.ID(), "error", err)
		}
	}
	if len(all) > 0 {
		r.logger.Info("closed all sessions", "count", len(all))
	}
}

// Count returns the number of live sessions currently recorded for the
// user.
func (r *Registry) Count(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions[userID] {
		if s.Alive() {
			n++
		}
	}
	return n
}

func (r *Registry) setLocked(userID int64, live []Session) {
	if len(live) == 0 {
		delete(r.sessions, userID)
		return
	}
	r.sessions[userID] = live
}

func pruneDead(sessions []Session) []Session {
	live := sessions[:0]
	for _, s := range sessions {
		if s.Alive() {
			live = append(live, s)
		}
	}
	return live
}
