package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/relaylabs/chatrelay/internal/gateway"
	"github.com/relaylabs/chatrelay/internal/model"
	"github.com/relaylabs/chatrelay/internal/registry"
	"github.com/relaylabs/chatrelay/internal/responder"
)

// Store is the synchronous single-record append used on the reply path.
// The write is durable on return and carries the assigned id.
type Store interface {
	AppendMessage(ctx context.Context, msg model.Message) (model.Message, error)
}

// ClientConn is one live client session as seen by the dispatcher:
// a registry handle plus the inbound side of the transport.
type ClientConn interface {
	registry.Session

	// Receive blocks for the next inbound text frame. Any error is a
	// disconnect signal; the session is not recoverable afterwards.
	Receive(ctx context.Context) (string, error)

	// SendError delivers an inline error frame to this session only.
	SendError(message string) error
}

// Dispatcher wires registry, gateway, storage and responder together.
type Dispatcher struct {
	registry  *registry.Registry
	gateway   *gateway.Gateway
	store     Store
	responder responder.Responder
	logger    *slog.Logger

	now func() time.Time // injectable for tests
}

// New creates a dispatcher.
func New(reg *registry.Registry, gw *gateway.Gateway, store Store, resp responder.Responder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  reg,
		gateway:   gw,
		store:     store,
		responder: resp,
		logger:    logger,
		now:       time.Now,
	}
}

// Serve runs the session receive loop until the client disconnects, then
// unregisters the session. Messages from one session are processed
// strictly in receipt order; no other session is affected by this one's
// failures.
func (d *Dispatcher) Serve(ctx context.Context, conn ClientConn) {
	defer d.registry.Disconnect(conn)

	for {
		content, err := conn.Receive(ctx)
		if err != nil {
			d.logger.Debug("session disconnected",
				"user_id", conn.UserID(),
				"session_id", conn.ID(),
				"reason", err,
			)
			return
		}
		d.handleMessage(ctx, conn, content)
	}
}

// handleMessage runs one inbound frame through admission, persistence and
// reply delivery. Failures are absorbed: they are logged and the session
// stays open.
func (d *Dispatcher) handleMessage(ctx context.Context, conn ClientConn, content string) {
	userID := conn.UserID()

	if !model.ValidContent(content) {
		if err := conn.SendError("Message exceeds 500 character limit"); err != nil {
			d.logger.Debug("send length error failed", "user_id", userID, "error", err)
		}
		return
	}

	task := gateway.Task{
		UserID:    userID,
		Content:   content,
		Timestamp: d.now().UTC(),
		Session:   conn,
	}
	if err := d.gateway.Accept(task); err != nil {
		if errors.Is(err, gateway.ErrClosed) {
			d.logger.Warn("message dropped, relay shutting down", "user_id", userID)
			return
		}
		if serr := conn.SendError("Rate limit exceeded"); serr != nil {
			d.logger.Debug("send rate limit error failed", "user_id", userID, "error", serr)
		}
		return
	}

	userMsg, err := d.store.AppendMessage(ctx, model.Message{
		UserID:     userID,
		Content:    content,
		IsFromUser: true,
	})
	if err != nil {
		d.logger.Error("persist user message failed", "user_id", userID, "error", err)
		return
	}
	d.registry.Broadcast(userID, userMsg)

	replyText, err := d.responder.Generate(ctx, content)
	if err != nil {
		d.logger.Error("generate reply failed", "user_id", userID, "error", err)
		return
	}

	replyMsg, err := d.store.AppendMessage(ctx, model.Message{
		UserID:     userID,
		Content:    replyText,
		IsFromUser: false,
	})
	if err != nil {
		d.logger.Error("persist reply failed", "user_id", userID, "error", err)
		return
	}
	d.registry.Broadcast(userID, replyMsg)
}
