package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/relaylabs/chatrelay/internal/registry"
)

// Admission outcomes reported by Accept.
var (
	// ErrRateLimited is a soft rejection: the caller reports it to the
	// client and the session stays open.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrClosed means the queue was shut down; the relay is stopping and
	// the message is dropped, not rate limited.
	ErrClosed = errors.New("gateway closed")
)

// Task is one accepted inbound message waiting for its batched durable
// write. The queue owns it until the persister drains it.
type Task struct {
	UserID    int64
	Content   string
	Timestamp time.Time
	Session   registry.Session
}

// Config holds admission settings.
type Config struct {
	// MaxPerWindow is the number of messages one user may send per window.
	MaxPerWindow int
	// Window is the rate-limit window length.
	Window time.Duration
	// QueueCapacity bounds the hand-off queue to the persister.
	QueueCapacity int
}

// Gateway admits inbound messages into the persistence queue.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
	queue  *BoundedBuffer[Task]

	mu          sync.Mutex
	counts      map[int64]int
	windowStart time.Time

	now func() time.Time // injectable for tests
}

// New creates a gateway with an empty rate window starting now.
func New(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:    cfg,
		logger: logger,
		queue:  NewBoundedBuffer[Task](cfg.QueueCapacity),
		counts: make(map[int64]int),
		now:    time.Now,
	}
	g.windowStart = g.now()
	return g
}

// Accept admits one task or reports why it cannot: ErrRateLimited for a
// rate rejection, ErrClosed when the queue has been shut down. On
// admission the task is enqueued FIFO; a full queue blocks the caller
// until the persister drains (backpressure), so Accept may suspend.
//
// The window is gateway-global: the first message after the boundary,
// from any user, resets every user's counter.
func (g *Gateway) Accept(task Task) error {
	g.mu.Lock()
	now := g.now()
	if now.Sub(g.windowStart) >= g.cfg.Window {
		clear(g.counts)
		g.windowStart = now
	}

	if g.counts[task.UserID] >= g.cfg.MaxPerWindow {
		g.mu.Unlock()
		g.logger.Debug("message rejected by rate limit", "user_id", task.UserID)
		return ErrRateLimited
	}
	g.counts[task.UserID]++
	g.mu.Unlock()

	if !g.queue.Put(task) {
		return ErrClosed
	}
	return nil
}

// Queue exposes the hand-off buffer for the batch persister.
func (g *Gateway) Queue() *BoundedBuffer[Task] {
	return g.queue
}

// Close shuts the queue down; blocked Accept callers are released.
func (g *Gateway) Close() {
	g.queue.Close()
}
