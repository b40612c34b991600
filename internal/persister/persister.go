package persister

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaylabs/chatrelay/internal/gateway"
	"github.com/relaylabs/chatrelay/internal/model"
)

// Sink is the durable multi-record append consumed by the persister.
// Records are durable on return, with ids assigned by storage.
type Sink interface {
	AppendMessages(ctx context.Context, msgs []model.Message) ([]model.Message, error)
}

// Config holds batch persister settings.
type Config struct {
	// BatchSize bounds how many tasks one drain cycle may collect.
	BatchSize int
	// IdleDelay is how long the loop sleeps after an empty drain.
	IdleDelay time.Duration
}

// Metrics counts persister activity.
type Metrics struct {
	Batches   int64
	Persisted int64
	Lost      int64
	Errors    int64
}

// Persister is the background worker draining the gateway queue.
type Persister struct {
	cfg    Config
	input  *gateway.BoundedBuffer[gateway.Task]
	sink   Sink
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics Metrics
}

// New creates a persister reading from the given queue.
func New(cfg Config, input *gateway.BoundedBuffer[gateway.Task], sink Sink, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		cfg:    cfg,
		input:  input,
		sink:   sink,
		logger: logger,
	}
}

// Start launches the drain loop.
func (p *Persister) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.drainLoop()

	p.logger.Info("batch persister started",
		"batch_size", p.cfg.BatchSize,
		"idle_delay", p.cfg.IdleDelay,
	)
	return nil
}

// Stop gracefully shuts down the persister, flushing whatever is still
// queued before returning.
func (p *Persister) Stop(ctx context.Context) error {
	p.logger.Info("stopping batch persister")

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("batch persister stopped")
	case <-ctx.Done():
		p.logger.Warn("batch persister stop timed out")
		return ctx.Err()
	}

	// Final drain so accepted tasks are not stranded in the queue.
	for {
		batch := p.input.DrainUpTo(p.cfg.BatchSize)
		if len(batch) == 0 {
			return nil
		}
		p.persist(context.Background(), batch)
	}
}

// Stats returns a snapshot of the persister metrics.
func (p *Persister) Stats() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// drainLoop repeatedly collects up to BatchSize tasks without blocking.
// An empty drain sleeps for IdleDelay so the loop never busy-spins.
func (p *Persister) drainLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		batch := p.input.DrainUpTo(p.cfg.BatchSize)
		if len(batch) == 0 {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.cfg.IdleDelay):
			}
			continue
		}

		p.persist(p.ctx, batch)
	}
}

// persist commits one batch as a single durable write. On failure the
// whole batch is lost for this cycle.
func (p *Persister) persist(ctx context.Context, batch []gateway.Task) {
	msgs := make([]model.Message, len(batch))
	for i, task := range batch {
		msgs[i] = model.Message{
			UserID:     task.UserID,
			Content:    task.Content,
			IsFromUser: true,
			Timestamp:  task.Timestamp,
		}
	}

	start := time.Now()
	written, err := p.sink.AppendMessages(ctx, msgs)
	if err != nil {
		p.logger.Error("batch write failed, batch lost", "count", len(batch), "error", err)
		p.mu.Lock()
		p.metrics.Errors++
		p.metrics.Lost += int64(len(batch))
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.metrics.Batches++
	p.metrics.Persisted += int64(len(written))
	p.mu.Unlock()

	p.logger.Debug("flushed batch", "count", len(written), "duration", time.Since(start))
}
