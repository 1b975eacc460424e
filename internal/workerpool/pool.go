// Package workerpool runs blocking work (PDF extraction, embedding calls,
// index construction and search, generation) on a bounded set of goroutines
// shared by every request.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pdf-rag-chatbot/internal/logger"

	"github.com/panjf2000/ants/v2"
)

var (
	ErrPoolClosed   = errors.New("worker pool is closed")
	ErrPoolOverload = errors.New("worker pool is overloaded")
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity is the maximum number of concurrently running tasks.
	Capacity int
	// ExpiryDuration is how long an idle worker goroutine is kept.
	ExpiryDuration time.Duration
	// Nonblocking makes Submit fail with ErrPoolOverload instead of waiting.
	Nonblocking bool
	// MaxBlockingTasks caps waiting submitters when Nonblocking is false. 0 means no cap.
	MaxBlockingTasks int
}

func DefaultConfig() *Config {
	return &Config{
		Capacity:         16,
		ExpiryDuration:   30 * time.Second,
		Nonblocking:      false,
		MaxBlockingTasks: 0,
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Panics    int64
	Running   int
	Waiting   int
}

type Pool struct {
	name   string
	pool   *ants.Pool
	closed atomic.Bool
	mu     sync.Mutex

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

func New(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("worker pool %s: capacity must be positive, got %d", name, cfg.Capacity)
	}

	p := &Pool{name: name}

	pool, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("Worker panic escaped task guard", "pool", name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = pool

	logger.Info("Worker pool created", "name", name, "capacity", cfg.Capacity)
	return p, nil
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Cap() int     { return p.pool.Cap() }

// Do runs fn on a pool worker and waits for it. If ctx ends first, Do returns
// ctx.Err(); fn keeps running with the same ctx and its result is dropped.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		p.submitted.Add(1)
		done <- p.run(ctx, fn)
	})
	if err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			p.rejected.Add(1)
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.failed.Add(1)
			logger.Error("Worker task panicked", "pool", p.name, "panic", r)
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()

	// Tasks queued behind a cancelled request are skipped.
	if err := ctx.Err(); err != nil {
		p.failed.Add(1)
		return err
	}

	if err = fn(ctx); err != nil {
		p.failed.Add(1)
		return err
	}
	p.completed.Add(1)
	return nil
}

// Run is Do for functions that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
		Running:   p.pool.Running(),
		Waiting:   p.pool.Waiting(),
	}
}

// Release waits up to timeout for running tasks, then frees the pool.
func (p *Pool) Release(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	logger.Info("Worker pool released", "name", p.name)
	return p.pool.ReleaseTimeout(timeout)
}
