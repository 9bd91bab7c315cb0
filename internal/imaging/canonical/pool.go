package canonical

import (
	"context"
	"fmt"
	"log/slog"
)

// Pool bounds how many decode/encode jobs run at once. Each job holds a
// full decoded raster in memory.
type Pool struct {
	slots  chan struct{}
	logger *slog.Logger
}

// NewPool creates a pool with size slots, all free.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		slots:  make(chan struct{}, size),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case <-p.slots:
		return nil
	default:
	}

	p.logger.Debug("image pool saturated, waiting for a slot", slog.Int("size", cap(p.slots)))

	select {
	case <-p.slots:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("canonical: waiting for worker slot: %w", ctx.Err())
	}
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	select {
	case p.slots <- struct{}{}:
	default:
		p.logger.Error("image pool released more slots than acquired")
	}
}

// Available reports the number of free slots.
func (p *Pool) Available() int {
	return len(p.slots)
}
