package heap

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tracegc/errors"
)

// Context is the exclusive ticket required to allocate and to collect.
// At most one Context is active per Heap. A Context ends when it is
// released or consumed by Collect; every Ref derived from it goes stale at
// that point.
type Context struct {
	h     *Heap
	epoch uint64
}

// CollectStats describes one collection cycle.
type CollectStats struct {
	Cycle      uint64
	Roots      int
	Marked     int
	Edges      int
	Dangling   int
	Freed      int
	FreedBytes uint64
	Live       int
	Duration   time.Duration
}

// Acquire returns a new active context. It fails immediately with
// errors.KindBusy if another context is active and never waits.
func (h *Heap) Acquire() (*Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.Closed(errors.PhaseAcquire)
	}
	if h.active != nil {
		return nil, errors.Busy()
	}

	h.epoch++
	ctx := &Context{h: h, epoch: h.epoch}
	h.active = ctx
	h.log.Debug("context acquired", zap.Uint64("epoch", ctx.epoch))
	return ctx, nil
}

// MustAcquire is like Acquire but panics on failure.
func (h *Heap) MustAcquire() *Context {
	ctx, err := h.Acquire()
	if err != nil {
		panic(err)
	}
	return ctx
}

// Heap returns the heap this context was acquired from.
func (c *Context) Heap() *Heap {
	return c.h
}

// Epoch returns the epoch this context was issued under.
func (c *Context) Epoch() uint64 {
	return c.epoch
}

// Active reports whether the context can still be used.
func (c *Context) Active() bool {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	return c.h.active == c
}

// Release ends the context without collecting. Release is idempotent.
func (c *Context) Release() {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if c.h.active == c {
		c.h.active = nil
		c.h.log.Debug("context released", zap.Uint64("epoch", c.epoch))
	}
}

// Collect ends the context and reclaims every object unreachable from the
// root set. A new context must be acquired to continue. Collect on an ended
// context does nothing and returns zero stats.
func (c *Context) Collect() CollectStats {
	h := c.h
	stats, freed, ok := func() (CollectStats, []freedObject, bool) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.active != c {
			return CollectStats{}, nil, false
		}
		h.active = nil
		stats, freed := h.collect()
		return stats, freed, true
	}()
	if !ok {
		return stats
	}

	h.log.Debug("collection finished",
		zap.Uint64("cycle", stats.Cycle),
		zap.Uint64("epoch", c.epoch),
		zap.Int("roots", stats.Roots),
		zap.Int("marked", stats.Marked),
		zap.Int("freed", stats.Freed),
		zap.Uint64("freed_bytes", stats.FreedBytes),
		zap.Int("live", stats.Live),
		zap.Duration("duration", stats.Duration))

	h.finalize(freed)
	h.notify(Event{Type: EventCollected, Collect: stats})
	return stats
}

// check validates the context for use. Callers must hold h.mu.
func (c *Context) check(phase errors.Phase) error {
	if c.h.closed {
		return errors.Closed(phase)
	}
	if c.h.active != c {
		return errors.ContextEnded(phase, c.epoch)
	}
	return nil
}
