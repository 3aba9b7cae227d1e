package throttle

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity bounds concurrent stage agent calls process-wide.
const DefaultCapacity = 5

// Throttle is a counting semaphore shared by every caller of a stage agent.
// Construct one per process and pass it to whoever needs it.
type Throttle struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// New returns a throttle admitting capacity concurrent holders.
func New(capacity int) (*Throttle, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("throttle capacity must be at least 1, got %d", capacity)
	}
	return &Throttle{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

// Acquire blocks until a slot is free or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire throttle slot: %w", err)
	}
	t.inFlight.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (t *Throttle) Release() {
	t.inFlight.Add(-1)
	t.sem.Release(1)
}

// Do runs fn while holding a slot.
func (t *Throttle) Do(ctx context.Context, fn func() error) error {
	if err := t.Acquire(ctx); err != nil {
		return err
	}
	defer t.Release()
	return fn()
}

func (t *Throttle) Capacity() int { return t.capacity }

// InFlight reports the number of slots currently held.
func (t *Throttle) InFlight() int { return int(t.inFlight.Load()) }
