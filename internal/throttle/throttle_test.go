package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("New(0) should fail")
	}
}

func TestDoBoundsConcurrency(t *testing.T) {
	th, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.Do(context.Background(), func() error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", got)
	}
	if th.InFlight() != 0 {
		t.Fatalf("InFlight() = %d after all calls returned", th.InFlight())
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	th, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := th.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer th.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = th.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire err = %v, want deadline exceeded", err)
	}
	if th.InFlight() != 1 {
		t.Fatalf("InFlight() = %d, want 1", th.InFlight())
	}
}

func TestDoReturnsFnError(t *testing.T) {
	th, _ := New(DefaultCapacity)
	want := errors.New("boom")
	if err := th.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Do err = %v, want %v", err, want)
	}
	if th.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity() = %d", th.Capacity())
	}
}
