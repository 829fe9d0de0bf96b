package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLimiter(cfg Config) *Limiter {
	return New(cfg, zap.NewNop())
}

func TestLimiter_AcquireConsumesOneToken(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 5, RefillPerMinute: 1})

	for i := 5; i > 0; i-- {
		if got := l.Status().Available; got != i {
			t.Fatalf("Status().Available = %d, want %d", got, i)
		}
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	if got := l.Status().Available; got != 0 {
		t.Errorf("Status().Available = %d, want 0 after draining", got)
	}
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 2, RefillPerMinute: 1})

	if !l.TryAcquire() {
		t.Error("TryAcquire() = false, want true with tokens available")
	}
	if !l.TryAcquire() {
		t.Error("TryAcquire() = false, want true with one token left")
	}
	if l.TryAcquire() {
		t.Error("TryAcquire() = true, want false with empty bucket")
	}
}

func TestLimiter_RefillAfterOnePeriod(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 3, RefillPerMinute: 6})

	base := time.Now()
	l.now = func() time.Time { return base }
	l.lastRefill = base

	for i := 0; i < 3; i++ {
		if !l.TryAcquire() {
			t.Fatalf("TryAcquire() #%d = false, want true", i)
		}
	}
	if l.TryAcquire() {
		t.Fatal("TryAcquire() = true, want false with empty bucket")
	}

	// 6 tokens/min = one token every 10s
	base = base.Add(10 * time.Second)
	if !l.TryAcquire() {
		t.Error("TryAcquire() = false, want true after one refill period")
	}
}

func TestLimiter_RefillCappedAtCapacity(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 3, RefillPerMinute: 60})

	base := time.Now()
	l.now = func() time.Time { return base }
	l.lastRefill = base

	if !l.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true")
	}

	// целый час простоя не должен переполнить ведро
	base = base.Add(time.Hour)
	if got := l.Status().Available; got != 3 {
		t.Errorf("Status().Available = %d, want capacity 3", got)
	}
}

func TestLimiter_SubTokenElapsedDoesNotAdvanceRefill(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 2, RefillPerMinute: 6})

	base := time.Now()
	l.now = func() time.Time { return base }
	l.lastRefill = base
	l.tokens = 0

	// repeated sub-period status calls must not reset the refill clock
	for i := 0; i < 4; i++ {
		base = base.Add(2 * time.Second)
		l.Status()
	}
	base = base.Add(2 * time.Second) // 10s total, exactly one period
	if got := l.Status().Available; got != 1 {
		t.Errorf("Status().Available = %d, want 1 after accumulated period", got)
	}
}

func TestLimiter_QueueFull(t *testing.T) {
	l := newTestLimiter(Config{
		Capacity:        1,
		RefillPerMinute: 1, // slow enough that nothing refills mid-test
		MaxQueue:        100,
		WaitTimeout:     5 * time.Second,
	})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			results <- l.Acquire(ctx)
		}()
	}

	// wait for all 100 to be queued
	deadline := time.Now().Add(2 * time.Second)
	for l.Status().QueueLength < 100 {
		if time.Now().After(deadline) {
			t.Fatalf("queue length = %d, want 100", l.Status().QueueLength)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 101st caller fails fast
	if err := l.Acquire(context.Background()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Acquire() error = %v, want ErrQueueFull", err)
	}
	if got := l.Status().QueueLength; got != 100 {
		t.Errorf("queue length = %d, want 100 still queued", got)
	}

	l.Reset()
	wg.Wait()
}

func TestLimiter_WaitTimeout(t *testing.T) {
	l := newTestLimiter(Config{
		Capacity:        1,
		RefillPerMinute: 1,
		MaxQueue:        10,
		WaitTimeout:     100 * time.Millisecond,
	})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	start := time.Now()
	err := l.Acquire(context.Background())
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrAcquireTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want ~100ms", elapsed)
	}
	if got := l.Status().QueueLength; got != 0 {
		t.Errorf("queue length = %d, want 0 after timeout removal", got)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 1, RefillPerMinute: 1, MaxQueue: 10})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()

	deadline := time.Now().Add(time.Second)
	for l.Status().QueueLength == 0 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestLimiter_FIFOGrantOrder(t *testing.T) {
	l := newTestLimiter(Config{
		Capacity:        1,
		RefillPerMinute: 600, // one token every 100ms
		MaxQueue:        10,
		WaitTimeout:     5 * time.Second,
	})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("waiter %d: Acquire() error = %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
		// stagger enqueue so arrival order is deterministic
		deadline := time.Now().Add(time.Second)
		for l.Status().QueueLength < i+1 {
			if time.Now().After(deadline) {
				t.Fatalf("waiter %d never queued", i)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Fatalf("grant order = %v, want FIFO [0 1 2]", order)
		}
	}
}

func TestLimiter_ResetRejectsWaiters(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 1, RefillPerMinute: 1, MaxQueue: 10})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Acquire(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for l.Status().QueueLength == 0 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	l.Reset()

	if err := <-done; !errors.Is(err, ErrReset) {
		t.Errorf("Acquire() error = %v, want ErrReset", err)
	}
	if got := l.Status().Available; got != 1 {
		t.Errorf("Status().Available = %d, want full capacity after reset", got)
	}
}

func TestLimiter_Utilization(t *testing.T) {
	l := newTestLimiter(Config{Capacity: 4, RefillPerMinute: 1})

	l.Acquire(context.Background())
	l.Acquire(context.Background())

	if got := l.Status().Utilization; got != 50 {
		t.Errorf("Status().Utilization = %v, want 50", got)
	}
}
