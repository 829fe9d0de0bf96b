// Package ratelimit implements the token bucket that paces every upstream
// call. One token per request, refilled over time, with a bounded FIFO queue
// for callers that arrive while the bucket is empty.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the wait queue is at capacity. Failing
	// fast here is deliberate backpressure: queuing without bound would let
	// memory grow without limit under sustained overload.
	ErrQueueFull = errors.New("rate limiter queue is full")

	// ErrAcquireTimeout is returned when a queued caller is still waiting
	// after the configured wait timeout.
	ErrAcquireTimeout = errors.New("timed out waiting for rate limiter token")

	// ErrReset is returned to queued callers when Reset rejects them.
	ErrReset = errors.New("rate limiter was reset")
)

type Config struct {
	Capacity        int
	RefillPerMinute float64
	MaxQueue        int
	WaitTimeout     time.Duration
}

type Status struct {
	Available   int     `json:"available"`
	Capacity    int     `json:"capacity"`
	QueueLength int     `json:"queue_length"`
	Utilization float64 `json:"utilization_pct"`
}

type waiter struct {
	enqueuedAt time.Time
	ch         chan error // buffered, exactly one send
}

// Limiter - token bucket с ограниченной FIFO-очередью ожидания. Waiters
// будятся напрямую при пополнении, без поллинга.
type Limiter struct {
	mu           sync.Mutex
	capacity     int
	tokens       float64
	refillPerMin float64
	lastRefill   time.Time
	queue        []*waiter
	maxQueue     int
	waitTimeout  time.Duration
	timerSet     bool
	logger       *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 60
	}
	if cfg.RefillPerMinute <= 0 {
		cfg.RefillPerMinute = float64(cfg.Capacity)
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 100
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Limiter{
		capacity:     cfg.Capacity,
		tokens:       float64(cfg.Capacity), // начинаем с полного ведра
		refillPerMin: cfg.RefillPerMinute,
		maxQueue:     cfg.MaxQueue,
		waitTimeout:  cfg.WaitTimeout,
		logger:       logger,
		now:          time.Now,
	}
	l.lastRefill = l.now()
	return l
}

// Acquire blocks until a token is available, up to the wait timeout. Tokens
// are granted to waiters strictly in arrival order; a caller that cannot
// even be queued fails immediately with ErrQueueFull.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.refillLocked()

	if l.tokens >= 1 && len(l.queue) == 0 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}

	if len(l.queue) >= l.maxQueue {
		l.mu.Unlock()
		l.logger.Warn("rate limiter queue full", zap.Int("max_queue", l.maxQueue))
		return ErrQueueFull
	}

	w := &waiter{enqueuedAt: l.now(), ch: make(chan error, 1)}
	l.queue = append(l.queue, w)
	l.scheduleWakeupLocked()
	l.mu.Unlock()

	timer := time.NewTimer(l.waitTimeout)
	defer timer.Stop()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		if !l.remove(w) {
			// уже выдали токен, забираем результат
			return <-w.ch
		}
		return ctx.Err()
	case <-timer.C:
		if !l.remove(w) {
			return <-w.ch
		}
		return ErrAcquireTimeout
	}
}

// TryAcquire consumes a token only if one is immediately available. It
// never queues and never waits.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	if l.tokens >= 1 && len(l.queue) == 0 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	available := int(l.tokens)
	return Status{
		Available:   available,
		Capacity:    l.capacity,
		QueueLength: len(l.queue),
		Utilization: float64(l.capacity-available) / float64(l.capacity) * 100,
	}
}

// Reset refills the bucket to capacity and rejects every queued waiter.
// Intended for tests and operator intervention, not the request path.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = float64(l.capacity)
	l.lastRefill = l.now()
	for _, w := range l.queue {
		w.ch <- ErrReset
	}
	l.queue = nil
}

// refillLocked adds floor(elapsedMinutes × refillPerMin) tokens, capped at
// capacity. lastRefill advances only when at least one whole token accrued,
// so repeated sub-token calls do not drift the accounting.
func (l *Limiter) refillLocked() {
	elapsed := l.now().Sub(l.lastRefill)
	added := float64(int(elapsed.Minutes() * l.refillPerMin))
	if added < 1 {
		return
	}

	l.tokens += added
	if l.tokens > float64(l.capacity) {
		l.tokens = float64(l.capacity)
	}
	l.lastRefill = l.now()
	l.grantLocked()
}

// grantLocked hands tokens to the oldest waiters first.
func (l *Limiter) grantLocked() {
	for l.tokens >= 1 && len(l.queue) > 0 {
		w := l.queue[0]
		l.queue = l.queue[1:]
		l.tokens--
		w.ch <- nil
	}
}

// scheduleWakeupLocked arms a timer for the next whole-token arrival so
// waiters are woken the moment a token exists instead of on a poll tick.
func (l *Limiter) scheduleWakeupLocked() {
	if l.timerSet {
		return
	}
	l.timerSet = true

	perToken := time.Duration(60 / l.refillPerMin * float64(time.Second))
	wait := perToken - l.now().Sub(l.lastRefill)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	time.AfterFunc(wait, l.wake)
}

func (l *Limiter) wake() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timerSet = false
	l.refillLocked()
	l.grantLocked()
	if len(l.queue) > 0 {
		l.scheduleWakeupLocked()
	}
}

// remove takes a waiter out of the queue; false means it was already
// granted (or rejected) and the caller must read its channel instead.
func (l *Limiter) remove(w *waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, q := range l.queue {
		if q == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return true
		}
	}
	return false
}
