// Package breaker guards each upstream endpoint category with its own
// circuit breaker and retry policy, so a broken extract endpoint cannot
// drag down search traffic.
package breaker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned without invoking the call while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Policy holds the tunables of the breaker and its inner retry loop. The
// defaults are a deliberate choice, not upstream parity: 5 failures within
// a 60s window open the breaker, a 30s cool-down precedes the half-open
// probe, and transient errors retry with exponential backoff from 500ms
// doubled per attempt, capped at 8s, with ±25% jitter.
type Policy struct {
	FailureThreshold int
	FailureWindow    time.Duration
	CoolDown         time.Duration
	MaxAttempts      int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration

	// Retryable reports whether an error is transient. Non-retryable
	// errors (4xx-class, schema validation) count against the breaker
	// immediately, without retries. Nil means nothing retries.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 5,
		FailureWindow:    60 * time.Second,
		CoolDown:         30 * time.Second,
		MaxAttempts:      3,
		BaseBackoff:      500 * time.Millisecond,
		MaxBackoff:       8 * time.Second,
	}
}

// Breaker - state machine Closed/Open/HalfOpen для одной категории endpoint.
type Breaker struct {
	mu       sync.Mutex
	name     string
	policy   Policy
	state    State
	failures []time.Time
	openedAt time.Time
	trial    bool // half-open probe in flight
	logger   *zap.Logger

	now func() time.Time
}

func New(name string, policy Policy, logger *zap.Logger) *Breaker {
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = 5
	}
	if policy.FailureWindow <= 0 {
		policy.FailureWindow = 60 * time.Second
	}
	if policy.CoolDown <= 0 {
		policy.CoolDown = 30 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 500 * time.Millisecond
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		name:   name,
		policy: policy,
		state:  Closed,
		logger: logger,
		now:    time.Now,
	}
}

// Do runs fn under the breaker. Transient failures are retried with
// backoff up to MaxAttempts and then counted as one breaker failure;
// non-retryable failures count immediately. Context cancellation aborts
// without counting.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			b.onSuccess()
			return nil
		}
		if ctx.Err() != nil {
			b.abortTrial()
			return ctx.Err()
		}
		if b.policy.Retryable == nil || !b.policy.Retryable(err) || attempt >= b.policy.MaxAttempts {
			break
		}

		delay := b.backoff(attempt)
		b.logger.Debug("retrying after transient failure",
			zap.String("breaker", b.name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			b.abortTrial()
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	b.onFailure()
	return err
}

// State reports the current state, applying the cool-down transition so
// observers do not see a stale Open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.policy.CoolDown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) < b.policy.CoolDown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.trial = true
		b.logger.Info("circuit breaker half-open", zap.String("breaker", b.name))
		return nil
	case HalfOpen:
		// ровно один пробный вызов за раз
		if b.trial {
			return ErrOpen
		}
		b.trial = true
		return nil
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.logger.Info("circuit breaker closed", zap.String("breaker", b.name))
	}
	b.state = Closed
	b.failures = nil
	b.trial = false
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = now
		b.trial = false
		b.logger.Warn("circuit breaker re-opened", zap.String("breaker", b.name))
		return
	}

	b.failures = append(b.failures, now)
	b.pruneLocked(now)
	if len(b.failures) >= b.policy.FailureThreshold {
		b.state = Open
		b.openedAt = now
		b.failures = nil
		b.logger.Warn("circuit breaker opened",
			zap.String("breaker", b.name),
			zap.Int("threshold", b.policy.FailureThreshold))
	}
}

// abortTrial releases the half-open probe slot when the trial call was
// cancelled rather than failed.
func (b *Breaker) abortTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.policy.FailureWindow)
	fresh := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	b.failures = fresh
}

func (b *Breaker) backoff(attempt int) time.Duration {
	d := b.policy.BaseBackoff << (attempt - 1)
	if d > b.policy.MaxBackoff {
		d = b.policy.MaxBackoff
	}
	// ±25% jitter против синхронных ретраев
	jittered := float64(d) * (0.75 + rand.Float64()*0.5)
	return time.Duration(jittered)
}

// Group holds one independent breaker per endpoint category.
type Group struct {
	mu       sync.Mutex
	policy   Policy
	logger   *zap.Logger
	breakers map[string]*Breaker
}

func NewGroup(categories []string, policy Policy, logger *zap.Logger) *Group {
	g := &Group{
		policy:   policy,
		logger:   logger,
		breakers: make(map[string]*Breaker, len(categories)),
	}
	for _, c := range categories {
		g.breakers[c] = New(c, policy, logger)
	}
	return g
}

// For returns the breaker for a category, creating one lazily for
// categories not named at construction.
func (g *Group) For(category string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[category]; ok {
		return b
	}
	b := New(category, g.policy, g.logger)
	g.breakers[category] = b
	return b
}

// States is a snapshot for the status endpoint.
func (g *Group) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.State().String()
	}
	return out
}
