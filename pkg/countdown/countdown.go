package countdown

import (
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is how often a running countdown recomputes its remaining time.
const DefaultInterval = time.Second

// Remaining returns the duration until deadline, clamped at zero.
func Remaining(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatClock renders a duration as a mm:ss clock, e.g. "02:00".
// Durations are rounded up to the next whole second so a countdown only
// shows 00:00 once the deadline has actually passed.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Engine drives a single countdown toward an absolute deadline by periodic
// recomputation. Each Start tears down any previous run, so an engine can be
// reused when the deadline changes. Stop must be called on teardown to avoid
// leaking the ticker goroutine.
type Engine struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInterval overrides the recomputation interval.
func WithInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a countdown engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins counting down toward deadline and returns a channel that
// receives the remaining duration after every recomputation. The channel is
// closed once the countdown reaches zero or the engine is stopped. The first
// value is delivered immediately.
func (e *Engine) Start(deadline time.Time) <-chan time.Duration {
	e.mu.Lock()
	if e.stop != nil {
		close(e.stop)
	}
	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	ch := make(chan time.Duration, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			remaining := Remaining(e.now(), deadline)
			select {
			case ch <- remaining:
			case <-stop:
				return
			}
			if remaining == 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-stop:
				return
			}
		}
	}()

	return ch
}

// Stop cancels the running countdown, if any.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}
