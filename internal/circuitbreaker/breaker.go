package circuitbreaker

import (
	"sync"
	"time"

	"marketlink/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// Clock defaults to the wall clock.
	Clock core.Clock `json:"-"`
}

// Breaker stops calls to a venue after FailThreshold consecutive connection
// failures and lets a trial call through once Timeout has passed. It never retries.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	clock            core.Clock
	stats            Stats
}

// Stats is a point-in-time capture of breaker counters.
type Stats struct {
	Allowed      int64
	Rejected     int64
	Failures     int64
	StateChanges int32
	State        string
}

func New(config Config) *Breaker {
	clock := config.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		clock:            clock,
	}
}

// FromConfig returns nil when the breaker is disabled. A nil *Breaker allows everything.
func FromConfig(cfg *core.Config, clock core.Clock) *Breaker {
	if !cfg.CircuitBreakerEnabled {
		return nil
	}
	return New(Config{
		FailThreshold:    cfg.CircuitBreakerFailThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Clock:            clock,
	})
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.clock.Now().Sub(b.openedAt) < b.timeout {
			b.stats.Rejected++
			return false
		}
		b.transitionTo(StateHalfOpen)
	}
	b.stats.Allowed++
	return true
}

// Record feeds the outcome of a call. Only connection failures count against
// the venue; a rejection or a malformed body still proves it is reachable.
func (b *Breaker) Record(err error) {
	if b == nil {
		return
	}
	failed := core.IsConnectionFailed(err)

	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.stats.Failures++
	}

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failThreshold {
			b.open()
		}
	case StateHalfOpen:
		if failed {
			b.open()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.transitionTo(StateClosed)
		}
	case StateOpen:
		// Calls admitted before the breaker opened may still report back.
		if failed {
			b.openedAt = b.clock.Now()
		}
	}
}

func (b *Breaker) open() {
	b.openedAt = b.clock.Now()
	b.transitionTo(StateOpen)
}

func (b *Breaker) transitionTo(newState State) {
	b.state = newState
	b.failures = 0
	b.successes = 0
	b.stats.StateChanges++
}

func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) Stats() Stats {
	if b == nil {
		return Stats{State: StateClosed.String()}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.State = b.state.String()
	return s
}
