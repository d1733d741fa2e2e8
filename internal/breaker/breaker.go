package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/energy-data-hub/internal/logger"
)

var validate = validator.New()

// State is the position of a breaker in its state machine.
type State int

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
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Policy configures a breaker.
type Policy struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=1"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold" validate:"gte=1"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	Enabled          bool          `yaml:"enabled" json:"enabled"`
}

// DefaultPolicy opens after 5 consecutive failures, probes after 60s and
// closes after 2 successful probes.
func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		Enabled:          true,
	}
}

// Validate checks the policy bounds. A disabled policy is always valid.
func (p Policy) Validate() error {
	if !p.Enabled {
		return nil
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid circuit breaker policy: %w", err)
	}
	return nil
}

// Snapshot is a point-in-time copy of a breaker's state and counters.
type Snapshot struct {
	State        State      `json:"state"`
	FailureCount int        `json:"failure_count"`
	SuccessCount int        `json:"success_count"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
}

// Permit reports the outcome of an admitted call. Only the first call has
// an effect.
type Permit func(success bool)

// Listener is notified on every state transition. It runs while the breaker
// is locked and must not call back into the breaker.
type Listener func(name string, from, to State)

// Breaker guards one source. Transitions are driven by a gobreaker
// TwoStepCircuitBreaker: ConsecutiveFailures trips it, MaxRequests
// consecutive half-open successes close it, and any half-open failure
// reopens it. The breaker also keeps the counters exposed in Snapshot.
//
// gobreaker moves an expired open breaker to half-open whenever its state is
// read. State and Snapshot report a mirror updated only by transitions, so
// an open breaker stays open until Allow admits the probe.
//
// A Breaker is safe for concurrent use.
type Breaker struct {
	name   string
	policy Policy
	cb     *gobreaker.TwoStepCircuitBreaker
	logger *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	listener  Listener
}

// New creates a breaker in the closed state.
func New(name string, policy Policy, log *zap.SugaredLogger) *Breaker {
	b := &Breaker{
		name:   name,
		policy: policy,
		logger: logger.OrNop(log),
	}

	// gobreaker substitutes 60s for a zero timeout; a nanosecond keeps the
	// "probe on the very next call" behaviour.
	timeout := policy.Timeout
	if timeout <= 0 {
		timeout = time.Nanosecond
	}

	threshold := uint32(policy.FailureThreshold)
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(policy.SuccessThreshold),
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.transition(fromGobreaker(from), fromGobreaker(to))
		},
	})
	return b
}

// Name returns the guarded source's name.
func (b *Breaker) Name() string {
	return b.name
}

// Policy returns the breaker configuration.
func (b *Breaker) Policy() Policy {
	return b.policy
}

// SetListener installs fn as the transition listener.
func (b *Breaker) SetListener(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = fn
}

// Allow asks for permission to call the source. When the breaker is open and
// its timeout has not elapsed it returns false immediately. When the timeout
// has elapsed the breaker moves to half-open and the call is admitted as a
// probe. The returned Permit must be called with the outcome.
func (b *Breaker) Allow() (Permit, bool) {
	if !b.policy.Enabled {
		return func(bool) {}, true
	}

	done, err := b.cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, false
		}
		b.logger.Errorf("circuit breaker %s: unexpected error: %v", b.name, err)
		return nil, false
	}

	admittedIn := b.State()
	var once sync.Once
	return func(success bool) {
		once.Do(func() {
			done(success)
			b.record(admittedIn, b.State(), success)
		})
	}, true
}

// record updates the exposed counters after gobreaker has processed an
// outcome. It must not be called with b.mu held.
func (b *Breaker) record(before, after State, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch before {
	case StateClosed:
		if success {
			b.failures = 0
		} else {
			b.failures++
		}
	case StateHalfOpen:
		if success && after == StateHalfOpen {
			b.successes++
		}
	}
}

// transition runs inside gobreaker's lock.
func (b *Breaker) transition(from, to State) {
	b.mu.Lock()
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = time.Now()
		b.successes = 0
	case StateHalfOpen:
		b.successes = 0
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.openedAt = time.Time{}
	}
	listener := b.listener
	b.mu.Unlock()

	switch to {
	case StateOpen:
		b.logger.Warnf("circuit breaker %s: %s -> %s", b.name, from, to)
	default:
		b.logger.Infof("circuit breaker %s: %s -> %s", b.name, from, to)
	}
	if listener != nil {
		listener(b.name, from, to)
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the current state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		State:        b.state,
		FailureCount: b.failures,
		SuccessCount: b.successes,
	}
	if !b.openedAt.IsZero() {
		openedAt := b.openedAt
		snap.OpenedAt = &openedAt
	}
	return snap
}
