package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/i474232898/energy-data-hub/internal/logger"
)

var validate = validator.New()

// Policy controls how often and how patiently a failing operation is retried.
type Policy struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	InitialDelay    time.Duration `yaml:"initial_delay" json:"initial_delay" validate:"gt=0"`
	MaxDelay        time.Duration `yaml:"max_delay" json:"max_delay" validate:"gtefield=InitialDelay"`
	ExponentialBase float64       `yaml:"exponential_base" json:"exponential_base" validate:"gt=1"`
	Jitter          bool          `yaml:"jitter" json:"jitter"`
}

// DefaultPolicy returns 3 attempts, 1s initial delay doubling up to 60s, with jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	return nil
}

// Delay returns the pre-jitter wait after failed attempt k (1-indexed):
// min(InitialDelay * ExponentialBase^(k-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if math.IsInf(d, 0) || math.IsNaN(d) || d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// schedule adapts a Policy to backoff.BackOff. It stops after
// MaxAttempts-1 waits so the final failure is returned without sleeping.
type schedule struct {
	policy  Policy
	attempt int
	jitter  func() float64
}

func (s *schedule) NextBackOff() time.Duration {
	s.attempt++
	if s.attempt >= s.policy.MaxAttempts {
		return backoff.Stop
	}
	d := s.policy.Delay(s.attempt)
	if s.policy.Jitter {
		d = time.Duration(float64(d) * (0.5 + 0.5*s.jitter()))
	}
	return d
}

func (s *schedule) Reset() {
	s.attempt = 0
}

// Executor runs operations under a retry policy. It holds no per-call state
// and may be shared.
type Executor struct {
	policy Policy
	logger *zap.SugaredLogger
	jitter func() float64
}

// NewExecutor creates an Executor. A nil logger disables logging.
func NewExecutor(policy Policy, log *zap.SugaredLogger) *Executor {
	return &Executor{
		policy: policy,
		logger: logger.OrNop(log),
		jitter: rand.Float64,
	}
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do calls op until it succeeds or the policy's attempts are used up, and
// reports how many attempts were made. On exhaustion the last error is
// returned. Waits between attempts end early when ctx is cancelled, in which
// case the context error is returned.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	sched := &schedule{policy: e.policy, jitter: e.jitter}

	err := backoff.RetryNotify(
		func() error {
			attempts++
			e.logger.Debugf("attempt %d/%d", attempts, e.policy.MaxAttempts)
			return op(ctx)
		},
		backoff.WithContext(sched, ctx),
		func(err error, next time.Duration) {
			e.logger.Warnf("attempt %d failed: %v; retrying in %s", attempts, err, next.Round(time.Millisecond))
		},
	)
	if err != nil {
		e.logger.Errorf("all %d attempts failed, last error: %v", attempts, err)
	}
	return attempts, err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	attempts, err := e.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, attempts, err
}
