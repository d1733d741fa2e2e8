package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2,
		Jitter:          false,
	}
}

func TestDelayGrowsUntilCap(t *testing.T) {
	p := Policy{
		MaxAttempts:     10,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2,
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	prev := time.Duration(0)
	for i, w := range want {
		got := p.Delay(i + 1)
		assert.Equal(t, w, got, "attempt %d", i+1)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestDelayDoesNotOverflow(t *testing.T) {
	p := Policy{MaxAttempts: 2000, InitialDelay: time.Second, MaxDelay: time.Minute, ExponentialBase: 10}
	assert.Equal(t, time.Minute, p.Delay(1500))
}

func TestScheduleJitterStaysInHalfToFullRange(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2, Jitter: true}

	for _, r := range []float64{0, 0.25, 0.999999} {
		s := &schedule{policy: p, jitter: func() float64 { return r }}
		for k := 1; k < p.MaxAttempts; k++ {
			d := s.NextBackOff()
			base := p.Delay(k)
			assert.GreaterOrEqual(t, d, base/2)
			assert.LessOrEqual(t, d, base)
		}
	}
}

func TestScheduleStopsBeforeFinalAttempt(t *testing.T) {
	s := &schedule{policy: fastPolicy(3)}

	assert.NotEqual(t, time.Duration(-1), s.NextBackOff())
	assert.NotEqual(t, time.Duration(-1), s.NextBackOff())
	assert.Equal(t, time.Duration(-1), s.NextBackOff())

	s.Reset()
	assert.Equal(t, time.Millisecond, s.NextBackOff())
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	e := NewExecutor(fastPolicy(3), nil)

	calls := 0
	attempts, err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	e := NewExecutor(fastPolicy(4), nil)

	calls := 0
	attempts, err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("failure %d", calls)
	})

	require.Error(t, err)
	assert.Equal(t, "failure 4", err.Error())
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, calls)
}

func TestDoSingleAttemptDoesNotSleep(t *testing.T) {
	p := fastPolicy(1)
	p.InitialDelay = time.Hour
	p.MaxDelay = time.Hour
	e := NewExecutor(p, nil)

	start := time.Now()
	attempts, err := e.Do(context.Background(), func(context.Context) error {
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoCancelInterruptsBackoff(t *testing.T) {
	p := fastPolicy(3)
	p.InitialDelay = time.Hour
	p.MaxDelay = time.Hour
	e := NewExecutor(p, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts, err := e.Do(ctx, func(context.Context) error {
		return errors.New("down")
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValue(t *testing.T) {
	e := NewExecutor(fastPolicy(2), nil)

	calls := 0
	v, attempts, err := Value(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first")
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", v)
	assert.Equal(t, 2, attempts)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := []Policy{
		{MaxAttempts: 0, InitialDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 2},
		{MaxAttempts: 1, InitialDelay: 0, MaxDelay: time.Second, ExponentialBase: 2},
		{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Millisecond, ExponentialBase: 2},
		{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 1},
	}
	for i, p := range bad {
		assert.Error(t, p.Validate(), "case %d", i)
	}
}
