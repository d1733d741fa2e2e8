package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/i474232898/energy-data-hub/internal/breaker"
	"github.com/i474232898/energy-data-hub/internal/logger"
	"github.com/i474232898/energy-data-hub/internal/metrics"
	"github.com/i474232898/energy-data-hub/internal/retry"
	"github.com/i474232898/energy-data-hub/internal/timeutil"
)

// Options configures an Orchestrator. A zero Retry policy and a nil Breaker
// are replaced by the package defaults.
type Options struct {
	Retry      retry.Policy
	Breaker    *breaker.Policy
	Normalizer *timeutil.Normalizer
	// HistoryLimit bounds the metrics history; 0 keeps every entry.
	HistoryLimit int
	Logger       *zap.SugaredLogger
}

// Orchestrator runs the collection pipeline for one source: circuit check,
// fetch with retry, parse, timestamp normalization, validation, and metrics.
//
// Calls to Collect on the same Orchestrator are serialized. Orchestrators for
// different sources share nothing and can run in parallel.
type Orchestrator struct {
	source     Source
	executor   *retry.Executor
	breaker    *breaker.Breaker
	normalizer *timeutil.Normalizer
	history    *history
	logger     *zap.SugaredLogger

	// serial admits one Collect at a time and honours cancellation while
	// waiting.
	serial *semaphore.Weighted
}

// New builds an Orchestrator for src.
func New(src Source, opts Options) (*Orchestrator, error) {
	if src == nil {
		return nil, errors.New("collector: nil source")
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.DefaultPolicy()
	}
	bp := breaker.DefaultPolicy()
	if opts.Breaker != nil {
		bp = *opts.Breaker
	}
	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name(), err)
	}
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name(), err)
	}
	if opts.Normalizer == nil {
		n, err := timeutil.NewNormalizer(timeutil.DefaultZone)
		if err != nil {
			return nil, err
		}
		opts.Normalizer = n
	}

	log := logger.OrNop(opts.Logger).Named("collector").With("source", src.Name())

	o := &Orchestrator{
		source:     src,
		executor:   retry.NewExecutor(opts.Retry, log.Named("retry")),
		breaker:    breaker.New(src.Name(), bp, log.Named("breaker")),
		normalizer: opts.Normalizer,
		history:    newHistory(opts.HistoryLimit),
		logger:     log,
		serial:     semaphore.NewWeighted(1),
	}
	o.breaker.SetListener(func(name string, _, to breaker.State) {
		metrics.SetBreakerState(name, int(to))
	})
	metrics.SetBreakerState(src.Name(), int(breaker.StateClosed))
	return o, nil
}

// Name returns the source name.
func (o *Orchestrator) Name() string {
	return o.source.Name()
}

// Source returns the wrapped source.
func (o *Orchestrator) Source() Source {
	return o.source
}

// RetryPolicy returns the policy used for fetches.
func (o *Orchestrator) RetryPolicy() retry.Policy {
	return o.executor.Policy()
}

// Breaker returns the source's circuit breaker.
func (o *Orchestrator) Breaker() *breaker.Breaker {
	return o.breaker
}

// Metrics returns up to limit recent metrics, oldest first. limit <= 0
// returns the whole history.
func (o *Orchestrator) Metrics(limit int) []CollectionMetrics {
	return o.history.recent(limit)
}

// HistoryLen returns the number of recorded collection attempts.
func (o *Orchestrator) HistoryLen() int {
	return o.history.len()
}

// SuccessRate is the share of recorded attempts with status success.
func (o *Orchestrator) SuccessRate() float64 {
	return o.history.successRate()
}

// Collect gathers the window [start, end) from the source. It returns nil
// when the circuit breaker refuses the call, when fetching or parsing fails
// after all retries, when the window is empty, or when ctx ends before the
// collection could start. A source whose metadata panics fails the
// collection. Collect never panics on behalf of the source.
func (o *Orchestrator) Collect(ctx context.Context, start, end time.Time) *Dataset {
	if err := o.serial.Acquire(ctx, 1); err != nil {
		o.logger.Warnf("collection not started: %v", err)
		return nil
	}
	defer o.serial.Release(1)

	id := uuid.NewString()[:8]
	began := time.Now()
	m := CollectionMetrics{
		ID:          id,
		Source:      o.Name(),
		WindowStart: start,
		WindowEnd:   end,
		Status:      StatusFailed,
	}

	if !end.After(start) {
		m.Status = StatusSkipped
		m.Warnings = append(m.Warnings, fmt.Sprintf("empty window %s .. %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
		o.logger.Warnf("[%s] skipping collection: window end %s is not after start %s", id, end, start)
		o.finish(m, began)
		return nil
	}

	permit, ok := o.breaker.Allow()
	if !ok {
		o.logger.Warnf("[%s] circuit breaker OPEN, skipping collection", id)
		metrics.IncBlocked(o.Name())
		return nil
	}
	// Permits are single-use, so this only counts when a later step panics.
	defer permit(false)

	o.logger.Infof("[%s] starting collection: %s to %s", id, start.Format(time.RFC3339), end.Format(time.RFC3339))

	o.logger.Debugf("[%s] fetching raw data", id)
	raw, attempts, err := retry.Value(ctx, o.executor, func(ctx context.Context) (RawPayload, error) {
		return o.safeFetch(ctx, start, end)
	})
	m.Attempts = attempts
	if err != nil {
		permit(false)
		m.Errors = append(m.Errors, describeError("fetch", err))
		o.logger.Errorf("[%s] collection failed after %d attempts: %v", id, attempts, err)
		o.finish(m, began)
		return nil
	}

	o.logger.Debugf("[%s] parsing response", id)
	parsed, err := o.safeParse(raw, start, end)
	if err != nil {
		permit(false)
		m.Errors = append(m.Errors, describeError("parse", err))
		o.logger.Errorf("[%s] collection failed while parsing: %v", id, err)
		o.finish(m, began)
		return nil
	}

	o.logger.Debugf("[%s] normalizing %d timestamps", id, len(parsed))
	data, normWarnings := o.normalize(parsed)
	m.Warnings = append(m.Warnings, normWarnings...)

	o.logger.Debugf("[%s] validating data", id)
	_, valWarnings := o.validate(data)
	m.Warnings = append(m.Warnings, valWarnings...)
	for _, w := range m.Warnings {
		o.logger.Warnf("[%s] %s", id, w)
	}

	md, err := o.safeMetadata(start, end)
	if err != nil {
		permit(false)
		m.Errors = append(m.Errors, describeError("metadata", err))
		o.logger.Errorf("[%s] collection failed while building metadata: %v", id, err)
		o.finish(m, began)
		return nil
	}
	ds := &Dataset{Metadata: md, Data: data}

	m.Points = len(data)
	m.Status = StatusSuccess
	if len(m.Warnings) > 0 {
		m.Status = StatusPartial
	}
	permit(true)
	o.finish(m, began)

	o.logger.Infof("[%s] collection complete: %d data points in %s (status: %s)", id, m.Points, m.Duration.Round(time.Millisecond), m.Status)
	return ds
}

func (o *Orchestrator) finish(m CollectionMetrics, began time.Time) {
	m.Duration = time.Since(began)
	o.history.append(m)
	metrics.ObserveCollection(m.Source, string(m.Status), m.Attempts, m.Duration, m.Points)
}

func (o *Orchestrator) safeFetch(ctx context.Context, start, end time.Time) (raw RawPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return o.source.Fetch(ctx, start, end)
}

func (o *Orchestrator) safeParse(raw RawPayload, start, end time.Time) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse panicked: %v", r)
		}
	}()
	return o.source.Parse(raw, start, end)
}

// normalize rewrites every key into canonical form and cleans every value.
// Keys that cannot be normalized are kept as-is with a warning. Keys are
// processed in sorted order so collisions resolve deterministically.
func (o *Orchestrator) normalize(parsed map[string]any) (map[string]any, []string) {
	keys := make([]string, 0, len(parsed))
	for k := range parsed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []string
	duplicates := 0
	out := make(map[string]any, len(parsed))
	for _, raw := range keys {
		key, err := o.normalizer.Normalize(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to normalize timestamp %q: %v; keeping original", raw, err))
			key = raw
		}
		if _, exists := out[key]; exists {
			duplicates++
		}
		out[key] = ConvertValue(parsed[raw])
	}
	if duplicates > 0 {
		warnings = append(warnings, fmt.Sprintf("%d timestamps collapsed onto an existing key after normalization", duplicates))
	}
	return out, warnings
}

// validate inspects normalized data. It never fails the collection; it only
// reports whether the data looks complete and why not.
func (o *Orchestrator) validate(data map[string]any) (bool, []string) {
	var warnings []string

	if len(data) == 0 {
		return false, []string{"no data points collected"}
	}

	missing := 0
	var malformed []string
	for ts, v := range data {
		if IsMissing(v) {
			missing++
		}
		if !o.normalizer.ValidateOffset(ts) {
			malformed = append(malformed, ts)
		}
	}

	if missing > 0 {
		warnings = append(warnings, fmt.Sprintf("%d data points have missing values", missing))
	}
	if len(data) < 2 {
		warnings = append(warnings, fmt.Sprintf("only %d data points collected (expected more)", len(data)))
	}
	if len(malformed) > 0 {
		sort.Strings(malformed)
		warnings = append(warnings, fmt.Sprintf("found %d malformed timestamps", len(malformed)))
		for _, ts := range malformed[:min(3, len(malformed))] {
			warnings = append(warnings, fmt.Sprintf("malformed: %s", ts))
		}
	}
	return len(warnings) == 0, warnings
}

func (o *Orchestrator) safeMetadata(start, end time.Time) (md map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metadata panicked: %v", r)
		}
	}()
	return o.metadata(start, end), nil
}

func (o *Orchestrator) metadata(start, end time.Time) map[string]any {
	md := map[string]any{
		"collector":  o.Name(),
		"start_time": timeutil.Format(o.normalizer.ToCanonical(start)),
		"end_time":   timeutil.Format(o.normalizer.ToCanonical(end)),
	}
	for k, v := range o.source.Metadata(start, end) {
		md[k] = v
	}
	return md
}
