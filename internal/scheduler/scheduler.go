package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/i474232898/energy-data-hub/internal/collector"
	"github.com/i474232898/energy-data-hub/internal/logger"
)

// DatasetStore receives every dataset a run produces.
type DatasetStore interface {
	SaveDataset(source string, collectedAt time.Time, ds *collector.Dataset)
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	// Timeout bounds one whole run.
	Timeout time.Duration
	// Window is the collection window length starting at local midnight.
	Window time.Duration
	// HostConcurrency caps parallel collections against one remote host.
	HostConcurrency int
	Location        *time.Location
	Logger          *zap.SugaredLogger
}

// RunSummary reports the outcome of one run.
type RunSummary struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Collected   []string
	Failed      []string
	Combined    *collector.CombinedDataset
}

// Scheduler periodically collects every registered source.
type Scheduler struct {
	scheduler *gocron.Scheduler
	registry  *collector.Registry
	store     DatasetStore
	opts      Options
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted

	now func() time.Time
}

// New creates a new Scheduler. store may be nil when datasets are only
// needed in the RunSummary.
func New(registry *collector.Registry, store DatasetStore, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HostConcurrency <= 0 {
		opts.HostConcurrency = 2
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	s := gocron.NewScheduler(opts.Location)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		registry:  registry,
		store:     store,
		opts:      opts,
		logger:    logger.OrNop(opts.Logger).Named("scheduler"),
		hosts:     make(map[string]*semaphore.Weighted),
		now:       time.Now,
	}
}

// Window returns the collection window for a run at now: local midnight in
// the scheduler's zone plus the configured window length.
func (s *Scheduler) Window(now time.Time) (time.Time, time.Time) {
	local := now.In(s.opts.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.opts.Location)
	return start, start.Add(s.opts.Window)
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately; a run still in progress when the next one
// is due makes the scheduler skip that tick.
func (s *Scheduler) Start() error {
	if s.registry.Len() == 0 {
		s.logger.Info("no sources configured; nothing to schedule")
		return nil
	}

	interval := s.opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.logger.Info("running collection job")
		summary, err := s.RunOnce(context.Background())
		if err != nil {
			s.logger.Errorf("collection job failed: %v", err)
			return
		}
		s.logger.Infof("completed collection job: %d collected, %d failed", len(summary.Collected), len(summary.Failed))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce collects the named sources, or every registered source when names
// is empty, in parallel. One source failing never affects the others.
func (s *Scheduler) RunOnce(ctx context.Context, names ...string) (*RunSummary, error) {
	orchestrators, err := s.selected(names)
	if err != nil {
		return nil, err
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start, end := s.Window(s.now())
	summary := &RunSummary{
		WindowStart: start,
		WindowEnd:   end,
		Combined:    collector.NewCombinedDataset(),
	}

	var mu sync.Mutex
	record := func(name string, ds *collector.Dataset) {
		mu.Lock()
		defer mu.Unlock()
		if ds == nil {
			summary.Failed = append(summary.Failed, name)
			return
		}
		summary.Collected = append(summary.Collected, name)
		if err := summary.Combined.Add(name, ds); err != nil {
			s.logger.Warnf("combine %s: %v", name, err)
		}
	}

	var g errgroup.Group
	for _, o := range orchestrators {
		o := o
		g.Go(func() error {
			sem := s.hostLimit(collector.HostOf(o.Source()))
			if err := sem.Acquire(ctx, 1); err != nil {
				s.logger.Warnf("%s: not started: %v", o.Name(), err)
				record(o.Name(), nil)
				return nil
			}
			defer sem.Release(1)

			ds := o.Collect(ctx, start, end)
			if ds != nil && s.store != nil {
				s.store.SaveDataset(o.Name(), s.now(), ds)
			}
			record(o.Name(), ds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(summary.Collected)
	sort.Strings(summary.Failed)
	return summary, nil
}

func (s *Scheduler) selected(names []string) ([]*collector.Orchestrator, error) {
	if len(names) == 0 {
		return s.registry.All(), nil
	}
	out := make([]*collector.Orchestrator, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		o, err := s.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("select sources: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Scheduler) hostLimit(host string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()

	sem, ok := s.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(int64(s.opts.HostConcurrency))
		s.hosts[host] = sem
	}
	return sem
}
