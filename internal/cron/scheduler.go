package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// newParser accepts standard 5-field expressions and descriptors such as
// "@hourly".
func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSchedule reports whether expr is a schedule the scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := newParser().Parse(expr); err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}
	return nil
}

// ResultFunc observes every finished job run.
type ResultFunc func(job string, err error, elapsed time.Duration)

// Scheduler runs registered jobs on their cron schedules. A job never runs
// in parallel with itself: a tick that finds the previous run still going
// is skipped.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     []Job
	byName   map[string]Job
	specs    map[string]cron.Schedule
	locks    map[string]*sync.Mutex
	logger   *slog.Logger
	onResult ResultFunc
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		byName: make(map[string]Job),
		specs:  make(map[string]cron.Schedule),
		locks:  make(map[string]*sync.Mutex),
		logger: logger.With("component", "cron"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnResult sets a callback invoked after every run, scheduled or manual.
func (s *Scheduler) OnResult(fn ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// RegisterJob adds a job. Names must be unique and the schedule must
// parse.
func (s *Scheduler) RegisterJob(j Job) error {
	name := j.Name()
	if name == "" {
		return errors.New("cron: job name must not be empty")
	}
	spec, err := newParser().Parse(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.byName[name] = j
	s.specs[name] = spec
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name()
	}
	return names
}

// Start begins executing jobs on their schedules. Calling it twice is an
// error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("cron: scheduler already started")
	}

	c := cron.New(cron.WithParser(newParser()))
	for _, job := range s.jobs {
		c.Schedule(s.specs[job.Name()], cron.FuncJob(func() {
			if err := s.run(s.ctx, job); errors.Is(err, ErrJobBusy) {
				s.logger.Warn("job still running, skipping tick", "job", job.Name())
			}
		}))
	}

	s.cron = c
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow runs the named job immediately on the caller's goroutine, sharing
// the per-job lock with scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	s.mu.Lock()
	lock := s.locks[job.Name()]
	onResult := s.onResult
	s.mu.Unlock()

	if !lock.TryLock() {
		return ErrJobBusy
	}
	defer lock.Unlock()

	start := time.Now()
	s.logger.Debug("job started", "job", job.Name())
	err := job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("job failed", "job", job.Name(), "error", err)
	} else {
		s.logger.Debug("job completed", "job", job.Name(), "duration", elapsed)
	}
	if onResult != nil {
		onResult(job.Name(), err, elapsed)
	}
	return err
}

// Stop cancels running jobs and waits for them to return, or for ctx to
// end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	s.cancel()
	if c == nil {
		return nil
	}
	// Running jobs take s.mu, so wait without holding it.
	select {
	case <-c.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for running jobs: %w", ctx.Err())
	}
}
