// Package scheduler runs the periodic maintenance jobs of the ledger service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is the body of a periodic job
type JobFunc func(ctx context.Context) error

// Job is a named task run every Interval
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero uses the scheduler default.
	Timeout time.Duration
	// RunOnStart runs the job once as soon as the scheduler starts
	RunOnStart bool
	Run        JobFunc
}

// JobStats counts the runs of one job
type JobStats struct {
	Runs      int64
	Failures  int64
	LastRun   time.Time
	LastError string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled    bool
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:    true,
		JobTimeout: 5 * time.Minute,
	}
}

// Scheduler runs each registered job on its own ticker
type Scheduler struct {
	config SchedulerConfig
	logger *zap.Logger

	jobs      map[string]*Job
	order     []string
	stats     map[string]*JobStats
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		logger: logger,
		jobs:   make(map[string]*Job),
		stats:  make(map[string]*JobStats),
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("%w: job needs a name, a body and a positive interval", ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: duplicate job %q", ErrInvalidConfig, job.Name)
	}
	j := job
	s.jobs[job.Name] = &j
	s.order = append(s.order, job.Name)
	s.stats[job.Name] = &JobStats{}
	return nil
}

// Start starts one loop per registered job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning || !s.config.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	jobs := make([]*Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("Scheduler started", zap.Strings("jobs", s.order))
	return nil
}

// Stop cancels every loop and waits for running jobs to return
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow runs a registered job immediately in the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, job)
}

// Stats returns a copy of the run counters of every job
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		_ = s.execute(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.config.JobTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := s.safeRun(jobCtx, job)

	s.mu.Lock()
	st := s.stats[job.Name]
	st.Runs++
	st.LastRun = start
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("Job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *Scheduler) safeRun(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}
