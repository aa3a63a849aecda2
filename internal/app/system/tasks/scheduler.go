// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means 30 seconds.
	Timeout time.Duration
	// RunOnStart runs the job once immediately instead of waiting one interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs each registered job on its own ticker.
type Scheduler struct {
	log  *zap.Logger
	jobs []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	g      *errgroup.Group
}

// NewScheduler creates a scheduler with no jobs.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{log: logger}
}

// Add registers a job. Jobs added after Start are not run.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start launches one goroutine per job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.g, ctx = errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		if j.Interval <= 0 || j.Run == nil {
			s.log.Warn("skipping invalid job", zap.String("job", j.Name))
			continue
		}
		s.g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
		s.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop cancels every job and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g == nil {
		return
	}
	s.cancel()
	_ = s.g.Wait()
	s.g = nil
	s.log.Info("background jobs stopped")
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	if j.RunOnStart {
		s.runOnce(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := j.Run(runCtx); err != nil && ctx.Err() == nil {
		s.log.Error("background job failed", zap.String("job", j.Name), zap.Error(err))
	}
}
