// Package scheduler runs named periodic jobs, such as the missed-assignment
// sweep, and keeps a run record for each.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is one run of a job. ctx is cancelled when the job is removed or
// the scheduler stops.
type TaskFn func(ctx context.Context) error

// Status is a snapshot of a registered job.
type Status struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   time.Time     `json:"last_run,omitzero"`
	LastError string        `json:"last_error,omitempty"`
}

type job struct {
	fn     TaskFn
	cancel context.CancelFunc
	status Status
}

// Option adjusts a job at registration.
type Option func(*jobOptions)

type jobOptions struct {
	immediate bool
}

// Immediately runs the job once at registration instead of waiting a full
// interval.
func Immediately() Option {
	return func(o *jobOptions) { o.immediate = true }
}

// Scheduler owns the job goroutines.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	Now func() time.Time
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		Now:    time.Now,
	}
}

// Every runs fn every interval under name, replacing any job of that name.
// A non-positive interval registers nothing.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFn, opts ...Option) {
	if interval <= 0 {
		return
	}
	var o jobOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{fn: fn, cancel: cancel, status: Status{Name: name, Interval: interval}}
	s.jobs[name] = j

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		if o.immediate {
			s.run(ctx, j)
		}
		for {
			select {
			case <-t.C:
				s.run(ctx, j)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler job registered", zap.String("job", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}
	started := s.Now()
	err := s.call(ctx, j)

	s.mu.Lock()
	j.status.Runs++
	j.status.LastRun = started
	j.status.LastError = ""
	if err != nil {
		j.status.Failures++
		j.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler job failed",
			zap.String("job", j.status.Name),
			zap.Duration("elapsed", s.Now().Sub(started)),
			zap.Error(err))
	}
}

// call runs the job, turning a panic into an error.
func (s *Scheduler) call(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx)
}

// Remove cancels the named job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		j.cancel()
		delete(s.jobs, name)
	}
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Tasks returns the registered job names, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses returns a snapshot of every job, sorted by name.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
