// Package watch runs checks on cron schedules and serves their status over
// HTTP.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownJob is returned when triggering a job that was never added.
var ErrUnknownJob = errors.New("unknown job")

// Schedule returns the next activation time, later than the given time.
type Schedule interface {
	Next(time.Time) time.Time
}

// ParseSchedule parses a standard 5 field cron spec or a descriptor such as
// "@hourly" or "@every 30m". Specs that never activate, eg. "0 0 30 2 *", are
// rejected.
func ParseSchedule(spec string) (Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %v", spec, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("invalid schedule %q: never activates", spec)
	}
	return sched, nil
}

// JobFunc runs a check once.
type JobFunc func(ctx context.Context) error

// RunObserver is told about every completed job run.
type RunObserver interface {
	ObserveCheck(check string, start time.Time, err error)
}

// JobStatus describes the most recent and next run of a job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastStart time.Time `json:"lastStart,omitempty"`
	LastEnd   time.Time `json:"lastEnd,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	NextRun   time.Time `json:"nextRun,omitempty"`
}

type job struct {
	name     string
	schedule Schedule
	run      JobFunc

	// running serializes scheduled and triggered runs of the job.
	running sync.Mutex
}

// Scheduler runs jobs on their schedules until its context is cancelled.
type Scheduler struct {
	logger   log.FieldLogger
	observer RunObserver
	now      func() time.Time

	mu     sync.RWMutex
	jobs   map[string]*job
	status map[string]*JobStatus
}

// NewScheduler creates a Scheduler. observer may be nil.
func NewScheduler(logger log.FieldLogger, observer RunObserver) *Scheduler {
	return &Scheduler{
		logger:   logger.WithField("component", "scheduler"),
		observer: observer,
		now:      time.Now,
		jobs:     make(map[string]*job),
		status:   make(map[string]*JobStatus),
	}
}

// Add registers run under name on the cron spec.
func (s *Scheduler) Add(name, spec string, run JobFunc) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("job %s: %v", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}
	s.jobs[name] = &job{name: name, schedule: sched, run: run}
	s.status[name] = &JobStatus{Name: name, Schedule: spec}
	return nil
}

// Run starts every job and blocks until ctx is cancelled and all running
// jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	s.logger.Infof("scheduler started with %d jobs", len(jobs))
	wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	logger := s.logger.WithField("job", j.name)
	for {
		next := j.schedule.Next(s.now())
		if next.IsZero() {
			logger.Error("schedule has no next activation, job will not run again")
			return
		}
		s.setNextRun(j.name, next)
		logger.Debugf("next run at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.execute(ctx, j)
	}
}

// Trigger runs the named job immediately and returns its error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	j.running.Lock()
	defer j.running.Unlock()

	logger := s.logger.WithField("job", j.name)
	start := s.now()
	logger.Info("running check")
	err := j.run(ctx)
	end := s.now()
	if err != nil {
		logger.WithError(err).Error("check failed")
	} else {
		logger.Infof("check completed in %s", end.Sub(start))
	}
	if s.observer != nil {
		s.observer.ObserveCheck(j.name, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[j.name]
	st.LastStart = start
	st.LastEnd = end
	st.Runs++
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	return err
}

func (s *Scheduler) setNextRun(name string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name].NextRun = next
}

// Status returns the status of every job sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
