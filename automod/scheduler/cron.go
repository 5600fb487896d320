package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type cronJob struct {
	job     Job
	entryID cron.EntryID
	timer   *time.Timer
}

// In-process scheduler. Handlers are registered by job name; each job run gets a fresh
// context derived from the one passed to Start, and panics in handlers are recovered.
type CronScheduler struct {
	Logger *slog.Logger

	cron     *cron.Cron
	mu       sync.Mutex
	handlers map[string]Handler
	jobs     map[string]*cronJob
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ Scheduler = (*CronScheduler)(nil)

func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		Logger:   logger.With("system", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
		handlers: make(map[string]Handler),
		jobs:     make(map[string]*cronJob),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *CronScheduler) Handle(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stops scheduling new runs and waits (up to the given timeout) for running cron jobs.
func (s *CronScheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
	s.mu.Unlock()
	s.cancel()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("cron stop timeout")
	}
}

func (s *CronScheduler) dispatch(ev JobEvent) {
	s.mu.Lock()
	h, ok := s.handlers[ev.Name]
	if !ev.FromCron {
		delete(s.jobs, ev.ID)
	}
	s.mu.Unlock()
	if !ok {
		s.Logger.Warn("no handler registered for job", "name", ev.Name, "id", ev.ID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("scheduled job panicked", "name", ev.Name, "id", ev.ID, "panic", r)
		}
	}()
	jobRuns.WithLabelValues(ev.Name).Inc()
	h(s.ctx, ev)
}

func (s *CronScheduler) RunAt(ctx context.Context, name string, at time.Time) (string, error) {
	id := uuid.NewString()
	ev := JobEvent{ID: id, Name: name}

	s.mu.Lock()
	defer s.mu.Unlock()
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.jobs[id] = &cronJob{
		job:   Job{ID: id, Name: name, RunAt: at},
		timer: time.AfterFunc(delay, func() { s.dispatch(ev) }),
	}
	return id, nil
}

func (s *CronScheduler) RunCron(ctx context.Context, name, spec string) (string, error) {
	id := uuid.NewString()
	ev := JobEvent{ID: id, Name: name, FromCron: true}

	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, err := s.cron.AddFunc(spec, func() { s.dispatch(ev) })
	if err != nil {
		return "", fmt.Errorf("registering cron job %s: %w", name, err)
	}
	s.jobs[id] = &cronJob{
		job:     Job{ID: id, Name: name, Cron: spec},
		entryID: entryID,
	}
	return id, nil
}

func (s *CronScheduler) ListJobs(ctx context.Context) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.job)
	}
	sortJobs(out)
	return out, nil
}

func (s *CronScheduler) CancelJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if j.timer != nil {
		j.timer.Stop()
	} else {
		s.cron.Remove(j.entryID)
	}
	delete(s.jobs, id)
	return nil
}

// cron jobs first, then one-off jobs by time
func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if (a.Cron != "") != (b.Cron != "") {
			return a.Cron != ""
		}
		if !a.RunAt.Equal(b.RunAt) {
			return a.RunAt.Before(b.RunAt)
		}
		return a.Name < b.Name
	})
}
