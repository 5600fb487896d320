package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Records job registrations without running anything. For tests.
type MemScheduler struct {
	mu     sync.Mutex
	jobs   map[string]Job
	nextID int
}

var _ Scheduler = (*MemScheduler)(nil)

func NewMemScheduler() *MemScheduler {
	return &MemScheduler{jobs: make(map[string]Job)}
}

func (s *MemScheduler) add(j Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	j.ID = fmt.Sprintf("job-%d", s.nextID)
	s.jobs[j.ID] = j
	return j.ID
}

func (s *MemScheduler) RunAt(ctx context.Context, name string, at time.Time) (string, error) {
	return s.add(Job{Name: name, RunAt: at}), nil
}

func (s *MemScheduler) RunCron(ctx context.Context, name, spec string) (string, error) {
	if _, err := parser.Parse(spec); err != nil {
		return "", fmt.Errorf("registering cron job %s: %w", name, err)
	}
	return s.add(Job{Name: name, Cron: spec}), nil
}

func (s *MemScheduler) ListJobs(ctx context.Context) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sortJobs(out)
	return out, nil
}

func (s *MemScheduler) CancelJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Registered jobs with the given name.
func (s *MemScheduler) Named(name string) []Job {
	all, _ := s.ListJobs(context.Background())
	var out []Job
	for _, j := range all {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}
