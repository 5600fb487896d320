// Job scheduling for the periodic and one-off sweeps: one-off jobs at a point in time, and
// recurring jobs on a standard five-field cron expression.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type JobEvent struct {
	ID   string
	Name string
	// false for one-off jobs
	FromCron bool
}

type Handler func(ctx context.Context, ev JobEvent)

type Job struct {
	ID   string
	Name string
	// zero for cron jobs
	RunAt time.Time
	Cron  string
}

type Scheduler interface {
	RunAt(ctx context.Context, name string, at time.Time) (string, error)
	RunCron(ctx context.Context, name, spec string) (string, error)
	ListJobs(ctx context.Context) ([]Job, error)
	CancelJob(ctx context.Context, id string) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Next activation of a cron expression strictly after the given time.
func NextCron(spec string, after time.Time) (time.Time, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return sched.Next(after), nil
}
