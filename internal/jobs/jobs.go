// Package jobs runs the periodic maintenance work: expiring stale pending
// tickets and crediting fees whose completion event was lost.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Task does one round of work and reports how many items it handled.
type Task func(ctx context.Context) (int, error)

type Scheduler struct {
	s gocron.Scheduler
}

func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{s: s}, nil
}

// Every runs task each interval. A run still in progress when the next one
// is due makes the scheduler skip ahead instead of overlapping.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			run(ctx, name, task)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.s.Start()
	slog.Info("Job scheduler started", "jobs", len(s.s.Jobs()))
}

// Shutdown stops scheduling and waits for running jobs to return.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}

func run(ctx context.Context, name string, task Task) {
	start := time.Now()
	n, err := task(ctx)
	if err != nil {
		slog.Error("Job failed", "job", name, "handled", n, "error", err)
		return
	}
	if n > 0 {
		slog.Info("Job finished", "job", name, "handled", n, "duration", time.Since(start))
	}
}
