// Package scheduler runs the periodic back-office jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pkordes/wayfarer/internal/domain"
)

// PayoutGenerator creates the pending payouts for a closed period.
type PayoutGenerator interface {
	GeneratePayouts(ctx context.Context, start, end time.Time) ([]domain.Payout, error)
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron     *cron.Cron
	payouts  PayoutGenerator
	schedule string
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
	timeout  time.Duration
}

// New returns a Scheduler that generates last month's payouts on schedule
// (standard five-field cron syntax, evaluated in loc).
func New(payouts PayoutGenerator, schedule string, loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger))),
		payouts:  payouts,
		schedule: schedule,
		loc:      loc,
		now:      time.Now,
		log:      log,
		timeout:  5 * time.Minute,
	}
}

// Start registers the jobs and starts the runner. An invalid schedule is
// returned as an error and nothing is started.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runPayouts); err != nil {
		return fmt.Errorf("scheduler.Start: payout job %q: %w", s.schedule, err)
	}
	s.log.Info("scheduled payout job", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops the runner. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runPayouts() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.GeneratePreviousMonth(ctx); err != nil {
		s.log.ErrorContext(ctx, "payout job failed", "error", err)
	}
}

// GeneratePreviousMonth creates the payouts for the calendar month before now.
func (s *Scheduler) GeneratePreviousMonth(ctx context.Context) ([]domain.Payout, error) {
	start, end := PreviousMonth(s.now(), s.loc)
	created, err := s.payouts.GeneratePayouts(ctx, start, end)
	if err != nil {
		return created, fmt.Errorf("scheduler.GeneratePreviousMonth: %w", err)
	}
	return created, nil
}

// PreviousMonth returns the first and last day of the month before now in loc.
func PreviousMonth(now time.Time, loc *time.Location) (start, end time.Time) {
	now = now.In(loc)
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return firstOfThis.AddDate(0, -1, 0), firstOfThis.AddDate(0, 0, -1)
}
