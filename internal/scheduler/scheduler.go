// Package scheduler fires the monthly cohort rebuild on a cron trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"finmate/internal/domain"
)

// DefaultSpec fires at midnight on the first day of every month.
const DefaultSpec = "0 0 1 * *"

type TriggerConfig struct {
	Spec     string
	Location *time.Location
}

// Job receives the completed data month the firing is responsible for.
type Job func(ctx context.Context, period domain.Month) error

// Handle owns a running trigger.
type Handle struct {
	cron     *cron.Cron
	schedule cron.Schedule
	location *time.Location
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// PeriodFor returns the month before the one containing t in loc.
func PeriodFor(t time.Time, loc *time.Location) domain.Month {
	return domain.MonthOf(t.In(loc)).Prev()
}

// Start registers job under cfg.Spec and starts the trigger. Missed firings
// are not replayed, a firing that overlaps a still running job is skipped and
// a panicking job is recovered.
func Start(cfg TriggerConfig, job Job, logger *slog.Logger) (*Handle, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger = logger.With("component", "scheduler")

	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}

	cronLogger := slogAdapter{logger: logger}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cron:     c,
		schedule: schedule,
		location: cfg.Location,
		cancel:   cancel,
		logger:   logger,
	}

	c.Schedule(schedule, cron.FuncJob(func() {
		firedAt := time.Now()
		period := PeriodFor(firedAt, cfg.Location)
		logger.Info("Scheduled run started", "period", period, "fired_at", firedAt)

		if err := job(ctx, period); err != nil {
			logger.Error("Scheduled run failed", "period", period, "error", err)
			return
		}
		logger.Info("Scheduled run finished", "period", period, "duration", time.Since(firedAt))
	}))

	c.Start()
	logger.Info("Scheduler started", "spec", cfg.Spec, "location", cfg.Location.String(), "next", h.Next(time.Now()))
	return h, nil
}

// Next returns the first firing strictly after now.
func (h *Handle) Next(now time.Time) time.Time {
	return h.schedule.Next(now.In(h.location))
}

// Stop prevents further firings and waits for a running job until ctx is done,
// at which point the job's context is cancelled.
func (h *Handle) Stop(ctx context.Context) error {
	done := h.cron.Stop()
	defer h.cancel()

	select {
	case <-done.Done():
		h.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Scheduler stop timed out, cancelling running job")
		return ctx.Err()
	}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
