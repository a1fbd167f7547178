package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmate/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPeriodFor(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want domain.Month
	}{
		{"first of june", time.Date(2024, time.June, 1, 0, 0, 0, 0, seoul), domain.Month{Year: 2024, Month: time.May}},
		{"january rolls back a year", time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul), domain.Month{Year: 2024, Month: time.December}},
		// 2024-05-31 16:00 UTC is already June 1st in Seoul.
		{"zone decides the month", time.Date(2024, time.May, 31, 16, 0, 0, 0, time.UTC), domain.Month{Year: 2024, Month: time.May}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodFor(tt.at, seoul))
		})
	}
}

func TestStart_RejectsInvalidSpec(t *testing.T) {
	_, err := Start(TriggerConfig{Spec: "not a cron"}, func(context.Context, domain.Month) error { return nil }, discardLogger())
	assert.Error(t, err)
}

func TestNext_MonthlyDefault(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	h, err := Start(TriggerConfig{Location: seoul}, func(context.Context, domain.Month) error { return nil }, discardLogger())
	require.NoError(t, err)
	defer h.Stop(context.Background())

	next := h.Next(time.Date(2024, time.May, 15, 12, 0, 0, 0, seoul))
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, seoul), next)
}

func TestStart_FiresJobWithPreviousMonth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timer-based test in short mode")
	}

	periods := make(chan domain.Month, 4)
	h, err := Start(TriggerConfig{Spec: "@every 1s", Location: time.UTC}, func(ctx context.Context, period domain.Month) error {
		periods <- period
		return errors.New("first run fails, the next trigger still fires")
	}, discardLogger())
	require.NoError(t, err)
	defer h.Stop(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case p := <-periods:
			assert.Equal(t, domain.MonthOf(time.Now().UTC()).Prev(), p)
		case <-time.After(5 * time.Second):
			t.Fatal("job did not fire")
		}
	}
}

func TestStart_RecoversPanics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timer-based test in short mode")
	}

	var calls atomic.Int32
	h, err := Start(TriggerConfig{Spec: "@every 1s"}, func(context.Context, domain.Month) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, discardLogger())
	require.NoError(t, err)
	defer h.Stop(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestStop_CancelsJobContextOnTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timer-based test in short mode")
	}

	started := make(chan struct{})
	cancelled := make(chan struct{})
	h, err := Start(TriggerConfig{Spec: "@every 1s"}, func(ctx context.Context, _ domain.Month) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, discardLogger())
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Stop(stopCtx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}
