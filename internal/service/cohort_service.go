package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/cohort"
	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/events"
	"finmate/internal/repository"
)

type CohortService struct {
	store      *repository.Store
	aggregator *AggregationService
	publisher  events.Publisher
	bandCount  int
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewCohortService(
	store *repository.Store,
	aggregator *AggregationService,
	publisher events.Publisher,
	bandCount int,
	location *time.Location,
	logger *slog.Logger,
) *CohortService {
	return &CohortService{
		store:      store,
		aggregator: aggregator,
		publisher:  publisher,
		bandCount:  bandCount,
		location:   location,
		logger:     logger.With("component", "cohort_assigner"),
		now:        time.Now,
	}
}

// RebuildResult summarizes one committed rebuild.
type RebuildResult struct {
	Period      domain.Month    `json:"period"`
	ActiveUsers int             `json:"active_users"`
	Reassigned  int64           `json:"reassigned"`
	Retired     int64           `json:"retired"`
	Bands       []domain.Cohort `json:"bands"`
}

// Rebuild recomputes the band set from period's totals and reassigns every
// user active in period. Everything happens in one transaction: a failure
// leaves the previous band set, memberships and run ledger untouched.
//
// Only completed months are accepted, and never one older than the latest
// recorded run.
func (s *CohortService) Rebuild(ctx context.Context, period domain.Month) (*RebuildResult, error) {
	start := s.now()
	if current := domain.MonthOf(start.In(s.location)); !period.Before(current) {
		return nil, errors.NewAppErrorf(errors.InvalidMonth, "cohort period %s is not a completed month", period)
	}
	s.logger.Info("Rebuilding cohorts", "period", period, "band_count", s.bandCount)

	result := &RebuildResult{Period: period}
	err := s.store.WithTransaction(ctx, func(txStore *repository.Store) error {
		acquired, err := txStore.Locks().TryLockCohortRebuild(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			return errors.ErrCohortRebuildInProgress
		}

		latest, err := txStore.CohortRuns().LatestRun(ctx)
		if err != nil {
			return err
		}
		if latest != nil && period.Before(latest.Period) {
			return errors.NewAppErrorf(errors.InvalidMonth, "cohort period %s precedes the latest run %s", period, latest.Period)
		}

		if err := txStore.CohortRuns().ClaimRun(ctx, period, start); err != nil {
			return err
		}

		totals, err := s.aggregator.withStore(txStore).MonthlyTotals(ctx, period)
		if err != nil {
			return err
		}
		result.ActiveUsers = len(totals)

		if len(totals) == 0 {
			// Nobody to place: keep the current bands, only record the run.
			bands, err := txStore.Cohorts().ListActive(ctx)
			if err != nil {
				return err
			}
			result.Bands = bands
			return s.completeRun(ctx, txStore, period, 0, len(bands))
		}

		amounts := make([]decimal.Decimal, len(totals))
		for i, t := range totals {
			amounts[i] = t.Total
		}
		bands, err := cohort.Partition(amounts, s.bandCount)
		if err != nil {
			return errors.NewAppError(errors.InternalError, "failed to partition totals").WithDetails(err.Error())
		}

		if result.Retired, err = txStore.Cohorts().RetireActive(ctx, start); err != nil {
			return err
		}

		cohorts := make([]domain.Cohort, len(bands))
		for i, b := range bands {
			cohorts[i] = domain.Cohort{
				Position:  b.Position,
				MinAmount: b.Min,
				MaxAmount: b.Max,
				Period:    period,
				CreatedAt: start,
			}
		}
		if err := txStore.Cohorts().CreateCohorts(ctx, cohorts); err != nil {
			return err
		}

		assignments := make([]domain.CohortAssignment, len(totals))
		for i, t := range totals {
			idx := cohort.Locate(bands, t.Total)
			if idx < 0 {
				return errors.NewAppErrorf(errors.InternalError, "user %d total %s fits no band", t.UserID, t.Total)
			}
			assignments[i] = domain.CohortAssignment{UserID: t.UserID, CohortID: cohorts[idx].ID}
		}
		if result.Reassigned, err = txStore.Users().AssignCohorts(ctx, assignments); err != nil {
			return err
		}

		result.Bands = cohorts
		return s.completeRun(ctx, txStore, period, len(totals), len(cohorts))
	})
	if err != nil {
		s.logger.Warn("Cohort rebuild did not commit", "period", period, "error", err)
		return nil, err
	}

	s.logger.Info("Cohorts rebuilt",
		"period", period,
		"active_users", result.ActiveUsers,
		"bands", len(result.Bands),
		"reassigned", result.Reassigned,
		"duration", time.Since(start))

	if err := s.publisher.PublishCohortsRebuilt(ctx, &events.CohortsRebuiltMessage{
		Period:      period,
		BandCount:   len(result.Bands),
		ActiveUsers: result.ActiveUsers,
		Reassigned:  result.Reassigned,
		Timestamp:   s.now(),
	}); err != nil {
		s.logger.Warn("Failed to publish cohorts rebuilt event", "period", period, "error", err)
	}

	return result, nil
}

// RebuildPrevious rebuilds from the last completed month relative to now.
func (s *CohortService) RebuildPrevious(ctx context.Context) (*RebuildResult, error) {
	return s.Rebuild(ctx, domain.MonthOf(s.now().In(s.location)).Prev())
}

// RunScheduled adapts Rebuild to the scheduler job signature. A period that
// was already processed is not an error for the scheduler.
func (s *CohortService) RunScheduled(ctx context.Context, period domain.Month) error {
	_, err := s.Rebuild(ctx, period)
	if errors.HasCode(err, errors.CohortPeriodProcessed) {
		s.logger.Info("Cohort period already processed, skipping", "period", period)
		return nil
	}
	return err
}

// CurrentBands lists the active band set ordered by position.
func (s *CohortService) CurrentBands(ctx context.Context) ([]domain.Cohort, error) {
	return s.store.Cohorts().ListActive(ctx)
}

func (s *CohortService) completeRun(ctx context.Context, txStore *repository.Store, period domain.Month, activeUsers, bandCount int) error {
	completedAt := s.now()
	return txStore.CohortRuns().CompleteRun(ctx, &domain.CohortRun{
		Period:      period,
		CompletedAt: &completedAt,
		ActiveUsers: activeUsers,
		BandCount:   bandCount,
	})
}
