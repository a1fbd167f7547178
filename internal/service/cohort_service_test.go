package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/cohort"
	"finmate/internal/domain"
	"finmate/internal/errors"
)

func (s *ServiceSuite) bandsOf(cohorts []domain.Cohort) []cohort.Band {
	bands := make([]cohort.Band, len(cohorts))
	for i, c := range cohorts {
		bands[i] = cohort.Band{Position: c.Position, Min: c.MinAmount, Max: c.MaxAmount}
	}
	return bands
}

func (s *ServiceSuite) userCohort(userID int64) *domain.Cohort {
	c, err := s.store.Cohorts().GetUserCohort(context.Background(), userID)
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestRebuild_AssignsEveryActiveUserToContainingBand() {
	feb := month(2026, time.February)
	for userID, amount := range map[int64]string{1: "10000", 2: "20000", 3: "30000", 4: "40000", 5: "50000"} {
		s.record(userID, amount, domain.CategoryFood, feb)
	}

	result, err := s.cohorts.Rebuild(context.Background(), feb)
	s.Require().NoError(err)

	s.Equal(5, result.ActiveUsers)
	s.EqualValues(5, result.Reassigned)
	s.Zero(result.Retired)
	s.Require().Len(result.Bands, 5)
	s.Require().NoError(cohort.Validate(s.bandsOf(result.Bands)))

	active, err := s.cohorts.CurrentBands(context.Background())
	s.Require().NoError(err)
	s.Require().Len(active, 5)

	for userID := int64(1); userID <= 5; userID++ {
		c := s.userCohort(userID)
		s.Require().NotNil(c, "user %d unassigned", userID)
		s.Equal(int(userID-1), c.Position)
		s.True(c.Contains(decimal.NewFromInt(userID*10000)))
	}

	run, err := s.store.CohortRuns().GetRun(context.Background(), feb)
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.NotNil(run.CompletedAt)
	s.Equal(5, run.ActiveUsers)
}

func (s *ServiceSuite) TestRebuild_NextPeriodRetiresOldBandsAndReassigns() {
	feb, mar := month(2026, time.February), month(2026, time.March)
	s.record(1, "10000", domain.CategoryFood, feb)
	s.record(2, "90000", domain.CategoryFood, feb)

	first, err := s.cohorts.Rebuild(context.Background(), feb)
	s.Require().NoError(err)
	lowBand := s.userCohort(1)
	s.Require().NotNil(lowBand)

	// User 1 now spends the most, user 3 appears, user 2 goes quiet.
	s.record(1, "500000", domain.CategoryShopping, mar)
	s.record(3, "1000", domain.CategoryFood, mar)

	second, err := s.cohorts.Rebuild(context.Background(), mar)
	s.Require().NoError(err)
	s.EqualValues(len(first.Bands), second.Retired)
	s.Equal(2, second.ActiveUsers)

	active, err := s.cohorts.CurrentBands(context.Background())
	s.Require().NoError(err)
	for _, c := range active {
		s.Equal(mar, c.Period)
	}

	moved := s.userCohort(1)
	s.Require().NotNil(moved)
	s.NotEqual(lowBand.ID, moved.ID)
	s.Equal(len(active)-1, moved.Position)

	// Inactive users keep their previous, now retired, band.
	quiet := s.userCohort(2)
	s.Require().NotNil(quiet)
	s.NotNil(quiet.RetiredAt)
}

func (s *ServiceSuite) TestRebuild_SamePeriodTwiceIsRejected() {
	feb := month(2026, time.February)
	s.record(1, "10000", domain.CategoryFood, feb)

	_, err := s.cohorts.Rebuild(context.Background(), feb)
	s.Require().NoError(err)

	_, err = s.cohorts.Rebuild(context.Background(), feb)
	s.True(errors.HasCode(err, errors.CohortPeriodProcessed), "got %v", err)

	// The scheduler treats it as done.
	s.NoError(s.cohorts.RunScheduled(context.Background(), feb))
}

func (s *ServiceSuite) TestRebuild_ConcurrentRebuildIsRejectedAndLeavesNoTrace() {
	feb := month(2026, time.February)
	s.record(1, "10000", domain.CategoryFood, feb)

	ctx := context.Background()
	holder, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	_, err = holder.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('finmate:cohort-rebuild'))`)
	s.Require().NoError(err)

	_, err = s.cohorts.Rebuild(ctx, feb)
	s.True(errors.HasCode(err, errors.CohortRebuildInProgress), "got %v", err)

	run, err := s.store.CohortRuns().GetRun(ctx, feb)
	s.Require().NoError(err)
	s.Nil(run)

	s.Require().NoError(holder.Rollback())

	_, err = s.cohorts.Rebuild(ctx, feb)
	s.NoError(err)
}

func (s *ServiceSuite) TestRebuild_EmptyPeriodKeepsCurrentBands() {
	feb := month(2026, time.February)
	s.record(1, "10000", domain.CategoryFood, feb)
	s.record(2, "20000", domain.CategoryFood, feb)
	first, err := s.cohorts.Rebuild(context.Background(), feb)
	s.Require().NoError(err)

	result, err := s.cohorts.Rebuild(context.Background(), month(2026, time.March))
	s.Require().NoError(err)
	s.Zero(result.ActiveUsers)
	s.Zero(result.Retired)

	active, err := s.cohorts.CurrentBands(context.Background())
	s.Require().NoError(err)
	s.Require().Len(active, len(first.Bands))
	for i := range active {
		s.Equal(first.Bands[i].ID, active[i].ID)
	}
}

func (s *ServiceSuite) TestRebuild_FirstEverEmptyPeriodLeavesNoBands() {
	result, err := s.cohorts.Rebuild(context.Background(), month(2026, time.January))
	s.Require().NoError(err)
	s.Empty(result.Bands)
}

func (s *ServiceSuite) TestRebuild_RejectsMonthsThatAreNotOver() {
	current := domain.MonthOf(clock)
	s.record(1, "10000", domain.CategoryFood, current.Prev())

	for _, period := range []domain.Month{current, current.Next(), current.AddMonths(12)} {
		_, err := s.cohorts.Rebuild(context.Background(), period)
		s.True(errors.HasCode(err, errors.InvalidMonth), "period %s: got %v", period, err)
	}

	latest, err := s.store.CohortRuns().LatestRun(context.Background())
	s.Require().NoError(err)
	s.Nil(latest)
	active, err := s.cohorts.CurrentBands(context.Background())
	s.Require().NoError(err)
	s.Empty(active)

	result, err := s.cohorts.RebuildPrevious(context.Background())
	s.Require().NoError(err)
	s.Equal(current.Prev(), result.Period)
}

func (s *ServiceSuite) TestRebuild_RejectsPeriodBeforeLatestRun() {
	feb, mar := month(2026, time.February), month(2026, time.March)
	s.record(1, "10000", domain.CategoryFood, feb)
	s.record(1, "20000", domain.CategoryFood, mar)
	s.record(2, "90000", domain.CategoryFood, mar)

	newest, err := s.cohorts.Rebuild(context.Background(), mar)
	s.Require().NoError(err)

	_, err = s.cohorts.Rebuild(context.Background(), feb)
	s.True(errors.HasCode(err, errors.InvalidMonth), "got %v", err)

	run, err := s.store.CohortRuns().GetRun(context.Background(), feb)
	s.Require().NoError(err)
	s.Nil(run)

	active, err := s.cohorts.CurrentBands(context.Background())
	s.Require().NoError(err)
	s.Require().Len(active, len(newest.Bands))
	for i := range active {
		s.Equal(newest.Bands[i].ID, active[i].ID)
		s.Equal(mar, active[i].Period)
	}
}

func (s *ServiceSuite) TestRebuild_FailureMidwayKeepsPreviousStateAndRetrySucceeds() {
	ctx := context.Background()
	feb, mar := month(2026, time.February), month(2026, time.March)
	s.record(1, "10000", domain.CategoryFood, feb)
	s.record(2, "90000", domain.CategoryFood, feb)

	first, err := s.cohorts.Rebuild(ctx, feb)
	s.Require().NoError(err)
	before := map[int64]int64{1: s.userCohort(1).ID, 2: s.userCohort(2).ID}

	// Band inserts run after the old bands are retired.
	_, err = s.pg.DB.ExecContext(ctx, `
		CREATE FUNCTION refuse_cohort_insert() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'cohort inserts disabled';
		END
		$$ LANGUAGE plpgsql`)
	s.Require().NoError(err)
	_, err = s.pg.DB.ExecContext(ctx, `
		CREATE TRIGGER refuse_cohort_insert BEFORE INSERT ON cohorts
		FOR EACH ROW EXECUTE FUNCTION refuse_cohort_insert()`)
	s.Require().NoError(err)
	dropped := false
	drop := func() {
		if dropped {
			return
		}
		dropped = true
		_, err := s.pg.DB.ExecContext(ctx, `DROP TRIGGER IF EXISTS refuse_cohort_insert ON cohorts`)
		s.NoError(err)
		_, err = s.pg.DB.ExecContext(ctx, `DROP FUNCTION IF EXISTS refuse_cohort_insert()`)
		s.NoError(err)
	}
	defer drop()

	s.record(1, "500000", domain.CategoryShopping, mar)
	s.record(3, "1000", domain.CategoryFood, mar)

	_, err = s.cohorts.Rebuild(ctx, mar)
	s.Require().Error(err)

	active, err := s.cohorts.CurrentBands(ctx)
	s.Require().NoError(err)
	s.Require().Len(active, len(first.Bands))
	for i := range active {
		s.Equal(first.Bands[i].ID, active[i].ID)
		s.Nil(active[i].RetiredAt)
	}
	for userID, cohortID := range before {
		c := s.userCohort(userID)
		s.Require().NotNil(c)
		s.Equal(cohortID, c.ID, "user %d", userID)
	}
	s.Nil(s.userCohort(3))

	run, err := s.store.CohortRuns().GetRun(ctx, mar)
	s.Require().NoError(err)
	s.Nil(run)
	latest, err := s.store.CohortRuns().LatestRun(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal(feb, latest.Period)

	drop()

	retried, err := s.cohorts.Rebuild(ctx, mar)
	s.Require().NoError(err)
	s.EqualValues(len(first.Bands), retried.Retired)
	s.Equal(2, retried.ActiveUsers)
	s.Equal(mar, s.userCohort(1).Period)
	s.Equal(mar, s.userCohort(3).Period)

	run, err = s.store.CohortRuns().GetRun(ctx, mar)
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.NotNil(run.CompletedAt)
}
