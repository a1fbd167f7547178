package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

func (s *ServiceSuite) TestReport_CreatedOnceThenCached() {
	feb, mar := month(2026, time.February), month(2026, time.March)
	s.record(1, "20000", domain.CategoryFood, feb)
	s.record(1, "50000", domain.CategoryFood, mar)
	s.record(1, "30000", domain.CategoryTransport, mar)
	s.record(2, "10000", domain.CategoryFood, mar)
	_, err := s.cohorts.Rebuild(context.Background(), mar)
	s.Require().NoError(err)

	first, err := s.reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, first.Status)
	s.Equal(domain.OutcomeSucceeded, first.Report.NarrativeStatus)
	s.Contains(first.Report.RenderedText, "[2월 소비 vs 3월 소비]")
	s.Contains(first.Report.RenderedText, s.narrator.Narrative.GroupComparison)

	input := s.narrator.LastInput()
	s.assertDecimal("20000", input.TwoMonthsAgo.Total)
	s.assertDecimal("80000", input.LastMonth.Total)
	s.assertDecimal("80000", input.CohortAverage.Total)
	s.Equal("8만원 이상", input.CohortRange)

	second, err := s.reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportCached, second.Status)
	s.Equal(first.Report.ID, second.Report.ID)
	s.Equal(first.Report.RenderedText, second.Report.RenderedText)
	s.Equal(1, s.narrator.Calls())

	var payload domain.ReportPayload
	s.Require().NoError(json.Unmarshal(second.Report.RawPayload, &payload))
	s.Equal(s.narrator.Narrative, payload.Narrative)
	s.Equal(domain.OutcomeSucceeded, payload.Outcome)
}

func (s *ServiceSuite) TestReport_UserWithoutHistoryGetsPlaceholderInputs() {
	result, err := s.reports.GetOrCreate(context.Background(), 77, month(2026, time.March))
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, result.Status)

	input := s.narrator.LastInput()
	s.True(input.TwoMonthsAgo.IsEmpty())
	s.True(input.LastMonth.IsEmpty())
	s.True(input.CohortAverage.IsEmpty())
	s.Equal("정보 없음", input.CohortRange)
}

func (s *ServiceSuite) TestReport_ConcurrentRequestsNarrateOnce() {
	s.narrator.Delay = 200 * time.Millisecond
	mar := month(2026, time.March)
	s.record(1, "10000", domain.CategoryFood, mar)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*ReportResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.reports.GetOrCreate(context.Background(), 1, mar)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(results[0].Report.ID, results[i].Report.ID)
	}
	s.Equal(1, s.narrator.Calls())
}

func (s *ServiceSuite) TestReport_SeparateInstancesNarrateOnce() {
	s.narrator.Delay = 200 * time.Millisecond
	mar := month(2026, time.March)
	s.record(1, "10000", domain.CategoryFood, mar)

	// Two services do not share in-process state, only the database.
	instances := []*ReportService{s.newReportService(true), s.newReportService(true)}
	results := make([]*ReportResult, len(instances))
	errs := make([]error, len(instances))

	var wg sync.WaitGroup
	for i, svc := range instances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrCreate(context.Background(), 1, mar)
		}()
	}
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])
	s.Equal(results[0].Report.ID, results[1].Report.ID)
	s.ElementsMatch([]domain.ReportStatus{domain.ReportCreated, domain.ReportCached},
		[]domain.ReportStatus{results[0].Status, results[1].Status})
	s.Equal(1, s.narrator.Calls())
}

func (s *ServiceSuite) TestReport_NarratorFailureIsCachedWithPlaceholders() {
	s.narrator.Fail = true
	mar := month(2026, time.March)

	first, err := s.reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, first.Status)
	s.Equal(domain.OutcomeGenerationFailed, first.Report.NarrativeStatus)
	s.Contains(first.Report.RenderedText, domain.MissingSection)

	s.narrator.Fail = false
	second, err := s.reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportCached, second.Status)
	s.Equal(domain.OutcomeGenerationFailed, second.Report.NarrativeStatus)
	s.Equal(1, s.narrator.Calls())
}

func (s *ServiceSuite) TestReport_NarratorFailureUncachedWhenDegradedCachingOff() {
	s.narrator.Fail = true
	reports := s.newReportService(false)
	mar := month(2026, time.March)

	first, err := reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportUncached, first.Status)
	s.Contains(first.Report.RenderedText, domain.MissingSection)

	stored, err := s.store.Reports().GetReport(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Nil(stored)

	s.narrator.Fail = false
	second, err := reports.GetOrCreate(context.Background(), 1, mar)
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, second.Status)
	s.Equal(domain.OutcomeSucceeded, second.Report.NarrativeStatus)
	s.Equal(2, s.narrator.Calls())
}

func (s *ServiceSuite) TestReport_InvalidUser() {
	_, err := s.reports.GetOrCreate(context.Background(), 0, month(2026, time.March))
	s.True(errors.HasCode(err, errors.InvalidUserID))
}

func (s *ServiceSuite) TestReport_DefaultMonthIsPreviousInZone() {
	// 2026-05-01 00:30 in Seoul is still April 30th in UTC.
	s.reports.now = func() time.Time { return time.Date(2026, time.April, 30, 15, 30, 0, 0, time.UTC) }
	s.Equal(month(2026, time.April), s.reports.DefaultMonth())
}

func (s *ServiceSuite) TestReport_RejectsMonthsThatAreNotOver() {
	current := domain.MonthOf(clock)
	s.record(1, "10000", domain.CategoryFood, current.Prev())

	for _, m := range []domain.Month{current, current.Next()} {
		_, err := s.reports.GetOrCreate(context.Background(), 1, m)
		s.True(errors.HasCode(err, errors.InvalidMonth), "month %s: got %v", m, err)

		stored, err := s.store.Reports().GetReport(context.Background(), 1, m)
		s.Require().NoError(err)
		s.Nil(stored)
	}
	s.Zero(s.narrator.Calls())

	result, err := s.reports.GetOrCreate(context.Background(), 1, current.Prev())
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, result.Status)
}

func (s *ServiceSuite) TestReport_CompletedMonthFollowsConfiguredZone() {
	// 2026-05-01 00:30 in Seoul: April is over there but not yet in UTC.
	s.reports.now = func() time.Time { return time.Date(2026, time.April, 30, 15, 30, 0, 0, time.UTC) }

	_, err := s.reports.GetOrCreate(context.Background(), 1, month(2026, time.May))
	s.True(errors.HasCode(err, errors.InvalidMonth), "got %v", err)

	result, err := s.reports.GetOrCreate(context.Background(), 1, month(2026, time.April))
	s.Require().NoError(err)
	s.Equal(domain.ReportCreated, result.Status)
}
