package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
)

func (s *ServiceSuite) TestSummarize_SumsWithdrawalsPerCategory() {
	m := month(2026, time.March)
	s.record(1, "50000", domain.CategoryFood, m)
	s.record(1, "30000", domain.CategoryTransport, m)

	// Deposits never count as spending.
	at := time.Date(2026, time.March, 3, 9, 0, 0, 0, seoul)
	_, err := s.transactions.Record(context.Background(), &RecordRequest{
		UserID:      1,
		Amount:      decimal.NewFromInt(1000000),
		Description: "월급",
		Category:    string(domain.CategoryTransfer),
		Direction:   domain.DirectionDeposit,
		OccurredAt:  &at,
	})
	s.Require().NoError(err)

	summary, err := s.aggregator.Summarize(context.Background(), 1, m)
	s.Require().NoError(err)

	s.assertDecimal("80000", summary.Total)
	s.Len(summary.Summary, 2)
	s.assertDecimal("50000", summary.Summary[domain.CategoryFood])
	s.assertDecimal("30000", summary.Summary[domain.CategoryTransport])
}

func (s *ServiceSuite) TestSummarize_EmptyMonth() {
	summary, err := s.aggregator.Summarize(context.Background(), 42, month(2026, time.January))
	s.Require().NoError(err)

	s.True(summary.IsEmpty())
	s.True(summary.Total.IsZero())
	s.Empty(summary.Summary)
}

func (s *ServiceSuite) TestSummarize_MonthBoundaryUsesConfiguredZone() {
	lateMarch := time.Date(2026, time.March, 31, 23, 30, 0, 0, seoul)
	// Still March 31st in UTC.
	earlyApril := time.Date(2026, time.April, 1, 0, 30, 0, 0, seoul)

	for _, at := range []time.Time{lateMarch, earlyApril} {
		_, err := s.transactions.Record(context.Background(), &RecordRequest{
			UserID:      1,
			Amount:      decimal.NewFromInt(1000),
			Description: "점심",
			OccurredAt:  &at,
		})
		s.Require().NoError(err)
	}

	march, err := s.aggregator.Summarize(context.Background(), 1, month(2026, time.March))
	s.Require().NoError(err)
	april, err := s.aggregator.Summarize(context.Background(), 1, month(2026, time.April))
	s.Require().NoError(err)

	s.assertDecimal("1000", march.Total)
	s.assertDecimal("1000", april.Total)
}

func (s *ServiceSuite) TestCohortAverage_DividesByMemberCount() {
	m := month(2026, time.February)
	s.record(1, "10000", domain.CategoryFood, m)
	s.record(2, "30000", domain.CategoryFood, m)
	s.record(2, "5000", domain.CategoryTransport, m)

	s.cohorts.bandCount = 1
	result, err := s.cohorts.Rebuild(context.Background(), m)
	s.Require().NoError(err)
	s.Require().Len(result.Bands, 1)

	avg, cohort, err := s.aggregator.UserCohortAverage(context.Background(), 1, m)
	s.Require().NoError(err)
	s.Require().NotNil(cohort)
	s.Equal(result.Bands[0].ID, cohort.ID)

	s.assertDecimal("20000", avg.Summary[domain.CategoryFood])
	s.assertDecimal("2500", avg.Summary[domain.CategoryTransport])
	s.assertDecimal("22500", avg.Total)
}

func (s *ServiceSuite) TestCohortAverage_UnassignedUserGetsEmptySummary() {
	s.record(9, "10000", domain.CategoryFood, month(2026, time.February))

	avg, cohort, err := s.aggregator.UserCohortAverage(context.Background(), 9, month(2026, time.February))
	s.Require().NoError(err)
	s.Nil(cohort)
	s.True(avg.IsEmpty())
	s.Equal("정보 없음", domain.RangeText(cohort))
}
