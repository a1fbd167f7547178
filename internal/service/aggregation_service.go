package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/repository"
)

// AggregationService computes monthly spending summaries. Months are
// half-open ranges in the configured location.
type AggregationService struct {
	store    *repository.Store
	location *time.Location
	logger   *slog.Logger
}

func NewAggregationService(store *repository.Store, location *time.Location, logger *slog.Logger) *AggregationService {
	return &AggregationService{
		store:    store,
		location: location,
		logger:   logger.With("component", "aggregator"),
	}
}

// CurrentMonth is the month containing now in the configured location.
func (s *AggregationService) CurrentMonth() domain.Month {
	return domain.MonthOf(time.Now().In(s.location))
}

// withStore binds the aggregator to a transactional store.
func (s *AggregationService) withStore(store *repository.Store) *AggregationService {
	cp := *s
	cp.store = store
	return &cp
}

// Summarize sums the user's withdrawals per category for month.
func (s *AggregationService) Summarize(ctx context.Context, userID int64, month domain.Month) (domain.MonthlySummary, error) {
	if userID <= 0 {
		return domain.MonthlySummary{}, errors.ErrInvalidUserID
	}

	start, end := month.Range(s.location)
	totals, err := s.store.Aggregates().CategoryTotals(ctx, userID, start, end)
	if err != nil {
		return domain.MonthlySummary{}, err
	}
	return domain.NewMonthlySummary(totals), nil
}

// CohortAverage divides each category sum over the cohort's current members
// by the member count. Members without spending in a category count as zero.
func (s *AggregationService) CohortAverage(ctx context.Context, cohortID int64, month domain.Month) (domain.MonthlySummary, error) {
	start, end := month.Range(s.location)
	spending, err := s.store.Aggregates().CohortSpending(ctx, cohortID, start, end)
	if err != nil {
		return domain.MonthlySummary{}, err
	}
	return averageOf(spending), nil
}

// UserCohortAverage averages over the cohort the user belongs to at read time.
// Unknown or unassigned users get an empty summary and a nil cohort.
func (s *AggregationService) UserCohortAverage(ctx context.Context, userID int64, month domain.Month) (domain.MonthlySummary, *domain.Cohort, error) {
	if userID <= 0 {
		return domain.MonthlySummary{}, nil, errors.ErrInvalidUserID
	}

	start, end := month.Range(s.location)
	spending, err := s.store.Aggregates().UserCohortSpending(ctx, userID, start, end)
	if err != nil {
		return domain.MonthlySummary{}, nil, err
	}
	if spending == nil {
		return domain.EmptySummary(), nil, nil
	}

	// Band bounds are immutable once written.
	cohort, err := s.store.Cohorts().GetCohort(ctx, spending.CohortID)
	if err != nil {
		return domain.MonthlySummary{}, nil, err
	}
	return averageOf(spending), cohort, nil
}

func averageOf(spending *domain.CohortSpending) domain.MonthlySummary {
	if spending == nil || spending.Members == 0 {
		return domain.EmptySummary()
	}

	count := decimal.NewFromInt(spending.Members)
	averages := make(map[domain.Category]decimal.Decimal, len(spending.Totals))
	for category, sum := range spending.Totals {
		averages[category] = sum.Div(count).Round(2)
	}
	return domain.NewMonthlySummary(averages)
}

// MonthlyTotals lists every user with at least one withdrawal in month.
func (s *AggregationService) MonthlyTotals(ctx context.Context, month domain.Month) ([]domain.UserTotal, error) {
	start, end := month.Range(s.location)
	return s.store.Aggregates().UserTotals(ctx, start, end)
}
