package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlySummary is the per-category spending of one user or one cohort
// average for one month.
type MonthlySummary struct {
	Summary map[Category]decimal.Decimal `json:"summary"`
	Total   decimal.Decimal              `json:"total"`
}

func EmptySummary() MonthlySummary {
	return MonthlySummary{
		Summary: map[Category]decimal.Decimal{},
		Total:   decimal.Zero,
	}
}

// NewMonthlySummary builds a summary whose total is the sum of its categories.
func NewMonthlySummary(amounts map[Category]decimal.Decimal) MonthlySummary {
	s := EmptySummary()
	for category, amount := range amounts {
		s.Summary[category] = amount
		s.Total = s.Total.Add(amount)
	}
	return s
}

func (s MonthlySummary) IsEmpty() bool {
	return len(s.Summary) == 0
}

type UserTotal struct {
	UserID int64
	Total  decimal.Decimal
}

// CohortSpending is the membership of a cohort and its members' spending per
// category, read from a single snapshot.
type CohortSpending struct {
	CohortID int64
	Members  int64
	Totals   map[Category]decimal.Decimal
}

// AggregateRepository answers read-only spending queries over half-open time ranges.
type AggregateRepository interface {
	CategoryTotals(ctx context.Context, userID int64, start, end time.Time) (map[Category]decimal.Decimal, error)
	CohortSpending(ctx context.Context, cohortID int64, start, end time.Time) (*CohortSpending, error)
	// UserCohortSpending resolves the user's cohort in the same read and
	// returns nil when the user is unknown or unassigned.
	UserCohortSpending(ctx context.Context, userID int64, start, end time.Time) (*CohortSpending, error)
	UserTotals(ctx context.Context, start, end time.Time) ([]UserTotal, error)
}
