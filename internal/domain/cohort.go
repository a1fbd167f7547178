package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cohort is one spending band of a band set. A nil MaxAmount marks the
// open-ended top band. The current band set is every cohort not yet retired.
type Cohort struct {
	ID        int64               `json:"cohort_id"`
	Position  int                 `json:"position"`
	MinAmount decimal.Decimal     `json:"min_amount"`
	MaxAmount decimal.NullDecimal `json:"max_amount"`
	Period    Month               `json:"period"`
	CreatedAt time.Time           `json:"created_at"`
	RetiredAt *time.Time          `json:"retired_at,omitempty"`
}

// Contains reports whether amount falls in [MinAmount, MaxAmount).
func (c Cohort) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(c.MinAmount) {
		return false
	}
	return !c.MaxAmount.Valid || amount.LessThan(c.MaxAmount.Decimal)
}

const (
	noCohortRangeText = "정보 없음"
	tenThousandWon    = 10000
)

// RangeText renders a band as "N만원~M만원", or "N만원 이상" for the top band.
// Without a band it renders "정보 없음".
func RangeText(c *Cohort) string {
	if c == nil {
		return noCohortRangeText
	}
	unit := decimal.NewFromInt(tenThousandWon)
	lo := c.MinAmount.Div(unit).IntPart()
	if !c.MaxAmount.Valid {
		return fmt.Sprintf("%d만원 이상", lo)
	}
	hi := c.MaxAmount.Decimal.Div(unit).IntPart()
	return fmt.Sprintf("%d만원~%d만원", lo, hi)
}

// CohortRun records that the band set for a data month has been rebuilt.
type CohortRun struct {
	Period      Month      `json:"period"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ActiveUsers int        `json:"active_users"`
	BandCount   int        `json:"band_count"`
}

type CohortRepository interface {
	ListActive(ctx context.Context) ([]Cohort, error)
	GetCohort(ctx context.Context, id int64) (*Cohort, error)
	GetUserCohort(ctx context.Context, userID int64) (*Cohort, error)
	RetireActive(ctx context.Context, at time.Time) (int64, error)
	CreateCohorts(ctx context.Context, cohorts []Cohort) error
}

type CohortRunRepository interface {
	ClaimRun(ctx context.Context, period Month, at time.Time) error
	CompleteRun(ctx context.Context, run *CohortRun) error
	GetRun(ctx context.Context, period Month) (*CohortRun, error)
	// LatestRun returns the run with the greatest period, or nil before the first run.
	LatestRun(ctx context.Context) (*CohortRun, error)
}

// LockRepository exposes transaction-scoped advisory locks. Every method must
// run inside Store.WithTransaction; the lock is released on commit or rollback.
type LockRepository interface {
	LockReport(ctx context.Context, userID int64, month Month) error
	TryLockCohortRebuild(ctx context.Context) (bool, error)
}
