package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

type aggregateRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAggregateRepository(db SQLExecutor, logger *slog.Logger) domain.AggregateRepository {
	return &aggregateRepository{
		db:     db,
		logger: logger,
	}
}

// CategoryTotals sums the user's withdrawals per category over [start, end).
func (r *aggregateRepository) CategoryTotals(ctx context.Context, userID int64, start, end time.Time) (map[domain.Category]decimal.Decimal, error) {
	query := `
		SELECT category, SUM(amount)
		FROM transactions
		WHERE user_id = $1
		  AND direction = 'WITHDRAW'
		  AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY category
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		r.logger.Error("Failed to sum user categories", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate transactions").WithDetails(err.Error())
	}
	return scanCategoryTotals(rows)
}

// CohortSpending counts the cohort's current members and sums their
// withdrawals per category over [start, end). Both come from one statement so
// a concurrent rebuild cannot split them.
func (r *aggregateRepository) CohortSpending(ctx context.Context, cohortID int64, start, end time.Time) (*domain.CohortSpending, error) {
	query := fmt.Sprintf(cohortSpendingQuery, `SELECT id FROM cohorts WHERE id = $1`)

	rows, err := r.db.QueryContext(ctx, query, cohortID, start, end)
	if err != nil {
		r.logger.Error("Failed to sum cohort categories", "cohort_id", cohortID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate cohort transactions").WithDetails(err.Error())
	}
	spending, err := scanCohortSpending(rows)
	if err != nil {
		return nil, err
	}
	if spending == nil {
		spending = &domain.CohortSpending{CohortID: cohortID, Totals: map[domain.Category]decimal.Decimal{}}
	}
	return spending, nil
}

// UserCohortSpending is CohortSpending for the cohort the user belongs to,
// resolved in the same statement.
func (r *aggregateRepository) UserCohortSpending(ctx context.Context, userID int64, start, end time.Time) (*domain.CohortSpending, error) {
	query := fmt.Sprintf(cohortSpendingQuery, `SELECT cohort_id AS id FROM users WHERE id = $1 AND cohort_id IS NOT NULL`)

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		r.logger.Error("Failed to sum user cohort categories", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate cohort transactions").WithDetails(err.Error())
	}
	return scanCohortSpending(rows)
}

// cohortSpendingQuery yields one row per spent category, or a single row with
// NULL category when the members spent nothing. It yields no rows when the
// cohort subquery matches nothing.
const cohortSpendingQuery = `
	WITH cohort AS (%s),
	members AS (
		SELECT u.id FROM users u JOIN cohort c ON u.cohort_id = c.id
	),
	spending AS (
		SELECT t.category, SUM(t.amount) AS total
		FROM transactions t
		JOIN members m ON m.id = t.user_id
		WHERE t.direction = 'WITHDRAW'
		  AND t.occurred_at >= $2 AND t.occurred_at < $3
		GROUP BY t.category
	)
	SELECT c.id, (SELECT COUNT(*) FROM members), s.category, s.total
	FROM cohort c
	LEFT JOIN spending s ON true
`

// UserTotals returns every user with at least one withdrawal in [start, end)
// and their total, ordered by user id.
func (r *aggregateRepository) UserTotals(ctx context.Context, start, end time.Time) ([]domain.UserTotal, error) {
	query := `
		SELECT user_id, SUM(amount)
		FROM transactions
		WHERE direction = 'WITHDRAW'
		  AND occurred_at >= $1 AND occurred_at < $2
		GROUP BY user_id
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		r.logger.Error("Failed to sum user totals", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate user totals").WithDetails(err.Error())
	}
	defer rows.Close()

	totals := []domain.UserTotal{}
	for rows.Next() {
		var total domain.UserTotal
		if err := rows.Scan(&total.UserID, &total.Total); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan user total").WithDetails(err.Error())
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate user totals").WithDetails(err.Error())
	}
	return totals, nil
}

func scanCohortSpending(rows *sql.Rows) (*domain.CohortSpending, error) {
	defer rows.Close()

	var spending *domain.CohortSpending
	for rows.Next() {
		var cohortID, members int64
		var category sql.NullString
		var total decimal.NullDecimal
		if err := rows.Scan(&cohortID, &members, &category, &total); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan cohort spending").WithDetails(err.Error())
		}
		if spending == nil {
			spending = &domain.CohortSpending{
				CohortID: cohortID,
				Members:  members,
				Totals:   make(map[domain.Category]decimal.Decimal),
			}
		}
		if category.Valid && total.Valid {
			spending.Totals[domain.Category(category.String)] = total.Decimal
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate cohort transactions").WithDetails(err.Error())
	}
	return spending, nil
}

func scanCategoryTotals(rows *sql.Rows) (map[domain.Category]decimal.Decimal, error) {
	defer rows.Close()

	totals := make(map[domain.Category]decimal.Decimal)
	for rows.Next() {
		var category domain.Category
		var amount decimal.Decimal
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan category total").WithDetails(err.Error())
		}
		totals[category] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to aggregate transactions").WithDetails(err.Error())
	}
	return totals, nil
}
