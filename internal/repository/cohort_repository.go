package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

type cohortRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewCohortRepository(db SQLExecutor, logger *slog.Logger) domain.CohortRepository {
	return &cohortRepository{
		db:     db,
		logger: logger,
	}
}

const cohortColumns = `c.id, c.position, c.min_amount, c.max_amount, c.period, c.created_at, c.retired_at`

// ListActive returns the current band set ordered by position.
func (r *cohortRepository) ListActive(ctx context.Context) ([]domain.Cohort, error) {
	query := `SELECT ` + cohortColumns + ` FROM cohorts c WHERE c.retired_at IS NULL ORDER BY c.position`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list cohorts", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list cohorts").WithDetails(err.Error())
	}
	defer rows.Close()

	cohorts := []domain.Cohort{}
	for rows.Next() {
		cohort, err := scanCohort(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan cohort").WithDetails(err.Error())
		}
		cohorts = append(cohorts, *cohort)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list cohorts").WithDetails(err.Error())
	}
	return cohorts, nil
}

func (r *cohortRepository) GetCohort(ctx context.Context, id int64) (*domain.Cohort, error) {
	query := `SELECT ` + cohortColumns + ` FROM cohorts c WHERE c.id = $1`

	cohort, err := scanCohort(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrCohortNotFound
		}
		r.logger.Error("Failed to get cohort", "cohort_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get cohort").WithDetails(err.Error())
	}
	return cohort, nil
}

// GetUserCohort returns the band the user points at, retired or not, and nil
// when the user is unknown or unassigned.
func (r *cohortRepository) GetUserCohort(ctx context.Context, userID int64) (*domain.Cohort, error) {
	query := `SELECT ` + cohortColumns + `
		FROM users u
		JOIN cohorts c ON c.id = u.cohort_id
		WHERE u.id = $1`

	cohort, err := scanCohort(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get user cohort", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get user cohort").WithDetails(err.Error())
	}
	return cohort, nil
}

// RetireActive marks the whole current band set as superseded.
func (r *cohortRepository) RetireActive(ctx context.Context, at time.Time) (int64, error) {
	query := `UPDATE cohorts SET retired_at = $1 WHERE retired_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at)
	if err != nil {
		r.logger.Error("Failed to retire cohorts", "error", err)
		return 0, errors.NewAppError(errors.InternalError, "failed to retire cohorts").WithDetails(err.Error())
	}
	return result.RowsAffected()
}

// CreateCohorts inserts the bands and fills in their generated ids.
func (r *cohortRepository) CreateCohorts(ctx context.Context, cohorts []domain.Cohort) error {
	if len(cohorts) == 0 {
		return nil
	}

	positions := make([]int64, len(cohorts))
	mins := make([]string, len(cohorts))
	maxes := make([]sql.NullString, len(cohorts))
	for i, c := range cohorts {
		positions[i] = int64(c.Position)
		mins[i] = c.MinAmount.String()
		if c.MaxAmount.Valid {
			maxes[i] = sql.NullString{String: c.MaxAmount.Decimal.String(), Valid: true}
		}
	}

	query := `
		INSERT INTO cohorts (position, min_amount, max_amount, period, created_at)
		SELECT b.position, b.min_amount, b.max_amount, $4, $5
		FROM unnest($1::integer[], $2::numeric[], $3::numeric[]) AS b(position, min_amount, max_amount)
		ORDER BY b.position
		RETURNING id, position
	`

	period := cohorts[0].Period.Key()
	createdAt := cohorts[0].CreatedAt
	rows, err := r.db.QueryContext(ctx, query,
		pq.Array(positions), pq.Array(mins), pq.Array(maxes), period, createdAt)
	if err != nil {
		r.logger.Error("Failed to create cohorts", "period", period, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create cohorts").WithDetails(err.Error())
	}
	defer rows.Close()

	ids := make(map[int]int64, len(cohorts))
	for rows.Next() {
		var id int64
		var position int
		if err := rows.Scan(&id, &position); err != nil {
			return errors.NewAppError(errors.InternalError, "failed to scan cohort id").WithDetails(err.Error())
		}
		ids[position] = id
	}
	if err := rows.Err(); err != nil {
		return errors.NewAppError(errors.InternalError, "failed to create cohorts").WithDetails(err.Error())
	}

	for i := range cohorts {
		cohorts[i].ID = ids[cohorts[i].Position]
	}

	r.logger.Info("Cohorts created", "period", period, "bands", len(cohorts))
	return nil
}

func scanCohort(row rowScanner) (*domain.Cohort, error) {
	var cohort domain.Cohort
	var period string
	var retiredAt sql.NullTime

	err := row.Scan(
		&cohort.ID,
		&cohort.Position,
		&cohort.MinAmount,
		&cohort.MaxAmount,
		&period,
		&cohort.CreatedAt,
		&retiredAt,
	)
	if err != nil {
		return nil, err
	}

	if cohort.Period, err = domain.ParseMonth(period); err != nil {
		return nil, err
	}
	if retiredAt.Valid {
		cohort.RetiredAt = &retiredAt.Time
	}
	return &cohort, nil
}

type cohortRunRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewCohortRunRepository(db SQLExecutor, logger *slog.Logger) domain.CohortRunRepository {
	return &cohortRunRepository{
		db:     db,
		logger: logger,
	}
}

// ClaimRun records that the period is being rebuilt. A second claim for the
// same period fails with ErrCohortPeriodProcessed.
func (r *cohortRunRepository) ClaimRun(ctx context.Context, period domain.Month, at time.Time) error {
	query := `INSERT INTO cohort_runs (period, started_at) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, period.Key(), at)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "cohort_runs_pkey" {
				r.logger.Warn("Cohort period already processed", "period", period)
				return errors.ErrCohortPeriodProcessed
			}
		}
		r.logger.Error("Failed to claim cohort run", "period", period, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to claim cohort run").WithDetails(err.Error())
	}
	return nil
}

func (r *cohortRunRepository) CompleteRun(ctx context.Context, run *domain.CohortRun) error {
	query := `
		UPDATE cohort_runs
		SET completed_at = $2, active_users = $3, band_count = $4
		WHERE period = $1
	`

	_, err := r.db.ExecContext(ctx, query, run.Period.Key(), run.CompletedAt, run.ActiveUsers, run.BandCount)
	if err != nil {
		r.logger.Error("Failed to complete cohort run", "period", run.Period, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to complete cohort run").WithDetails(err.Error())
	}
	return nil
}

func (r *cohortRunRepository) GetRun(ctx context.Context, period domain.Month) (*domain.CohortRun, error) {
	query := `SELECT started_at, completed_at, active_users, band_count FROM cohort_runs WHERE period = $1`

	run := domain.CohortRun{Period: period}
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, period.Key()).Scan(
		&run.StartedAt, &completedAt, &run.ActiveUsers, &run.BandCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get cohort run", "period", period, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get cohort run").WithDetails(err.Error())
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func (r *cohortRunRepository) LatestRun(ctx context.Context) (*domain.CohortRun, error) {
	query := `
		SELECT period, started_at, completed_at, active_users, band_count
		FROM cohort_runs
		ORDER BY period DESC
		LIMIT 1
	`

	var run domain.CohortRun
	var period string
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(
		&period, &run.StartedAt, &completedAt, &run.ActiveUsers, &run.BandCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest cohort run", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get latest cohort run").WithDetails(err.Error())
	}

	if run.Period, err = domain.ParseMonth(period); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "invalid cohort run period").WithDetails(err.Error())
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
