package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

type userRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewUserRepository(db SQLExecutor, logger *slog.Logger) domain.UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureUser creates the user row on first sight and is a no-op afterwards.
func (r *userRepository) EnsureUser(ctx context.Context, id int64) error {
	query := `INSERT INTO users (id, created_at) VALUES ($1, NOW()) ON CONFLICT (id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to ensure user", "user_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create user").WithDetails(err.Error())
	}

	if n, _ := result.RowsAffected(); n > 0 {
		r.logger.Info("User created", "user_id", id)
	}
	return nil
}

func (r *userRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, cohort_id, created_at FROM users WHERE id = $1`

	var user domain.User
	var cohortID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &cohortID, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		r.logger.Error("Failed to get user", "user_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get user").WithDetails(err.Error())
	}

	if cohortID.Valid {
		user.CohortID = &cohortID.Int64
	}
	return &user, nil
}

// AssignCohorts points every listed user at its new cohort in one statement.
func (r *userRepository) AssignCohorts(ctx context.Context, assignments []domain.CohortAssignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	userIDs := make([]int64, len(assignments))
	cohortIDs := make([]int64, len(assignments))
	for i, a := range assignments {
		userIDs[i] = a.UserID
		cohortIDs[i] = a.CohortID
	}

	query := `
		UPDATE users AS u
		SET cohort_id = a.cohort_id
		FROM unnest($1::bigint[], $2::bigint[]) AS a(user_id, cohort_id)
		WHERE u.id = a.user_id
	`

	result, err := r.db.ExecContext(ctx, query, pq.Array(userIDs), pq.Array(cohortIDs))
	if err != nil {
		r.logger.Error("Failed to assign cohorts", "users", len(assignments), "error", err)
		return 0, errors.NewAppError(errors.InternalError, "failed to assign cohorts").WithDetails(err.Error())
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewAppError(errors.InternalError, "failed to assign cohorts").WithDetails(err.Error())
	}
	return n, nil
}
