package repository

import (
	"context"
	"fmt"
	"log/slog"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

const cohortRebuildLockKey = "finmate:cohort-rebuild"

type lockRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewLockRepository(db SQLExecutor, logger *slog.Logger) domain.LockRepository {
	return &lockRepository{
		db:     db,
		logger: logger,
	}
}

func reportLockKey(userID int64, month domain.Month) string {
	return fmt.Sprintf("finmate:report:%d:%s", userID, month.Key())
}

// LockReport blocks until this transaction owns the report key.
func (r *lockRepository) LockReport(ctx context.Context, userID int64, month domain.Month) error {
	if _, ok := r.db.(*TxWrapper); !ok {
		return errors.NewAppError(errors.InternalError, "advisory lock requires a transaction")
	}

	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reportLockKey(userID, month))
	if err != nil {
		r.logger.Error("Failed to lock report", "user_id", userID, "report_month", month, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to lock report").WithDetails(err.Error())
	}
	return nil
}

// TryLockCohortRebuild returns false without waiting when another transaction
// holds the rebuild lock.
func (r *lockRepository) TryLockCohortRebuild(ctx context.Context) (bool, error) {
	if _, ok := r.db.(*TxWrapper); !ok {
		return false, errors.NewAppError(errors.InternalError, "advisory lock requires a transaction")
	}

	var acquired bool
	err := r.db.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, cohortRebuildLockKey).Scan(&acquired)
	if err != nil {
		r.logger.Error("Failed to try cohort rebuild lock", "error", err)
		return false, errors.NewAppError(errors.InternalError, "failed to acquire cohort rebuild lock").WithDetails(err.Error())
	}
	return acquired, nil
}
