package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

// Transactions returns a TransactionRepository using the current executor
func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Users() domain.UserRepository {
	return NewUserRepository(s.executor, s.logger)
}

func (s *Store) Cohorts() domain.CohortRepository {
	return NewCohortRepository(s.executor, s.logger)
}

func (s *Store) CohortRuns() domain.CohortRunRepository {
	return NewCohortRunRepository(s.executor, s.logger)
}

func (s *Store) Aggregates() domain.AggregateRepository {
	return NewAggregateRepository(s.executor, s.logger)
}

func (s *Store) Reports() domain.ReportRepository {
	return NewReportRepository(s.executor, s.logger)
}

func (s *Store) Chat() domain.ChatRepository {
	return NewChatRepository(s.executor, s.logger)
}

// Locks returns advisory locks bound to the current transaction.
func (s *Store) Locks() domain.LockRepository {
	return NewLockRepository(s.executor, s.logger)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	db, ok := s.executor.(*sql.DB)
	if !ok {
		return nil
	}
	return db.PingContext(ctx)
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	// Only sql.DB can begin transactions
	db, ok := s.executor.(*sql.DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to begin transaction").WithDetails(err.Error())
	}

	txStore := &Store{
		executor: &TxWrapper{Tx: tx},
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAppError(errors.InternalError, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}
