package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/repository"
)

// TransactionService ingests spending events into the ledger.
type TransactionService struct {
	store      *repository.Store
	classifier domain.Classifier
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewTransactionService(store *repository.Store, classifier domain.Classifier, location *time.Location, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		store:      store,
		classifier: classifier,
		location:   location,
		logger:     logger.With("component", "ingestion"),
		now:        time.Now,
	}
}

type RecordRequest struct {
	UserID      int64
	Amount      decimal.Decimal
	Description string
	// Category skips classification when set to a known label.
	Category   string
	Direction  domain.Direction
	OccurredAt *time.Time
}

type RecordResult struct {
	Transaction    *domain.Transaction `json:"transaction"`
	Classification domain.Outcome      `json:"classification"`
}

// Record validates, classifies and stores one transaction, creating the user
// on first sight. Classification failures fall back to 기타.
func (s *TransactionService) Record(ctx context.Context, req *RecordRequest) (*RecordResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	direction := req.Direction
	if direction == "" {
		direction = domain.DirectionWithdraw
	}
	occurredAt := s.now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	category, outcome := s.categorize(ctx, req)

	transaction := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		Direction:   direction,
		OccurredAt:  occurredAt,
	}

	err := s.store.WithTransaction(ctx, func(txStore *repository.Store) error {
		if err := txStore.Users().EnsureUser(ctx, req.UserID); err != nil {
			return err
		}
		return txStore.Transactions().CreateTransaction(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	return &RecordResult{Transaction: transaction, Classification: outcome}, nil
}

// List returns the user's transactions for month, oldest first.
func (s *TransactionService) List(ctx context.Context, userID int64, month domain.Month) ([]domain.Transaction, error) {
	if userID <= 0 {
		return nil, errors.ErrInvalidUserID
	}
	start, end := month.Range(s.location)
	return s.store.Transactions().ListTransactions(ctx, userID, start, end)
}

func (s *TransactionService) validate(req *RecordRequest) error {
	if req.UserID <= 0 {
		return errors.ErrInvalidUserID
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return errors.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Description) == "" {
		return errors.NewAppError(errors.InvalidInput, "description is required")
	}
	if req.Direction != "" && !req.Direction.Valid() {
		return errors.NewAppErrorf(errors.InvalidInput, "unknown direction %q", req.Direction)
	}
	if req.Category != "" {
		if _, ok := domain.ParseCategory(req.Category); !ok {
			return errors.NewAppErrorf(errors.InvalidInput, "unknown category %q", req.Category)
		}
	}
	return nil
}

func (s *TransactionService) categorize(ctx context.Context, req *RecordRequest) (domain.Category, domain.Outcome) {
	if c, ok := domain.ParseCategory(req.Category); ok {
		return c, domain.OutcomeSucceeded
	}

	category, err := s.classifier.Classify(ctx, req.Description)
	if err != nil || !category.Valid() {
		s.logger.Warn("Classification failed, using fallback category",
			"user_id", req.UserID,
			"fallback", domain.CategoryOther,
			"error", err)
		return domain.CategoryOther, domain.OutcomeClassificationFailed
	}
	return category, domain.OutcomeSucceeded
}
