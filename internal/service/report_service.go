package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/events"
	"finmate/internal/repository"
)

// ReportService serves one comparative report per (user, month). The first
// request computes and stores it; every later request gets the stored copy.
type ReportService struct {
	store         *repository.Store
	aggregator    *AggregationService
	narrator      domain.Narrator
	publisher     events.Publisher
	location      *time.Location
	cacheDegraded bool
	logger        *slog.Logger
	now           func() time.Time

	inflight singleflight.Group
}

type ReportServiceConfig struct {
	Location *time.Location
	// CacheDegraded stores reports whose narrative failed. When false such
	// reports are returned uncached and the next request retries.
	CacheDegraded bool
}

func NewReportService(
	store *repository.Store,
	aggregator *AggregationService,
	narrator domain.Narrator,
	publisher events.Publisher,
	cfg ReportServiceConfig,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		store:         store,
		aggregator:    aggregator,
		narrator:      narrator,
		publisher:     publisher,
		location:      cfg.Location,
		cacheDegraded: cfg.CacheDegraded,
		logger:        logger.With("component", "report_builder"),
		now:           time.Now,
	}
}

type ReportResult struct {
	Status domain.ReportStatus  `json:"status"`
	Report *domain.StoredReport `json:"report"`
}

// DefaultMonth is the last completed month in the configured location.
func (s *ReportService) DefaultMonth() domain.Month {
	return domain.MonthOf(s.now().In(s.location)).Prev()
}

// GetOrCreate returns the report for (userID, month), computing it at most once.
// Reports are stored permanently, so month must already be over.
func (s *ReportService) GetOrCreate(ctx context.Context, userID int64, month domain.Month) (*ReportResult, error) {
	if userID <= 0 {
		return nil, errors.ErrInvalidUserID
	}
	if current := domain.MonthOf(s.now().In(s.location)); !month.Before(current) {
		return nil, errors.NewAppErrorf(errors.InvalidMonth, "report month %s is not a completed month", month)
	}

	cached, err := s.store.Reports().GetReport(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		s.logger.Info("Report cache hit", "user_id", userID, "report_month", month)
		return &ReportResult{Status: domain.ReportCached, Report: cached}, nil
	}

	key := fmt.Sprintf("%d:%s", userID, month.Key())
	// The shared computation must not die with whichever caller started it.
	buildCtx := context.WithoutCancel(ctx)
	v, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		return s.build(buildCtx, userID, month)
	})
	if err != nil {
		return nil, err
	}

	result := v.(*ReportResult)
	if shared {
		s.logger.Debug("Joined in-flight report computation", "user_id", userID, "report_month", month)
	}
	return result, nil
}

func (s *ReportService) build(ctx context.Context, userID int64, month domain.Month) (*ReportResult, error) {
	var result *ReportResult

	err := s.store.WithTransaction(ctx, func(txStore *repository.Store) error {
		if err := txStore.Locks().LockReport(ctx, userID, month); err != nil {
			return err
		}

		// Another process may have finished while we waited for the lock.
		existing, err := txStore.Reports().GetReport(ctx, userID, month)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &ReportResult{Status: domain.ReportCached, Report: existing}
			return nil
		}

		input, err := s.gatherInput(ctx, txStore, userID, month)
		if err != nil {
			return err
		}

		narrative, outcome := s.narrate(ctx, userID, month, input)

		payload, err := json.Marshal(domain.ReportPayload{
			Input:     input,
			Narrative: narrative,
			Outcome:   outcome,
		})
		if err != nil {
			return errors.NewAppError(errors.InternalError, "failed to encode report payload").WithDetails(err.Error())
		}

		report := &domain.StoredReport{
			UserID:          userID,
			ReportMonth:     month,
			RawPayload:      payload,
			RenderedText:    domain.RenderReport(month, narrative),
			NarrativeStatus: outcome,
		}

		if outcome != domain.OutcomeSucceeded && !s.cacheDegraded {
			report.CreatedAt = s.now()
			result = &ReportResult{Status: domain.ReportUncached, Report: report}
			return nil
		}

		err = txStore.Reports().CreateReport(ctx, report)
		if errors.HasCode(err, errors.DuplicateReport) {
			winner, err := txStore.Reports().GetReport(ctx, userID, month)
			if err != nil {
				return err
			}
			if winner == nil {
				return errors.NewAppError(errors.InternalError, "report conflict without a stored row")
			}
			result = &ReportResult{Status: domain.ReportCached, Report: winner}
			return nil
		}
		if err != nil {
			return err
		}

		result = &ReportResult{Status: domain.ReportCreated, Report: report}
		return nil
	})
	if err != nil {
		s.logger.Error("Report build failed", "user_id", userID, "report_month", month, "error", err)
		return nil, err
	}

	if result.Status == domain.ReportCreated {
		if err := s.publisher.PublishReportCreated(ctx, &events.ReportCreatedMessage{
			UserID:          userID,
			ReportMonth:     month,
			ReportID:        result.Report.ID,
			NarrativeStatus: result.Report.NarrativeStatus,
			Timestamp:       s.now(),
		}); err != nil {
			s.logger.Warn("Failed to publish report created event", "user_id", userID, "report_month", month, "error", err)
		}
	}

	s.logger.Info("Report served",
		"user_id", userID,
		"report_month", month,
		"status", result.Status,
		"narrative_status", result.Report.NarrativeStatus)
	return result, nil
}

// gatherInput reads the two monthly summaries, the cohort average for the
// report month and the user's current band.
func (s *ReportService) gatherInput(ctx context.Context, txStore *repository.Store, userID int64, month domain.Month) (domain.NarrativeInput, error) {
	agg := s.aggregator.withStore(txStore)

	twoMonthsAgo, err := agg.Summarize(ctx, userID, month.Prev())
	if err != nil {
		return domain.NarrativeInput{}, err
	}
	lastMonth, err := agg.Summarize(ctx, userID, month)
	if err != nil {
		return domain.NarrativeInput{}, err
	}
	average, cohort, err := agg.UserCohortAverage(ctx, userID, month)
	if err != nil {
		return domain.NarrativeInput{}, err
	}

	return domain.NarrativeInput{
		TwoMonthsAgo:  twoMonthsAgo,
		LastMonth:     lastMonth,
		CohortAverage: average,
		CohortRange:   domain.RangeText(cohort),
	}, nil
}

// narrate never fails: any collaborator error degrades to placeholders.
func (s *ReportService) narrate(ctx context.Context, userID int64, month domain.Month, input domain.NarrativeInput) (domain.Narrative, domain.Outcome) {
	narrative, err := s.narrator.Narrate(ctx, input)
	if err != nil {
		s.logger.Warn("Narrative generation failed, using placeholders",
			"user_id", userID,
			"report_month", month,
			"error", err)
		return domain.Narrative{}.WithPlaceholders(), domain.OutcomeGenerationFailed
	}
	return narrative.WithPlaceholders(), domain.OutcomeSucceeded
}
