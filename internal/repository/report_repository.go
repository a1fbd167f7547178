package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

type reportRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewReportRepository(db SQLExecutor, logger *slog.Logger) domain.ReportRepository {
	return &reportRepository{
		db:     db,
		logger: logger,
	}
}

// GetReport returns the cached report for the key, or nil when absent.
func (r *reportRepository) GetReport(ctx context.Context, userID int64, month domain.Month) (*domain.StoredReport, error) {
	query := `
		SELECT id, user_id, report_month, raw_payload, rendered_text, narrative_status, created_at
		FROM analysis_reports
		WHERE user_id = $1 AND report_month = $2
	`

	var report domain.StoredReport
	var reportMonth string
	var payload []byte

	err := r.db.QueryRowContext(ctx, query, userID, month.Key()).Scan(
		&report.ID,
		&report.UserID,
		&reportMonth,
		&payload,
		&report.RenderedText,
		&report.NarrativeStatus,
		&report.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get report", "user_id", userID, "report_month", month, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get report").WithDetails(err.Error())
	}

	if report.ReportMonth, err = domain.ParseMonth(reportMonth); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to parse report month").WithDetails(err.Error())
	}
	report.RawPayload = payload
	return &report, nil
}

// CreateReport writes the report once. If a row for the key already exists
// nothing is written and ErrDuplicateReport is returned.
func (r *reportRepository) CreateReport(ctx context.Context, report *domain.StoredReport) error {
	query := `
		INSERT INTO analysis_reports
		(user_id, report_month, raw_payload, rendered_text, narrative_status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT ON CONSTRAINT uq_analysis_reports_user_month DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		report.UserID,
		report.ReportMonth.Key(),
		string(report.RawPayload),
		report.RenderedText,
		report.NarrativeStatus,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Report already exists", "user_id", report.UserID, "report_month", report.ReportMonth)
			return errors.ErrDuplicateReport
		}
		r.logger.Error("Failed to create report",
			"user_id", report.UserID,
			"report_month", report.ReportMonth,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create report").WithDetails(err.Error())
	}

	r.logger.Info("Report created", "report_id", report.ID, "user_id", report.UserID, "report_month", report.ReportMonth)
	return nil
}
