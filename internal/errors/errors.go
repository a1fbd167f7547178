package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput            ErrorCode = "invalid_input"
	InvalidAmount           ErrorCode = "invalid_amount"
	InvalidMonth            ErrorCode = "invalid_month"
	InvalidUserID           ErrorCode = "invalid_user_id"
	UserNotFound            ErrorCode = "user_not_found"
	CohortNotFound          ErrorCode = "cohort_not_found"
	DuplicateReport         ErrorCode = "duplicate_report"
	CohortRebuildInProgress ErrorCode = "cohort_rebuild_in_progress"
	CohortPeriodProcessed   ErrorCode = "cohort_period_processed"
	CannotBeginTransaction  ErrorCode = "cannot_begin_transaction"
	InternalError           ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy carrying details, so shared sentinels stay untouched.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps an error code to the response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidAmount, InvalidMonth, InvalidUserID:
		return http.StatusBadRequest
	case UserNotFound, CohortNotFound:
		return http.StatusNotFound
	case DuplicateReport, CohortRebuildInProgress, CohortPeriodProcessed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Predefined errors for common cases
var (
	ErrUserNotFound            = NewAppError(UserNotFound, "user not found")
	ErrCohortNotFound          = NewAppError(CohortNotFound, "cohort not found")
	ErrDuplicateReport         = NewAppError(DuplicateReport, "report already exists for this month")
	ErrCohortRebuildInProgress = NewAppError(CohortRebuildInProgress, "another cohort rebuild is running")
	ErrCohortPeriodProcessed   = NewAppError(CohortPeriodProcessed, "cohorts already rebuilt for this period")
	ErrCannotBeginTransaction  = NewAppError(CannotBeginTransaction, "store is already inside a transaction")
	ErrInvalidAmount           = NewAppError(InvalidAmount, "amount must be positive with at most two decimal places")
	ErrInvalidUserID           = NewAppError(InvalidUserID, "user_id must be a positive integer")
)
