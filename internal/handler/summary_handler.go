package handler

import (
	"net/http"

	"finmate/internal/domain"
	"finmate/internal/service"
)

type SummaryHandler struct {
	aggregator *service.AggregationService
}

func NewSummaryHandler(aggregator *service.AggregationService) *SummaryHandler {
	return &SummaryHandler{aggregator: aggregator}
}

type SummaryResponse struct {
	UserID int64        `json:"user_id"`
	Month  domain.Month `json:"month"`
	domain.MonthlySummary
}

type CohortAverageResponse struct {
	UserID      int64          `json:"user_id"`
	Month       domain.Month   `json:"month"`
	Cohort      *domain.Cohort `json:"cohort"`
	CohortRange string         `json:"cohort_range"`
	domain.MonthlySummary
}

// Summary defaults to the current month.
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, appErr := pathUserID(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	month, appErr := parseMonth(r.URL.Query().Get("month"), h.aggregator.CurrentMonth())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	summary, err := h.aggregator.Summarize(r.Context(), userID, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{UserID: userID, Month: month, MonthlySummary: summary})
}

// CohortAverage defaults to the last completed month.
func (h *SummaryHandler) CohortAverage(w http.ResponseWriter, r *http.Request) {
	userID, appErr := pathUserID(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	month, appErr := parseMonth(r.URL.Query().Get("month"), h.aggregator.CurrentMonth().Prev())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	average, cohort, err := h.aggregator.UserCohortAverage(r.Context(), userID, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CohortAverageResponse{
		UserID:         userID,
		Month:          month,
		Cohort:         cohort,
		CohortRange:    domain.RangeText(cohort),
		MonthlySummary: average,
	})
}
