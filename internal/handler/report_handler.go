package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"finmate/internal/domain"
	"finmate/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

type CreateReportRequest struct {
	UserID int64  `json:"user_id"`
	Month  string `json:"month,omitempty"`
}

type ReportResponse struct {
	UserID          int64               `json:"user_id"`
	ReportMonth     domain.Month        `json:"report_month"`
	Status          domain.ReportStatus `json:"status"`
	NarrativeStatus domain.Outcome      `json:"narrative_status"`
	ReportText      string              `json:"report_text"`
	Payload         json.RawMessage     `json:"payload"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Create returns the report for (user, month), generating it on first request.
// A freshly generated report answers 201, a cached or uncached one 200.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}

	month, appErr := parseMonth(req.Month, h.reportService.DefaultMonth())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	result, err := h.reportService.GetOrCreate(r.Context(), req.UserID, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == domain.ReportCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, ReportResponse{
		UserID:          result.Report.UserID,
		ReportMonth:     result.Report.ReportMonth,
		Status:          result.Status,
		NarrativeStatus: result.Report.NarrativeStatus,
		ReportText:      result.Report.RenderedText,
		Payload:         result.Report.RawPayload,
		CreatedAt:       result.Report.CreatedAt,
	})
}
