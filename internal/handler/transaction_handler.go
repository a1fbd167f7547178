package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
	aggregator         *service.AggregationService
}

func NewTransactionHandler(transactionService *service.TransactionService, aggregator *service.AggregationService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		aggregator:         aggregator,
	}
}

type RecordTransactionRequest struct {
	UserID      int64  `json:"user_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Direction   string `json:"direction,omitempty"`
	OccurredAt  string `json:"occurred_at,omitempty"`
}

type RecordTransactionResponse struct {
	TransactionID  string          `json:"transaction_id"`
	UserID         int64           `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Category       domain.Category `json:"category"`
	Classification domain.Outcome  `json:"classification"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	var occurredAt *time.Time
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidInput, "occurred_at must be RFC 3339").WithDetails(err.Error()))
			return
		}
		occurredAt = &t
	}

	result, err := h.transactionService.Record(r.Context(), &service.RecordRequest{
		UserID:      req.UserID,
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		Direction:   domain.Direction(req.Direction),
		OccurredAt:  occurredAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordTransactionResponse{
		TransactionID:  result.Transaction.ID.String(),
		UserID:         result.Transaction.UserID,
		Amount:         result.Transaction.Amount,
		Category:       result.Transaction.Category,
		Classification: result.Classification,
		OccurredAt:     result.Transaction.OccurredAt,
	})
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
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

	transactions, err := h.transactionService.List(r.Context(), userID, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}
