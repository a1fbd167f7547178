package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"finmate/internal/errors"
	"finmate/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type SendChatRequest struct {
	UserID       int64  `json:"user_id"`
	Message      string `json:"message"`
	TargetBudget string `json:"target_budget,omitempty"`
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendChatRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeError(w, appErr)
		return
	}

	budget := decimal.Zero
	if req.TargetBudget != "" {
		parsed, err := decimal.NewFromString(req.TargetBudget)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid target_budget format").WithDetails(err.Error()))
			return
		}
		budget = parsed
	}

	result, err := h.chatService.Send(r.Context(), &service.ChatRequest{
		UserID:       req.UserID,
		Message:      req.Message,
		TargetBudget: budget,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, appErr := pathUserID(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, errors.NewAppError(errors.InvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	messages, err := h.chatService.History(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
