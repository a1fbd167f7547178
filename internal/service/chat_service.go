package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/repository"
)

// ChatFallbackReply is stored and returned when the responder fails.
const ChatFallbackReply = "죄송합니다. AI 서버 연결 중 오류가 발생했습니다."

type ChatService struct {
	store        *repository.Store
	aggregator   *AggregationService
	responder    domain.ChatResponder
	location     *time.Location
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

func NewChatService(
	store *repository.Store,
	aggregator *AggregationService,
	responder domain.ChatResponder,
	location *time.Location,
	historyLimit int,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		store:        store,
		aggregator:   aggregator,
		responder:    responder,
		location:     location,
		historyLimit: historyLimit,
		logger:       logger.With("component", "chat"),
		now:          time.Now,
	}
}

type ChatRequest struct {
	UserID       int64
	Message      string
	TargetBudget decimal.Decimal
}

type ChatResult struct {
	Reply   string         `json:"reply"`
	Outcome domain.Outcome `json:"outcome"`
}

// Send answers one user message using this month's and last month's spending
// and the recent conversation. Both sides of the exchange are persisted.
func (s *ChatService) Send(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req.UserID <= 0 {
		return nil, errors.ErrInvalidUserID
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "message is required")
	}
	if req.TargetBudget.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidInput, "target_budget must not be negative")
	}

	current := domain.MonthOf(s.now().In(s.location))
	prompt := domain.ChatPrompt{
		Message:      message,
		TargetBudget: req.TargetBudget,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.aggregator.Summarize(gctx, req.UserID, current)
		prompt.CurrentMonth = summary
		return err
	})
	g.Go(func() error {
		summary, err := s.aggregator.Summarize(gctx, req.UserID, current.Prev())
		prompt.LastMonth = summary
		return err
	})
	g.Go(func() error {
		if s.historyLimit == 0 {
			return nil
		}
		history, err := s.store.Chat().RecentMessages(gctx, req.UserID, s.historyLimit)
		prompt.History = history
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.Chat().SaveMessage(ctx, &domain.ChatMessage{
		UserID:  req.UserID,
		Sender:  domain.SenderUser,
		Content: message,
	}); err != nil {
		return nil, err
	}

	result := &ChatResult{Outcome: domain.OutcomeSucceeded}
	reply, err := s.responder.Respond(ctx, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		s.logger.Warn("Chat responder failed, using fallback reply", "user_id", req.UserID, "error", err)
		reply = ChatFallbackReply
		result.Outcome = domain.OutcomeGenerationFailed
	}
	result.Reply = reply

	if err := s.store.Chat().SaveMessage(ctx, &domain.ChatMessage{
		UserID:  req.UserID,
		Sender:  domain.SenderBot,
		Content: reply,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// History returns up to limit messages, oldest first.
func (s *ChatService) History(ctx context.Context, userID int64, limit int) ([]domain.ChatMessage, error) {
	if userID <= 0 {
		return nil, errors.ErrInvalidUserID
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.store.Chat().RecentMessages(ctx, userID, limit)
}
