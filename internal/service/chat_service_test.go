package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

func (s *ServiceSuite) TestChat_PersistsBothSidesAndFeedsHistory() {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, seoul)
	s.chat.now = func() time.Time { return now }
	s.record(1, "40000", domain.CategoryFood, month(2026, time.March))
	s.record(1, "25000", domain.CategoryFood, month(2026, time.February))

	first, err := s.chat.Send(context.Background(), &ChatRequest{
		UserID:       1,
		Message:      "이번 달 식비 괜찮아?",
		TargetBudget: decimal.NewFromInt(300000),
	})
	s.Require().NoError(err)
	s.Equal("답변: 이번 달 식비 괜찮아?", first.Reply)
	s.Equal(domain.OutcomeSucceeded, first.Outcome)

	prompt := s.responder.LastPrompt()
	s.Empty(prompt.History)
	s.assertDecimal("40000", prompt.CurrentMonth.Total)
	s.assertDecimal("25000", prompt.LastMonth.Total)
	s.assertDecimal("300000", prompt.TargetBudget)

	_, err = s.chat.Send(context.Background(), &ChatRequest{UserID: 1, Message: "고마워"})
	s.Require().NoError(err)

	// History excludes the message being answered.
	prompt = s.responder.LastPrompt()
	s.Require().Len(prompt.History, 2)
	s.Equal(domain.SenderUser, prompt.History[0].Sender)
	s.Equal(domain.SenderBot, prompt.History[1].Sender)

	history, err := s.chat.History(context.Background(), 1, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 4)
	s.Equal("고마워", history[2].Content)
	s.Equal("답변: 고마워", history[3].Content)
}

func (s *ServiceSuite) TestChat_HistoryIsCappedToMostRecent() {
	for i := 0; i < 5; i++ {
		_, err := s.chat.Send(context.Background(), &ChatRequest{UserID: 1, Message: "질문"})
		s.Require().NoError(err)
	}

	history, err := s.chat.History(context.Background(), 1, 3)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(domain.SenderBot, history[0].Sender)
	s.Equal(domain.SenderBot, history[2].Sender)
	for i := 1; i < len(history); i++ {
		s.Less(history[i-1].ID, history[i].ID)
	}
}

func (s *ServiceSuite) TestChat_ResponderFailureStoresFallback() {
	s.responder.Fail = true

	result, err := s.chat.Send(context.Background(), &ChatRequest{UserID: 1, Message: "안녕"})
	s.Require().NoError(err)
	s.Equal(ChatFallbackReply, result.Reply)
	s.Equal(domain.OutcomeGenerationFailed, result.Outcome)

	history, err := s.chat.History(context.Background(), 1, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(ChatFallbackReply, history[1].Content)
}

func (s *ServiceSuite) TestChat_Validation() {
	_, err := s.chat.Send(context.Background(), &ChatRequest{UserID: 1, Message: "   "})
	s.True(errors.HasCode(err, errors.InvalidInput))

	_, err = s.chat.Send(context.Background(), &ChatRequest{UserID: 1, Message: "hi", TargetBudget: decimal.NewFromInt(-1)})
	s.True(errors.HasCode(err, errors.InvalidInput))

	_, err = s.chat.Send(context.Background(), &ChatRequest{Message: "hi"})
	s.True(errors.HasCode(err, errors.InvalidUserID))
}
