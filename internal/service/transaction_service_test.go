package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

func (s *ServiceSuite) TestRecord_ExplicitCategorySkipsClassifier() {
	tx := s.record(1, "50000", domain.CategoryFood, month(2026, time.March))

	s.Equal(domain.CategoryFood, tx.Category)
	s.Equal(domain.DirectionWithdraw, tx.Direction)
	s.Zero(s.classifier.Calls())
}

func (s *ServiceSuite) TestRecord_ClassifiesDescription() {
	result, err := s.transactions.Record(context.Background(), &RecordRequest{
		UserID:      1,
		Amount:      decimal.NewFromInt(12000),
		Description: "택시비",
	})
	s.Require().NoError(err)

	s.Equal(domain.CategoryTransport, result.Transaction.Category)
	s.Equal(domain.OutcomeSucceeded, result.Classification)
	s.EqualValues(1, s.classifier.Calls())
}

func (s *ServiceSuite) TestRecord_ClassifierFailureFallsBackToOther() {
	result, err := s.transactions.Record(context.Background(), &RecordRequest{
		UserID:      1,
		Amount:      decimal.NewFromInt(7000),
		Description: "정체불명 결제",
	})
	s.Require().NoError(err)

	s.Equal(domain.CategoryOther, result.Transaction.Category)
	s.Equal(domain.OutcomeClassificationFailed, result.Classification)

	stored, err := s.store.Transactions().GetTransactionByID(context.Background(), result.Transaction.ID)
	s.Require().NoError(err)
	s.Equal(domain.CategoryOther, stored.Category)
}

func (s *ServiceSuite) TestRecord_Validation() {
	cases := []struct {
		name string
		req  RecordRequest
		code errors.ErrorCode
	}{
		{"zero amount", RecordRequest{UserID: 1, Amount: decimal.Zero, Description: "x"}, errors.InvalidAmount},
		{"negative amount", RecordRequest{UserID: 1, Amount: decimal.NewFromInt(-5), Description: "x"}, errors.InvalidAmount},
		{"sub-cent amount", RecordRequest{UserID: 1, Amount: decimal.RequireFromString("1.005"), Description: "x"}, errors.InvalidAmount},
		{"missing user", RecordRequest{Amount: decimal.NewFromInt(1), Description: "x"}, errors.InvalidUserID},
		{"blank description", RecordRequest{UserID: 1, Amount: decimal.NewFromInt(1), Description: "  "}, errors.InvalidInput},
		{"unknown category", RecordRequest{UserID: 1, Amount: decimal.NewFromInt(1), Description: "x", Category: "간식"}, errors.InvalidInput},
		{"unknown direction", RecordRequest{UserID: 1, Amount: decimal.NewFromInt(1), Description: "x", Direction: "REFUND"}, errors.InvalidInput},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := tc.req
			_, err := s.transactions.Record(context.Background(), &req)
			s.True(errors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *ServiceSuite) TestList_ReturnsOnlyTheRequestedMonth() {
	s.record(1, "1000", domain.CategoryFood, month(2026, time.February))
	s.record(1, "2000", domain.CategoryFood, month(2026, time.March))
	s.record(2, "3000", domain.CategoryFood, month(2026, time.March))

	list, err := s.transactions.List(context.Background(), 1, month(2026, time.March))
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.assertDecimal("2000", list[0].Amount)
}
