package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionWithdraw Direction = "WITHDRAW"
	DirectionDeposit  Direction = "DEPOSIT"
	DirectionTransfer Direction = "TRANSFER"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionWithdraw, DirectionDeposit, DirectionTransfer:
		return true
	}
	return false
}

// Transaction is one immutable, categorized spending event.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Direction   Direction       `json:"direction"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, userID int64, start, end time.Time) ([]Transaction, error)
}
