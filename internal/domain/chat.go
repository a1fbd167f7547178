package domain

import (
	"context"
	"time"
)

type Sender string

const (
	SenderUser Sender = "USER"
	SenderBot  Sender = "BOT"
)

type ChatMessage struct {
	ID        int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatRepository interface {
	SaveMessage(ctx context.Context, msg *ChatMessage) error
	// RecentMessages returns at most limit messages, oldest first.
	RecentMessages(ctx context.Context, userID int64, limit int) ([]ChatMessage, error)
}
