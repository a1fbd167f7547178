package repository

import (
	"context"
	"log/slog"

	"finmate/internal/domain"
	"finmate/internal/errors"
)

type chatRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewChatRepository(db SQLExecutor, logger *slog.Logger) domain.ChatRepository {
	return &chatRepository{
		db:     db,
		logger: logger,
	}
}

func (r *chatRepository) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (user_id, sender, content, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, msg.UserID, msg.Sender, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to save chat message", "user_id", msg.UserID, "sender", msg.Sender, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to save chat message").WithDetails(err.Error())
	}
	return nil
}

func (r *chatRepository) RecentMessages(ctx context.Context, userID int64, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, user_id, sender, content, created_at
		FROM (
			SELECT id, user_id, sender, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to read chat history", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to read chat history").WithDetails(err.Error())
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan chat message").WithDetails(err.Error())
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read chat history").WithDetails(err.Error())
	}
	return messages, nil
}
