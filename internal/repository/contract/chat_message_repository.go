package contract

import (
	"context"

	"medibot-be/internal/entity"
	"medibot-be/internal/repository/specification"
)

type ChatMessageRepository interface {
	// UpsertBulk writes messages idempotently: rows are keyed by
	// (user_id, chat_id, seq) and replaying a turn overwrites in place.
	UpsertBulk(ctx context.Context, messages []*entity.ChatMessage) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByUserId(ctx context.Context, userId string) error
}
