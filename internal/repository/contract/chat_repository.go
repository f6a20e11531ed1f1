package contract

import (
	"context"

	"medibot-be/internal/entity"
	"medibot-be/internal/repository/specification"
)

type ChatRepository interface {
	// InsertOnce records chat metadata guarded by title uniqueness per user:
	// a second insert with the same (user_id, title) is a no-op.
	InsertOnce(ctx context.Context, chat *entity.Chat) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error)
	DeleteByUserId(ctx context.Context, userId string) error
}
