package unitofwork

import (
	"context"

	"medibot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatMessageRepository() contract.ChatMessageRepository
	ChatRepository() contract.ChatRepository
}
