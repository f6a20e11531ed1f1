package service

import (
	"context"
	"errors"
	"time"

	"medibot-be/internal/repository/specification"
	"medibot-be/internal/repository/unitofwork"
	"medibot-be/pkg/store"
)

// ErrUserNotFound marks a lookup for a user with no recorded activity.
var ErrUserNotFound = errors.New("user not found")

type IChatService interface {
	GetChats(ctx context.Context, userId string) ([]store.ChatMeta, error)
}

// chatService serves the REST chat index from the Persistence Gateway.
type chatService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewChatService(uowFactory unitofwork.RepositoryFactory) IChatService {
	return &chatService{
		uowFactory: uowFactory,
	}
}

func (s *chatService) GetChats(ctx context.Context, userId string) ([]store.ChatMeta, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.OwnedByUser{UserId: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	if len(chats) == 0 {
		// Untitled activity still counts as a known user.
		count, err := uow.ChatMessageRepository().Count(ctx, specification.OwnedByUser{UserId: userId})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrUserNotFound
		}
		return []store.ChatMeta{}, nil
	}

	out := make([]store.ChatMeta, 0, len(chats))
	for _, c := range chats {
		out = append(out, store.ChatMeta{
			Id:        c.ChatId,
			Title:     c.Title,
			Timestamp: c.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}
