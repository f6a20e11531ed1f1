package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
	"medibot-be/internal/entity"
	"medibot-be/internal/pkg/logger"
	"medibot-be/internal/repository/unitofwork"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the persistence queue. One goroutine, one message
// at a time: that is what serializes all durable writes for a user.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	uowFactory unitofwork.RepositoryFactory,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, constant.PersistTurnTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PersistTurnMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Unreadable turn payload", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	rows := make([]*entity.ChatMessage, 0, len(payload.Messages))
	nowTs := time.Now()
	for _, m := range payload.Messages {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			ts = nowTs
		}
		rows = append(rows, &entity.ChatMessage{
			Id:        uuid.New(),
			UserId:    payload.UserId,
			ChatId:    m.ChatId,
			Seq:       m.Number,
			Sender:    m.From,
			Text:      m.Text,
			Timestamp: ts,
			CreatedAt: nowTs,
		})
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.logger.Error("ConsumerService", "Failed to begin transaction", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}
	defer uow.Rollback()

	if len(rows) > 0 {
		if err := uow.ChatMessageRepository().UpsertBulk(ctx, rows); err != nil {
			cs.logger.Error("ConsumerService", "Failed to upsert messages", map[string]interface{}{
				"user_id": payload.UserId,
				"error":   err.Error(),
			})
			msg.Nack()
			return
		}
	}

	if payload.Chat != nil {
		chat := &entity.Chat{
			Id:        uuid.New(),
			UserId:    payload.UserId,
			ChatId:    payload.Chat.Id,
			Title:     payload.Chat.Title,
			CreatedAt: nowTs,
		}
		if err := uow.ChatRepository().InsertOnce(ctx, chat); err != nil {
			cs.logger.Error("ConsumerService", "Failed to insert chat metadata", map[string]interface{}{
				"user_id": payload.UserId,
				"error":   err.Error(),
			})
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		cs.logger.Error("ConsumerService", "Failed to commit turn", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}

	msg.Ack()
}
