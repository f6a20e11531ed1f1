package service

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
)

type IPublisherService interface {
	PublishTurn(payload dto.PersistTurnMessage) error
}

// publisherService enqueues completed turns on the in-process persistence
// queue. The consumer drains it sequentially, so enqueueing here is all the
// write coordination a turn needs.
type publisherService struct {
	pubSub *gochannel.GoChannel
}

func NewPublisherService(pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		pubSub: pubSub,
	}
}

func (ps *publisherService) PublishTurn(payload dto.PersistTurnMessage) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal turn payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), raw)
	if err := ps.pubSub.Publish(constant.PersistTurnTopic, msg); err != nil {
		return fmt.Errorf("publish turn: %w", err)
	}
	return nil
}
