package service

import (
	"context"
	"encoding/json"

	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
	"medibot-be/internal/pkg/logger"
	"medibot-be/pkg/events"
	pktNats "medibot-be/pkg/nats"
)

// NoticeDelivery fans a payload out to every connected client. Implemented
// by the registry hub.
type NoticeDelivery interface {
	Broadcast(payload []byte)
}

// NoticeService turns operator notices from the event bus into info
// notifications on every live connection.
type NoticeService struct {
	subscriber *pktNats.Subscriber
	delivery   NoticeDelivery
	logger     logger.ILogger
}

func NewNoticeService(sub *pktNats.Subscriber, delivery NoticeDelivery, log logger.ILogger) *NoticeService {
	return &NoticeService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening on the system notice subject.
func (s *NoticeService) Start() {
	err := s.subscriber.Subscribe(constant.SystemNoticeTopic, "notice-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NoticeService", "Failed to start notice subscriber", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("NoticeService", "Notice service started, listening to events.system.notice", nil)
}

func (s *NoticeService) handleEvent(ctx context.Context, event events.Event) error {
	text, _ := event.Payload()["message"].(string)
	if text == "" {
		s.logger.Warn("NoticeService", "Notice without message, skipping", nil)
		return nil
	}

	payload, err := json.Marshal(dto.NewInfo(text))
	if err != nil {
		return err
	}
	s.delivery.Broadcast(payload)
	return nil
}
