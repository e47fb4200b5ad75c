package service

import (
	"context"
	"fmt"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/events"
	pktNats "ai-marketchat-be/pkg/nats" // Renamed to avoid collision
)

// EventSubscriber is the consuming side of the NATS bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error
}

// NotificationService pushes bus events to this instance's websocket clients.
type NotificationService struct {
	subscriber  EventSubscriber
	delivery    NotificationDelivery
	durableName string
	logger      logger.ILogger
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, durableName string, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber:  sub,
		delivery:    delivery,
		durableName: durableName,
		logger:      log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start(ctx context.Context) error {
	err := s.subscriber.Subscribe(ctx, constant.NotificationSubjectFilter, s.durableName, s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return err
	}
	s.logger.Info("NotificationService", "Notification service started, listening to "+constant.NotificationSubjectFilter, map[string]interface{}{"durable": s.durableName})
	return nil
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	s.logger.Debug("NotificationService", fmt.Sprintf("Processing event: %s", event.EventType()), map[string]interface{}{"type": event.EventType()})

	switch event.EventType() {
	case constant.EventChatTurnCompleted, constant.EventConversationDeleted:
	default:
		s.logger.Debug("NotificationService", "Ignoring event type", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Broadcast(event)
	}
	return nil
}
