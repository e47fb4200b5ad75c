package service

import (
	"context"
	"encoding/json"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventForwarder relays events beyond this process. *nats.Publisher satisfies it.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

// NotificationDelivery pushes events to connected websocket clients. Implemented by the hub.
type NotificationDelivery interface {
	Broadcast(event events.Event)
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forwarder  EventForwarder
	local      NotificationDelivery
	logger     logger.ILogger
}

// NewConsumerService drains the in-process topic. Events go to NATS when a forwarder is
// configured (the notification service brings them back to every instance's hub); otherwise,
// or when forwarding fails, they are delivered to this instance's clients directly.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder EventForwarder,
	local NotificationDelivery,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forwarder:  forwarder,
		local:      local,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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
	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil || event.Type == "" {
		cs.logger.Error("ConsumerService", "Dropping undecodable event", map[string]interface{}{"message_id": msg.UUID, "error": err})
		// Ack invalid messages to prevent infinite retry
		msg.Ack()
		return
	}

	if cs.forwarder != nil {
		err := cs.forwarder.Publish(ctx, event)
		if err == nil {
			cs.logger.Debug("ConsumerService", "Event forwarded", map[string]interface{}{"type": event.Type})
			msg.Ack()
			return
		}
		cs.logger.Warn("ConsumerService", "Forwarding failed, delivering locally", map[string]interface{}{"type": event.Type, "error": err.Error()})
	}

	if cs.local != nil {
		cs.local.Broadcast(event)
	}
	msg.Ack()
}
