package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/events"
	pktNats "ai-marketchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDelivery struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureDelivery) Broadcast(event events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureDelivery) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type flakyForwarder struct {
	capturePublisher
	err error
}

func (f *flakyForwarder) Publish(ctx context.Context, event events.Event) error {
	if f.err != nil {
		return f.err
	}
	return f.capturePublisher.Publish(ctx, event)
}

func newBus(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestConsumerForwardsToNats(t *testing.T) {
	bus := newBus(t)
	forwarder := &flakyForwarder{}
	local := &captureDelivery{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumerService(bus, constant.ChatEventsTopic, forwarder, local, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService(constant.ChatEventsTopic, bus)
	require.NoError(t, publisher.Publish(ctx, events.NewEvent(constant.EventChatTurnCompleted, map[string]interface{}{"chat_id": "chat_1"})))

	require.Eventually(t, func() bool { return len(forwarder.types()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{constant.EventChatTurnCompleted}, forwarder.types())
	assert.Zero(t, local.count())
}

func TestConsumerFallsBackToLocalDelivery(t *testing.T) {
	bus := newBus(t)
	forwarder := &flakyForwarder{err: errors.New("nats down")}
	local := &captureDelivery{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumerService(bus, constant.ChatEventsTopic, forwarder, local, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService(constant.ChatEventsTopic, bus)
	require.NoError(t, publisher.Publish(ctx, events.NewEvent(constant.EventConversationDeleted, map[string]interface{}{"chat_id": "chat_2"})))

	require.Eventually(t, func() bool { return local.count() == 1 }, time.Second, 5*time.Millisecond)
}

type fakeSubscriber struct {
	subject string
	durable string
	handler pktNats.EventHandler
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error {
	f.subject, f.durable, f.handler = subject, durableName, handler
	return nil
}

func TestNotificationServiceBroadcastsChatEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	delivery := &captureDelivery{}
	svc := NewNotificationService(sub, delivery, "chat-notify-test", logger.NewNopLogger())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, "events.>", sub.subject)
	assert.Equal(t, "chat-notify-test", sub.durable)

	ctx := context.Background()
	require.NoError(t, sub.handler(ctx, events.NewEvent(constant.EventChatTurnCompleted, nil)))
	require.NoError(t, sub.handler(ctx, events.NewEvent("SOMETHING_ELSE", nil)))
	require.NoError(t, sub.handler(ctx, events.NewEvent(constant.EventConversationDeleted, nil)))

	assert.Equal(t, 2, delivery.count())
}
