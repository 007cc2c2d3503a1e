package memory

import (
	"context"
	"encoding/json"

	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// MemoryBus is the in-process implementation of bus.Bus, used for tests
// and single-process deployments that don't need cross-process durability.
// The key parameter is accepted for interface symmetry with the NATS bus
// but ignored: gochannel has no notion of a partition key.
type MemoryBus struct {
	pubSub *gochannel.GoChannel
	log    logger.ILogger
}

func New(log logger.ILogger) *MemoryBus {
	return &MemoryBus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
				Persistent:          true,
			},
			watermill.NewStdLogger(false, false),
		),
		log: log,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, key string, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := message.NewMessage(env.EventID, data)
	return b.pubSub.Publish(topic, msg)
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, group string, handler bus.Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var env events.Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				// Malformed event (§7): log with whatever correlation_id is
				// available, then drop rather than jam the subscription.
				b.log.Error("memory_bus", "dropping malformed event", logger.Fields{
					Details: map[string]interface{}{"topic": topic, "error": err.Error(), "payload": string(msg.Payload)},
				})
				msg.Ack()
				continue
			}

			if err := handler(context.Background(), env); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	return nil
}

func (b *MemoryBus) Close() error {
	return b.pubSub.Close()
}
