package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "PIPELINE_EVENTS"

// NatsBus is the durable production implementation of bus.Bus, backed by
// JetStream. Messages that exhaust MaxDeliver land in the stream's
// overflow and are left unacked for operator inspection rather than
// silently dropped.
type NatsBus struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log logger.ILogger
}

func New(url string, log logger.ILogger) (*NatsBus, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	return &NatsBus{nc: nc, js: js, log: log}, nil
}

func subject(topic, key string) string {
	return fmt.Sprintf("events.%s", topic)
}

func (b *NatsBus) Publish(ctx context.Context, topic string, key string, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subj := subject(topic, key)
	_, err = b.js.Publish(ctx, subj, data)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subj, err)
	}
	return nil
}

func (b *NatsBus) Subscribe(ctx context.Context, topic string, group string, handler bus.Handler) error {
	subj := subject(topic, "")

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       group,
		FilterSubject: subj,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", group, err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			// Malformed event (§7): log with whatever correlation_id is
			// available, then ack to drop it — it cannot be retried into
			// validity.
			b.log.Error("natsbus", "dropping malformed event", logger.Fields{
				Details: map[string]interface{}{"subject": subj, "error": err.Error(), "payload": string(msg.Data())},
			})
			msg.Ack()
			return
		}

		if err := handler(context.Background(), env); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", subj, err)
	}

	return nil
}

func (b *NatsBus) Close() error {
	b.nc.Close()
	return nil
}
