package bus

import (
	"context"

	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"
)

// Handler processes one envelope. Returning an error nacks the message so
// the bus redelivers it; returning nil acks it.
type Handler func(ctx context.Context, env events.Envelope) error

// Bus abstracts a durable, topic-routed, at-least-once event transport
// (§4.C). Ordering within a topic is not required; batch_id is used as the
// grouping/partition key where an implementation supports one.
type Bus interface {
	// Publish sends an envelope to topic, keyed by key (typically batch_id).
	Publish(ctx context.Context, topic string, key string, env events.Envelope) error

	// Subscribe registers handler as a durable consumer of topic under
	// group (a durable/consumer-group name, stable across restarts).
	Subscribe(ctx context.Context, topic string, group string, handler Handler) error

	Close() error
}

const (
	TopicAnswerGenerated       = string(events.AnswerGenerated)
	TopicVerificationCompleted = string(events.VerificationCompleted)
)
