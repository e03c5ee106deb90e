// Package consumer polls Kafka topics and hands records to a Handler.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Handler processes one message. Returned errors are logged and the record is
// skipped; handlers that need redelivery must retry themselves.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Poller is the part of *kgo.Client the consumer uses.
type Poller interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Consumer dispatches fetched records to a Handler until its context ends.
type Consumer struct {
	client  Poller
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer over a client configured with kgo.ConsumeTopics.
func New(client Poller, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{client: client, handler: handler, logger: logger}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			msg := toMessage(r)
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "kafka message handling failed",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"key", string(msg.Key),
					"error", err,
				)
			}
		})
	}
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Partition: r.Partition,
		Offset:    r.Offset,
		Timestamp: r.Timestamp,
	}
}
