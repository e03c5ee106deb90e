// Package events carries promotion change notifications over Kafka so every
// engine instance reloads its active promotions.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"promotions/internal/promotion/models"
)

const headerType = "type"

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher writes promotion events to a topic keyed by promotion ID.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("promotions topic is required")
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, event models.PromotionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode promotion event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Promotion.ID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerType, Value: []byte(event.Type)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish promotion event: %w", err)
	}
	return nil
}
