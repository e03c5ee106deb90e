package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"promotions/internal/platform/kafka/consumer"
	"promotions/internal/promotion/models"
)

type stubProducer struct {
	records []*kgo.Record
	err     error
}

func (p *stubProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

type stubReloader struct {
	events []models.PromotionEvent
	err    error
}

func (r *stubReloader) HandlePromotionEvent(_ context.Context, event models.PromotionEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestNewPublisherRequiresDependencies(t *testing.T) {
	_, err := NewPublisher(nil, "promotions")
	require.Error(t, err)

	_, err = NewPublisher(&stubProducer{}, "")
	require.Error(t, err)
}

func TestPublishWritesKeyedRecord(t *testing.T) {
	producer := &stubProducer{}
	publisher, err := NewPublisher(producer, "promotions")
	require.NoError(t, err)

	event := models.PromotionEvent{
		Type:       models.EventCreated,
		Promotion:  models.Promotion{ID: "promo-1", Title: "3 for 2"},
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, producer.records, 1)
	record := producer.records[0]
	assert.Equal(t, "promotions", record.Topic)
	assert.Equal(t, "promo-1", string(record.Key))
	require.Len(t, record.Headers, 1)
	assert.Equal(t, "CREATE", string(record.Headers[0].Value))

	var decoded models.PromotionEvent
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, "promo-1", decoded.Promotion.ID)
}

func TestPublishSurfacesBrokerError(t *testing.T) {
	publisher, err := NewPublisher(&stubProducer{err: errors.New("broker down")}, "promotions")
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), models.PromotionEvent{Type: models.EventUpdated})
	require.ErrorContains(t, err, "broker down")
}

func TestHandlerReloadsOnEvent(t *testing.T) {
	reloader := &stubReloader{}
	handler := NewHandler(reloader, nil)

	payload, err := json.Marshal(models.PromotionEvent{Promotion: models.Promotion{ID: "promo-2"}})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), &consumer.Message{
		Value:   payload,
		Headers: map[string]string{"type": "UPDATE"},
	})
	require.NoError(t, err)
	require.Len(t, reloader.events, 1)
	assert.Equal(t, models.EventUpdated, reloader.events[0].Type)
	assert.Equal(t, "promo-2", reloader.events[0].Promotion.ID)
}

func TestHandlerDropsUndecodableRecord(t *testing.T) {
	reloader := &stubReloader{}
	handler := NewHandler(reloader, nil)

	err := handler.Handle(context.Background(), &consumer.Message{Value: []byte("{not json")})
	require.NoError(t, err)
	assert.Empty(t, reloader.events)
}

func TestHandlerWrapsReloadFailure(t *testing.T) {
	handler := NewHandler(&stubReloader{err: errors.New("store offline")}, nil)

	err := handler.Handle(context.Background(), &consumer.Message{Value: []byte(`{"type":"CREATE"}`)})
	require.ErrorContains(t, err, "store offline")
}
