//go:build integration

package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"promotions/internal/platform/kafka"
	"promotions/internal/platform/kafka/consumer"
	"promotions/internal/promotion/events"
	"promotions/internal/promotion/models"
	"promotions/pkg/testutil/containers"
)

type recordingReloader struct {
	mu     sync.Mutex
	events []models.PromotionEvent
}

func (r *recordingReloader) HandlePromotionEvent(_ context.Context, event models.PromotionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type EventsIntegrationSuite struct {
	suite.Suite
	brokers []string
}

func TestEventsIntegrationSuite(t *testing.T) {
	suite.Run(t, new(EventsIntegrationSuite))
}

func (s *EventsIntegrationSuite) SetupSuite() {
	rp := containers.GetManager().GetRedpanda(s.T())
	s.brokers = rp.Brokers
}

func (s *EventsIntegrationSuite) TestPublishedEventReachesConsumer() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "promotions-it"
	producerClient, err := kafka.NewClient(kafka.Config{Brokers: s.brokers, ClientID: "it-producer"})
	s.Require().NoError(err)
	defer producerClient.Close()
	s.Require().NoError(kafka.EnsureTopic(ctx, producerClient, topic, 1, 1))

	consumerClient, err := kafka.NewClient(
		kafka.Config{Brokers: s.brokers, ClientID: "it-consumer"},
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)

	reloader := &recordingReloader{}
	c := consumer.New(consumerClient, events.NewHandler(reloader, nil), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	publisher, err := events.NewPublisher(producerClient, topic)
	s.Require().NoError(err)
	s.Require().NoError(publisher.Publish(ctx, models.PromotionEvent{
		Type:      models.EventCreated,
		Promotion: models.Promotion{ID: "promo-it"},
	}))

	s.Eventually(func() bool { return reloader.count() == 1 }, 30*time.Second, 100*time.Millisecond)

	consumerClient.Close()
	<-done
}
