package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"promotions/internal/platform/kafka/consumer"
	"promotions/internal/promotion/models"
)

// Reloader reacts to a decoded promotion event.
type Reloader interface {
	HandlePromotionEvent(ctx context.Context, event models.PromotionEvent) error
}

// Handler decodes promotion events for the Kafka consumer.
type Handler struct {
	reloader Reloader
	logger   *slog.Logger
}

func NewHandler(reloader Reloader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{reloader: reloader, logger: logger}
}

// Handle implements consumer.Handler. Records that fail to decode are dropped.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var event models.PromotionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.WarnContext(ctx, "dropping undecodable promotion event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if event.Type == "" {
		event.Type = models.EventType(msg.Headers[headerType])
	}
	if err := h.reloader.HandlePromotionEvent(ctx, event); err != nil {
		return fmt.Errorf("handle promotion event %s: %w", event.Promotion.ID, err)
	}
	return nil
}
