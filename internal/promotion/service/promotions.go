package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"promotions/internal/promotion/condition"
	"promotions/internal/promotion/discount"
	"promotions/internal/promotion/engine"
	"promotions/internal/promotion/models"
	dErrors "promotions/pkg/domain-errors"
	"promotions/pkg/platform/sentinel"
	"promotions/pkg/requestcontext"
)

// Reload triggers.
const (
	TriggerStartup = "startup"
	TriggerEvent   = "event"
	TriggerLocal   = "local"
)

// CreatePromotion validates and stores a new promotion.
func (s *Service) CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error) {
	now := requestcontext.Now(ctx)
	promo := &models.Promotion{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Class:     req.Class,
		Active:    req.IsActive(),
		Priority:  req.Priority,
		If:        req.If,
		Then:      req.Then,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.compile(promo, true); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, promo); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "promotion already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create promotion")
	}

	s.logger.InfoContext(ctx, "promotion created",
		"request_id", requestcontext.RequestID(ctx),
		"promotion_id", promo.ID,
		"priority", promo.Priority,
	)
	s.changed(ctx, models.EventCreated, promo)
	return promo, nil
}

// GetPromotion returns one promotion.
func (s *Service) GetPromotion(ctx context.Context, id string) (*models.Promotion, error) {
	promo, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "promotion not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get promotion")
	}
	return promo, nil
}

// ListPromotions returns every stored promotion, active or not.
func (s *Service) ListPromotions(ctx context.Context) ([]*models.Promotion, error) {
	promos, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list promotions")
	}
	return promos, nil
}

// PatchPromotion applies an RFC 7396 merge patch to a stored promotion.
// The id and creation time cannot be changed.
func (s *Service) PatchPromotion(ctx context.Context, id string, patch []byte) (*models.Promotion, error) {
	var updated *models.Promotion
	err := s.withinTx(ctx, func(ctx context.Context) error {
		current, err := s.GetPromotion(ctx, id)
		if err != nil {
			return err
		}
		updated, err = s.mergePatch(ctx, current, patch)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, updated); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "promotion not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update promotion")
		}
		return nil
	})
	if err != nil {
		if _, ok := dErrors.From(err); !ok {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to update promotion")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "promotion updated",
		"request_id", requestcontext.RequestID(ctx),
		"promotion_id", updated.ID,
		"active", updated.Active,
	)
	s.changed(ctx, models.EventUpdated, updated)
	return updated, nil
}

// mergePatch returns current with patch applied and validated.
func (s *Service) mergePatch(ctx context.Context, current *models.Promotion, patch []byte) (*models.Promotion, error) {
	original, err := json.Marshal(current)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode promotion")
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid merge patch")
	}

	var updated models.Promotion
	if err := json.Unmarshal(merged, &updated); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "patched promotion is not valid")
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = requestcontext.Now(ctx)

	check := models.CreatePromotionRequest{
		Title:    updated.Title,
		Class:    updated.Class,
		Active:   &updated.Active,
		Priority: updated.Priority,
		If:       updated.If,
		Then:     updated.Then,
	}
	check.Normalize()
	if err := check.Validate(); err != nil {
		return nil, err
	}
	updated.Title, updated.Class = check.Title, check.Class
	if _, err := s.compile(&updated, true); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t, ok := s.store.(Transactor); ok {
		return t.WithinTx(ctx, fn)
	}
	return fn(ctx)
}

// HandlePromotionEvent refreshes the active promotions after a change made
// by any instance.
func (s *Service) HandlePromotionEvent(ctx context.Context, event models.PromotionEvent) error {
	s.logger.DebugContext(ctx, "promotion event received",
		"type", event.Type,
		"promotion_id", event.Promotion.ID,
	)
	return s.Reload(ctx, TriggerEvent)
}

// Reload replaces the in-memory active promotions with the store contents.
// Concurrent reloads share one store read.
func (s *Service) Reload(ctx context.Context, trigger string) error {
	ctx = context.WithoutCancel(ctx)
	_, err, _ := s.group.Do("reload", func() (any, error) {
		stored, err := s.store.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active promotions: %w", err)
		}

		compiled := make([]engine.Promotion, 0, len(stored))
		for _, p := range stored {
			if !p.Active || p.Class != models.ClassDefault {
				continue
			}
			cp, err := s.compile(p, false)
			if err != nil {
				s.logger.ErrorContext(ctx, "skipping unreadable promotion",
					"promotion_id", p.ID,
					"error", err,
				)
				continue
			}
			compiled = append(compiled, cp)
		}

		s.mu.Lock()
		s.active = compiled
		s.loaded = true
		s.mu.Unlock()

		s.metrics.IncrementReload(trigger)
		s.logger.InfoContext(ctx, "promotions reloaded",
			"trigger", trigger,
			"active", len(compiled),
		)
		return nil, nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load promotions")
	}
	return nil
}

func (s *Service) activePromotions(ctx context.Context) ([]engine.Promotion, error) {
	s.mu.RLock()
	active, loaded := s.active, s.loaded
	s.mu.RUnlock()
	if loaded {
		return active, nil
	}

	if err := s.Reload(ctx, TriggerStartup); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// compile decodes the trees of promo. With strict set, every operator must be
// registered and every rule must compile; stored promotions are only decoded
// so that unknown operators surface when a cart is evaluated.
func (s *Service) compile(promo *models.Promotion, strict bool) (engine.Promotion, error) {
	cp := engine.Promotion{
		ID:       promo.ID,
		Title:    promo.Title,
		Class:    promo.Class,
		Priority: promo.Priority,
	}

	ifNode, err := condition.Decode(promo.If)
	if err != nil {
		return cp, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid condition: %v", err))
	}
	if strict {
		if err := s.conditions.Validate(ifNode); err != nil {
			return cp, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
		if err := s.rules.Validate(ifNode); err != nil {
			return cp, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
	}
	cp.If = ifNode

	if len(promo.Then) == 0 || string(promo.Then) == "null" {
		return cp, nil
	}
	thenNode, err := discount.Decode(promo.Then)
	if err != nil {
		return cp, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid discount: %v", err))
	}
	if strict {
		if err := s.discounts.Validate(thenNode); err != nil {
			return cp, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
	}
	cp.Then = thenNode
	return cp, nil
}

// changed publishes the change and refreshes the local promotions. Failures
// are logged: the store already holds the change.
func (s *Service) changed(ctx context.Context, eventType models.EventType, promo *models.Promotion) {
	if s.publisher != nil {
		event := models.PromotionEvent{
			Type:       eventType,
			Promotion:  *promo,
			OccurredAt: requestcontext.Now(ctx),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish promotion event",
				"promotion_id", promo.ID,
				"type", eventType,
				"error", err,
			)
		}
	}
	if err := s.Reload(ctx, TriggerLocal); err != nil {
		s.logger.ErrorContext(ctx, "failed to reload promotions",
			"promotion_id", promo.ID,
			"error", err,
		)
	}
}
