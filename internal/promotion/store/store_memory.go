// Package store persists promotion definitions.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"promotions/internal/promotion/models"
	"promotions/pkg/platform/sentinel"
)

// InMemoryStore keeps promotions in a map. Callers get copies.
type InMemoryStore struct {
	mu         sync.RWMutex
	promotions map[string]models.Promotion
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{promotions: make(map[string]models.Promotion)}
}

func (s *InMemoryStore) Create(_ context.Context, promo *models.Promotion) error {
	if promo == nil {
		return fmt.Errorf("promotion is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.promotions[promo.ID]; exists {
		return fmt.Errorf("promotion %s: %w", promo.ID, sentinel.ErrConflict)
	}
	s.promotions[promo.ID] = *promo
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, promo *models.Promotion) error {
	if promo == nil {
		return fmt.Errorf("promotion is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.promotions[promo.ID]; !exists {
		return fmt.Errorf("promotion %s: %w", promo.ID, sentinel.ErrNotFound)
	}
	s.promotions[promo.ID] = *promo
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	promo, ok := s.promotions[id]
	if !ok {
		return nil, fmt.Errorf("promotion %s: %w", id, sentinel.ErrNotFound)
	}
	return &promo, nil
}

// List returns every promotion, oldest first.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *models.Promotion) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// ListActive returns active promotions by ascending priority.
func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		if p.Active {
			out = append(out, &p)
		}
	}
	slices.SortFunc(out, byPriority)
	return out, nil
}

// byPriority orders by priority, then creation time, then id.
func byPriority(a, b *models.Promotion) int {
	return cmp.Or(
		cmp.Compare(a.Priority, b.Priority),
		a.CreatedAt.Compare(b.CreatedAt),
		cmp.Compare(a.ID, b.ID),
	)
}
