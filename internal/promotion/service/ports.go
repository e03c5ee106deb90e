package service

import (
	"context"

	"promotions/internal/promotion/models"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// PromotionStore persists promotion definitions. Implementations return
// sentinel.ErrNotFound for unknown ids and sentinel.ErrConflict for duplicates.
type PromotionStore interface {
	Create(ctx context.Context, promo *models.Promotion) error
	Update(ctx context.Context, promo *models.Promotion) error
	FindByID(ctx context.Context, id string) (*models.Promotion, error)
	List(ctx context.Context) ([]*models.Promotion, error)
	// ListActive returns active promotions ordered by priority.
	ListActive(ctx context.Context) ([]*models.Promotion, error)
}

// Catalog resolves product ids to catalog products. Unknown ids are left
// out of the result.
type Catalog interface {
	Products(ctx context.Context, productIDs []string) (models.Catalog, error)
}

// EventPublisher announces promotion changes to other instances.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PromotionEvent) error
}

// Transactor is implemented by stores that can run a read-modify-write
// atomically. Stores without it run the function directly.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
