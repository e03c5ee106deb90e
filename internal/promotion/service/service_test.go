package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"promotions/internal/promotion/models"
	"promotions/internal/promotion/service/mocks"
	dErrors "promotions/pkg/domain-errors"
	"promotions/pkg/platform/sentinel"
	"promotions/pkg/requestcontext"
)

// =============================================================================
// Promotion Service Test Suite
// =============================================================================
// Justification for unit tests: the service translates engine and store
// failures into domain errors, caches compiled promotions and publishes change
// events. These paths depend on collaborator failures that are impractical to
// trigger end to end.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockPromotionStore
	catalog   *mocks.MockCatalog
	publisher *mocks.MockEventPublisher
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockPromotionStore(s.ctrl)
	s.catalog = mocks.NewMockCatalog(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = New(s.store, s.catalog, WithLogger(logger), WithPublisher(s.publisher))
	s.Require().NoError(err)

	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func storedPromotion(id, ifJSON, thenJSON string) *models.Promotion {
	p := &models.Promotion{
		ID:     id,
		Title:  "Promotion " + id,
		Class:  models.ClassDefault,
		Active: true,
		If:     json.RawMessage(ifJSON),
	}
	if thenJSON != "" {
		p.Then = json.RawMessage(thenJSON)
	}
	return p
}

func shirtCatalog() models.Catalog {
	return models.Catalog{"0001": {ID: "0001", Categories: []string{"shirts"}}}
}

func evaluateRequest(quantity int) *models.EvaluateRequest {
	return &models.EvaluateRequest{Cart: models.Cart{Items: []models.CartItem{{
		ID: "0", ProductID: "0001", Quantity: quantity, Price: decimal.NewFromInt(100),
	}}}}
}

// transactionalStore adds WithinTx to the generated store mock.
type transactionalStore struct {
	*mocks.MockPromotionStore
	calls int
}

func (t *transactionalStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

const threeForTwo = `{"product": {"id": "0001", "quantity": 3}}`

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.catalog)
		s.Error(err)
		s.Contains(err.Error(), "promotion store is required")
	})

	s.Run("nil catalog returns error", func() {
		_, err := New(s.store, nil)
		s.Error(err)
		s.Contains(err.Error(), "catalog is required")
	})
}

// =============================================================================
// Evaluate Tests
// =============================================================================

func (s *ServiceSuite) TestEvaluate() {
	s.Run("fulfilled promotion applies its discount", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{
			storedPromotion("p1", threeForTwo, `{"product": {"id": "0001", "quantity": 1, "discount": {"rate": 100, "isPercentage": true}}}`),
		}, nil)
		s.catalog.EXPECT().Products(gomock.Any(), []string{"0001"}).Return(shirtCatalog(), nil)

		result, err := s.service.Evaluate(s.ctx, evaluateRequest(3))
		s.Require().NoError(err)
		s.Require().Len(result.FulfilledPromos, 1)
		s.Equal("p1", result.FulfilledPromos[0].PromotionID)
		s.Empty(result.AlmostFulfilledPromos)
		s.True(decimal.NewFromInt(100).Equal(result.Cart.Items[0].DiscountedTotal))
	})

	s.Run("request cart is not modified", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{
			storedPromotion("p1", threeForTwo, `{"product": {"id": "0001", "quantity": 1, "discount": {"rate": 100, "isPercentage": true}}}`),
		}, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(shirtCatalog(), nil)

		req := evaluateRequest(3)
		_, err := s.service.Evaluate(s.ctx, req)
		s.Require().NoError(err)
		s.Empty(req.Cart.Items[0].Discounts)
	})

	s.Run("promotions are loaded once", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{storedPromotion("p1", threeForTwo, "")}, nil).Times(1)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(shirtCatalog(), nil).Times(2)

		_, err := s.service.Evaluate(s.ctx, evaluateRequest(2))
		s.Require().NoError(err)
		result, err := s.service.Evaluate(s.ctx, evaluateRequest(2))
		s.Require().NoError(err)
		s.Len(result.AlmostFulfilledPromos, 1)
	})

	s.Run("user type falls back to the request context", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{
			storedPromotion("vip", `{"userType": "VIP"}`, ""),
		}, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(shirtCatalog(), nil).Times(2)

		ctx := requestcontext.WithUserType(s.ctx, "VIP")
		result, err := s.service.Evaluate(ctx, evaluateRequest(1))
		s.Require().NoError(err)
		s.Len(result.FulfilledPromos, 1)

		req := evaluateRequest(1)
		req.User = &models.User{Type: "REGULAR"}
		result, err = s.service.Evaluate(ctx, req)
		s.Require().NoError(err)
		s.Empty(result.FulfilledPromos)
	})

	s.Run("inactive and foreign class promotions are ignored", func() {
		s.SetupTest()
		inactive := storedPromotion("off", `{"userType": ""}`, "")
		inactive.Active = false
		foreign := storedPromotion("other", `{"userType": ""}`, "")
		foreign.Class = "shipping"
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{inactive, foreign}, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(shirtCatalog(), nil)

		result, err := s.service.Evaluate(s.ctx, evaluateRequest(1))
		s.Require().NoError(err)
		s.Empty(result.FulfilledPromos)
	})

	s.Run("product missing from catalog is a validation error", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(models.Catalog{}, nil)

		_, err := s.service.Evaluate(s.ctx, evaluateRequest(1))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		var missing *models.MissingProductError
		s.ErrorAs(err, &missing)
	})

	s.Run("unavailable catalog", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

		_, err := s.service.Evaluate(s.ctx, evaluateRequest(1))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("stored unknown operator is an invariant violation", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{
			storedPromotion("p1", `{"weather": "sunny"}`, ""),
		}, nil)
		s.catalog.EXPECT().Products(gomock.Any(), gomock.Any()).Return(shirtCatalog(), nil)

		_, err := s.service.Evaluate(s.ctx, evaluateRequest(1))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("store failure", func() {
		s.SetupTest()
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := s.service.Evaluate(s.ctx, evaluateRequest(1))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Promotion Management Tests
// =============================================================================

func (s *ServiceSuite) TestCreatePromotion() {
	s.Run("stores, publishes and reloads", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "3x2", Class: models.ClassDefault, Priority: 5, If: json.RawMessage(threeForTwo)}

		var stored *models.Promotion
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *models.Promotion) error {
			stored = p
			return nil
		})
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event models.PromotionEvent) error {
			s.Equal(models.EventCreated, event.Type)
			s.Equal(stored.ID, event.Promotion.ID)
			return nil
		})
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, nil)

		promo, err := s.service.CreatePromotion(s.ctx, req)
		s.Require().NoError(err)
		s.NotEmpty(promo.ID)
		s.True(promo.Active)
		s.Equal(s.now, promo.CreatedAt)
	})

	s.Run("unknown operator is rejected before storing", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "weather", Class: models.ClassDefault, If: json.RawMessage(`{"weather": "sunny"}`)}

		_, err := s.service.CreatePromotion(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid cel rule is rejected", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "cel", Class: models.ClassDefault, If: json.RawMessage(`{"cel": "subtotal >"}`)}

		_, err := s.service.CreatePromotion(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown discount operator is rejected", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "bogo", Class: models.ClassDefault, If: json.RawMessage(threeForTwo), Then: json.RawMessage(`{"bogo": {}}`)}

		_, err := s.service.CreatePromotion(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate maps to conflict", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "3x2", Class: models.ClassDefault, If: json.RawMessage(threeForTwo)}
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.CreatePromotion(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("publish failure does not fail the request", func() {
		s.SetupTest()
		req := &models.CreatePromotionRequest{Title: "3x2", Class: models.ClassDefault, If: json.RawMessage(threeForTwo)}
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, nil)

		_, err := s.service.CreatePromotion(s.ctx, req)
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestGetPromotion() {
	s.Run("not found", func() {
		s.SetupTest()
		s.store.EXPECT().FindByID(gomock.Any(), "missing").Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetPromotion(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestPatchPromotion() {
	s.Run("merges fields and keeps identity", func() {
		s.SetupTest()
		current := storedPromotion("p1", threeForTwo, "")
		current.CreatedAt = s.now.Add(-time.Hour)
		s.store.EXPECT().FindByID(gomock.Any(), "p1").Return(current, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event models.PromotionEvent) error {
			s.Equal(models.EventUpdated, event.Type)
			return nil
		})
		s.store.EXPECT().ListActive(gomock.Any()).Return(nil, nil)

		updated, err := s.service.PatchPromotion(s.ctx, "p1", []byte(`{"id": "other", "title": "Renamed", "active": false}`))
		s.Require().NoError(err)
		s.Equal("p1", updated.ID)
		s.Equal("Renamed", updated.Title)
		s.False(updated.Active)
		s.Equal(current.CreatedAt, updated.CreatedAt)
		s.Equal(s.now, updated.UpdatedAt)
		s.JSONEq(threeForTwo, string(updated.If))
	})

	s.Run("patched tree is validated", func() {
		s.SetupTest()
		s.store.EXPECT().FindByID(gomock.Any(), "p1").Return(storedPromotion("p1", threeForTwo, ""), nil)

		_, err := s.service.PatchPromotion(s.ctx, "p1", []byte(`{"if": {"weather": "sunny"}}`))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("removing the condition is rejected", func() {
		s.SetupTest()
		s.store.EXPECT().FindByID(gomock.Any(), "p1").Return(storedPromotion("p1", threeForTwo, ""), nil)

		_, err := s.service.PatchPromotion(s.ctx, "p1", []byte(`{"if": null}`))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed patch", func() {
		s.SetupTest()
		s.store.EXPECT().FindByID(gomock.Any(), "p1").Return(storedPromotion("p1", threeForTwo, ""), nil)

		_, err := s.service.PatchPromotion(s.ctx, "p1", []byte(`{"title":`))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("runs inside the store transaction when supported", func() {
		s.SetupTest()
		txStore := &transactionalStore{MockPromotionStore: s.store}
		svc, err := New(txStore, s.catalog)
		s.Require().NoError(err)

		s.store.EXPECT().FindByID(gomock.Any(), "p1").Return(storedPromotion("p1", threeForTwo, ""), nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrNotFound)

		_, err = svc.PatchPromotion(s.ctx, "p1", []byte(`{"priority": 3}`))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(1, txStore.calls)
	})
}

func (s *ServiceSuite) TestHandlePromotionEvent() {
	s.store.EXPECT().ListActive(gomock.Any()).Return([]*models.Promotion{storedPromotion("p1", threeForTwo, "")}, nil)

	err := s.service.HandlePromotionEvent(s.ctx, models.PromotionEvent{Type: models.EventCreated})
	s.Require().NoError(err)

	active, err := s.service.activePromotions(s.ctx)
	s.Require().NoError(err)
	s.Len(active, 1)
}
