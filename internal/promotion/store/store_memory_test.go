package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promotions/internal/promotion/models"
	"promotions/pkg/platform/sentinel"
)

func promotion(id string, priority int, active bool, created time.Time) *models.Promotion {
	return &models.Promotion{
		ID:        id,
		Title:     "Promotion " + id,
		Class:     models.ClassDefault,
		Active:    active,
		Priority:  priority,
		If:        json.RawMessage(`{"product": {"id": "0001", "quantity": 3}}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.Create(ctx, promotion("p1", 1, true, base)))
		err := store.Create(ctx, promotion("p1", 1, true, base))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := NewInMemory()
		_, err := store.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.Update(ctx, promotion("missing", 1, true, base)), sentinel.ErrNotFound)
	})

	t.Run("returned promotions are copies", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.Create(ctx, promotion("p1", 1, true, base)))

		got, err := store.FindByID(ctx, "p1")
		require.NoError(t, err)
		got.Title = "changed"

		again, err := store.FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Promotion p1", again.Title)
	})

	t.Run("ListActive filters inactive and orders by priority", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.Create(ctx, promotion("late", 10, true, base)))
		require.NoError(t, store.Create(ctx, promotion("b", 1, true, base.Add(time.Minute))))
		require.NoError(t, store.Create(ctx, promotion("a", 1, true, base.Add(time.Minute))))
		require.NoError(t, store.Create(ctx, promotion("first", 1, true, base)))
		require.NoError(t, store.Create(ctx, promotion("off", 0, false, base)))

		active, err := store.ListActive(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(active))
		for _, p := range active {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"first", "a", "b", "late"}, ids)

		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_ = store.Create(ctx, promotion(fmt.Sprintf("p%d", i%10), i, true, time.Now()))
			_, _ = store.ListActive(ctx)
		}()
	}
	wg.Wait()

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}
