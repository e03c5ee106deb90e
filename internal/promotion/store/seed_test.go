package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promotions/internal/promotion/models"
)

const seedYAML = `
promotions:
  - id: three-for-two
    title: 3x2 shirts
    priority: 10
    if:
      product: {id: "0001", quantity: 3}
    then:
      product: {id: "0001", quantity: 1, discount: {rate: 100, isPercentage: true}}
  - id: vip
    title: VIP week
    active: false
    if:
      and:
        - userType: VIP
        - category: {id: shirts, quantity: 2}
      threshold: 0.5
`

func TestLoadSeed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("converts trees to JSON", func(t *testing.T) {
		promos, err := LoadSeed(strings.NewReader(seedYAML), now)
		require.NoError(t, err)
		require.Len(t, promos, 2)

		first := promos[0]
		assert.Equal(t, "three-for-two", first.ID)
		assert.Equal(t, models.ClassDefault, first.Class)
		assert.True(t, first.Active)
		assert.Equal(t, now, first.CreatedAt)
		assert.JSONEq(t, `{"product": {"id": "0001", "quantity": 3}}`, string(first.If))
		assert.JSONEq(t, `{"product": {"id": "0001", "quantity": 1, "discount": {"rate": 100, "isPercentage": true}}}`, string(first.Then))

		second := promos[1]
		assert.False(t, second.Active)
		assert.Nil(t, second.Then)
		assert.JSONEq(t, `{"and": [{"userType": "VIP"}, {"category": {"id": "shirts", "quantity": 2}}], "threshold": 0.5}`, string(second.If))
	})

	t.Run("empty document", func(t *testing.T) {
		promos, err := LoadSeed(strings.NewReader(""), now)
		require.NoError(t, err)
		assert.Empty(t, promos)
	})

	t.Run("condition is required", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader("promotions:\n  - id: broken\n"), now)
		assert.ErrorContains(t, err, "if is required")
	})
}

func TestSeedSkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	promos, err := LoadSeed(strings.NewReader(seedYAML), time.Now())
	require.NoError(t, err)

	created, err := Seed(ctx, store, promos)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = Seed(ctx, store, promos)
	require.NoError(t, err)
	assert.Zero(t, created)
}
