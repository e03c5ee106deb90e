package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWithoutTransaction(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}

func TestWithTxIgnoresNil(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
}

func TestWithTxRoundTrip(t *testing.T) {
	sqlTx := &sql.Tx{}
	got, ok := From(WithTx(context.Background(), sqlTx))
	require.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestRunJoinsExistingTransaction(t *testing.T) {
	outer := WithTx(context.Background(), &sql.Tx{})
	called := false

	// A nil db proves no new transaction is started.
	err := Run(outer, nil, func(ctx context.Context) error {
		called = true
		_, ok := From(ctx)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
