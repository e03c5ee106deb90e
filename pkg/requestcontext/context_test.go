package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, UserType(ctx))
	assert.Empty(t, Subject(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestRoundTrip(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithUserType(ctx, "VIP")
	ctx = WithSubject(ctx, "customer-42")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Equal(t, "VIP", UserType(ctx))
	assert.Equal(t, "customer-42", Subject(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
