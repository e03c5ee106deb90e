package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PROMOTIONS_ADDR", "KAFKA_BROKERS", "ENGINE_MAX_ITERATIONS", "ENFORCE_SUBTOTAL", "CATALOG_BATCH_SIZE", "KAFKA_GROUP"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Kafka.Group)
	assert.Equal(t, "promotions", cfg.Kafka.Topic)
	assert.Equal(t, 100, cfg.Engine.MaxIterations)
	assert.False(t, cfg.Engine.EnforceSubtotal)
	assert.Equal(t, 50, cfg.Catalog.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ProductTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PROMOTIONS_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ENGINE_MAX_ITERATIONS", "7")
	t.Setenv("ENFORCE_SUBTOTAL", "true")
	t.Setenv("CATALOG_TIMEOUT", "750ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 7, cfg.Engine.MaxIterations)
	assert.True(t, cfg.Engine.EnforceSubtotal)
	assert.Equal(t, 750*time.Millisecond, cfg.Catalog.Timeout)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("ENGINE_MAX_ITERATIONS", "many")
	t.Setenv("PRODUCT_CACHE_TTL", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_MAX_ITERATIONS")
	assert.Contains(t, err.Error(), "PRODUCT_CACHE_TTL")
}

func TestFromEnvRejectsNonPositiveIterationCap(t *testing.T) {
	t.Setenv("ENGINE_MAX_ITERATIONS", "0")

	_, err := FromEnv()
	require.ErrorContains(t, err, "ENGINE_MAX_ITERATIONS must be positive")
}
