// Package config reads process configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	AdminToken    string
	LogLevel      string

	DatabaseURL       string
	PromotionSeedFile string

	Redis   RedisConfig
	Kafka   KafkaConfig
	Catalog CatalogConfig
	Engine  EngineConfig
}

// RedisConfig configures the product cache connection. An empty URL disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ProductTTL   time.Duration
}

// KafkaConfig configures promotion change events. No brokers disables events.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Group    string
	ClientID string
}

// CatalogConfig configures product lookups. An empty URL serves products from
// the static catalog only.
type CatalogConfig struct {
	URL         string
	Timeout     time.Duration
	BatchSize   int
	Parallelism int
}

// EngineConfig tunes promotion evaluation.
type EngineConfig struct {
	MaxIterations   int
	EnforceSubtotal bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var errs []string
	cfg := Server{
		Addr:              getString("PROMOTIONS_ADDR", ":8080"),
		JWTSigningKey:     os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:         os.Getenv("JWT_ISSUER"),
		JWTAudience:       os.Getenv("JWT_AUDIENCE"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		LogLevel:          getString("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		PromotionSeedFile: os.Getenv("PROMOTION_SEED_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
			ProductTTL:   getDuration("PRODUCT_CACHE_TTL", 5*time.Minute, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getString("PROMOTIONS_TOPIC", "promotions"),
			Group:    os.Getenv("KAFKA_GROUP"),
			ClientID: getString("KAFKA_CLIENT_ID", "promotions-engine"),
		},
		Catalog: CatalogConfig{
			URL:         os.Getenv("CATALOG_URL"),
			Timeout:     getDuration("CATALOG_TIMEOUT", 2*time.Second, &errs),
			BatchSize:   getInt("CATALOG_BATCH_SIZE", 50, &errs),
			Parallelism: getInt("CATALOG_PARALLELISM", 4, &errs),
		},
		Engine: EngineConfig{
			MaxIterations:   getInt("ENGINE_MAX_ITERATIONS", 100, &errs),
			EnforceSubtotal: getBool("ENFORCE_SUBTOTAL", false, &errs),
		},
	}
	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if cfg.Engine.MaxIterations <= 0 {
		return Server{}, fmt.Errorf("invalid configuration: ENGINE_MAX_ITERATIONS must be positive")
	}
	if cfg.Catalog.BatchSize <= 0 {
		return Server{}, fmt.Errorf("invalid configuration: CATALOG_BATCH_SIZE must be positive")
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getBool(key string, def bool, errs *[]string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
