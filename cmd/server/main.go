package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "promotions/internal/jwt_token"
	"promotions/internal/platform/config"
	"promotions/internal/platform/httpserver"
	"promotions/internal/platform/kafka"
	"promotions/internal/platform/kafka/consumer"
	"promotions/internal/platform/logger"
	httpmetrics "promotions/internal/platform/metrics"
	redisclient "promotions/internal/platform/redis"
	"promotions/internal/promotion/catalog"
	"promotions/internal/promotion/events"
	"promotions/internal/promotion/handler"
	"promotions/internal/promotion/metrics"
	"promotions/internal/promotion/service"
	"promotions/internal/promotion/store"
	"promotions/pkg/platform/httputil"
	"promotions/pkg/platform/middleware/admin"
	"promotions/pkg/platform/middleware/auth"
	"promotions/pkg/platform/middleware/request"
	"promotions/pkg/platform/middleware/requesttime"
	"promotions/pkg/requestcontext"
)

// main wires dependencies and runs the HTTP server next to the promotion
// event consumer until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("promotions engine stopped", "error", err)
		os.Exit(1)
	}
}

type promotionStore interface {
	service.PromotionStore
	store.Writer
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	promoMetrics := metrics.New()

	promos, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.PromotionSeedFile != "" {
		seed, err := store.LoadSeedFile(cfg.PromotionSeedFile, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		created, err := store.Seed(ctx, promos, seed)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "promotion seed applied", "file", cfg.PromotionSeedFile, "created", created)
	}

	products, closeCatalog, err := openCatalog(ctx, cfg, log, promoMetrics)
	if err != nil {
		return err
	}
	defer closeCatalog()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(promoMetrics),
		service.WithMaxIterations(cfg.Engine.MaxIterations),
		service.WithSubtotalEnforcement(cfg.Engine.EnforceSubtotal),
	}

	var producer, consumerClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		producer, consumerClient, err = openKafka(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher, err := events.NewPublisher(producer, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithPublisher(publisher))
	}

	svc, err := service.New(promos, products, opts...)
	if err != nil {
		return err
	}
	if err := svc.Reload(ctx, service.TriggerStartup); err != nil {
		return err
	}

	router := newRouter(cfg, log, svc)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting promotions engine", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv)
	})
	if consumerClient != nil {
		g.Go(func() error {
			defer consumerClient.Close()
			c := consumer.New(consumerClient, events.NewHandler(svc, log), log)
			if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("promotion event consumer: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (promotionStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.InfoContext(ctx, "DATABASE_URL not set, keeping promotions in memory")
		return store.NewInMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	pg := store.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pg, func() { _ = db.Close() }, nil
}

func openCatalog(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (service.Catalog, func(), error) {
	var source catalog.Source
	switch {
	case cfg.Catalog.URL != "":
		client, err := catalog.NewHTTPClient(cfg.Catalog.URL,
			catalog.WithTimeout(cfg.Catalog.Timeout),
			catalog.WithBatchSize(cfg.Catalog.BatchSize),
			catalog.WithParallelism(cfg.Catalog.Parallelism),
			catalog.WithMetrics(m),
			catalog.WithLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		source = client
	case cfg.PromotionSeedFile != "":
		static, err := catalog.LoadStaticFile(cfg.PromotionSeedFile)
		if err != nil {
			return nil, nil, err
		}
		log.InfoContext(ctx, "CATALOG_URL not set, serving products from seed file")
		source = static
	default:
		log.WarnContext(ctx, "no product catalog configured, every cart will fail lookup")
		source = catalog.NewStatic()
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		return source, func() {}, nil
	}
	cache, err := catalog.NewRedisCache(rdb, source,
		catalog.WithTTL(cfg.Redis.ProductTTL),
		catalog.WithCacheMetrics(m),
		catalog.WithCacheLogger(log),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return cache, func() { _ = rdb.Close() }, nil
}

// openKafka returns a producer and a consumer client. Without KAFKA_GROUP the
// consumer reads every partition so each instance sees every change.
func openKafka(ctx context.Context, cfg config.KafkaConfig) (*kgo.Client, *kgo.Client, error) {
	producer, err := kafka.NewClient(kafka.Config{Brokers: cfg.Brokers, ClientID: cfg.ClientID})
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, producer, cfg.Topic, 1, 1); err != nil {
		producer.Close()
		return nil, nil, err
	}

	consumerOpts := []kgo.Opt{
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	if cfg.Group != "" {
		consumerOpts = append(consumerOpts, kgo.ConsumerGroup(cfg.Group))
	}
	consumerClient, err := kafka.NewClient(kafka.Config{Brokers: cfg.Brokers, ClientID: cfg.ClientID}, consumerOpts...)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}
	return producer, consumerClient, nil
}

func newRouter(cfg config.Server, log *slog.Logger, svc *service.Service) http.Handler {
	var validator auth.JWTValidator
	if cfg.JWTSigningKey != "" {
		validator = jwttoken.NewMiddlewareValidator(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience))
	} else {
		log.Warn("JWT_SIGNING_KEY not set, bearer tokens are ignored")
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, promotion management is unauthenticated")
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recover(log))
	r.Use(request.AccessLog(log))
	r.Use(requesttime.Middleware)
	r.Use(httpmetrics.New().Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(validator, log))
		handler.New(svc, log, handler.WithAdminGuard(admin.RequireAdminToken(cfg.AdminToken, log))).Register(r)
	})
	return r
}
