// Package catalog resolves cart product ids to catalog products.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"promotions/internal/promotion/metrics"
	"promotions/internal/promotion/models"
	"promotions/pkg/platform/circuit"
	"promotions/pkg/platform/sentinel"
	pstrings "promotions/pkg/platform/strings"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultBatchSize   = 50
	defaultParallelism = 4
	maxResponseBytes   = 4 << 20

	productFields = "title,categories,categoryPaths"
)

// HTTPClient fetches products from the catalog service:
//
//	GET {baseURL}/products?id=0001,0002&fields=title,categories,categoryPaths
//	-> {"data": [{"id": "0001", "categories": [...], "categoryPaths": {...}}]}
//
// Large id lists are split in batches fetched in parallel.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	batchSize   int
	parallelism int
	breaker     *circuit.Breaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.httpClient.Timeout = d
		}
	}
}

// WithBatchSize sets how many ids are sent per request.
func WithBatchSize(n int) Option {
	return func(h *HTTPClient) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

// WithParallelism bounds concurrent batch requests.
func WithParallelism(n int) Option {
	return func(h *HTTPClient) {
		if n > 0 {
			h.parallelism = n
		}
	}
}

// WithBreaker sets the circuit breaker guarding the catalog service.
func WithBreaker(b *circuit.Breaker) Option {
	return func(h *HTTPClient) {
		h.breaker = b
	}
}

// WithMetrics enables lookup latency metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *HTTPClient) {
		h.metrics = m
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTPClient) {
		h.logger = logger
	}
}

// NewHTTPClient creates a catalog client for baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse catalog base URL: %w", err)
	}

	h := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		batchSize:   defaultBatchSize,
		parallelism: defaultParallelism,
		breaker:     circuit.New("catalog", circuit.WithFailureThreshold(5), circuit.WithCooldown(10*time.Second)),
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("promotions/catalog"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Products fetches the given products. Ids unknown to the catalog are absent
// from the result.
func (h *HTTPClient) Products(ctx context.Context, productIDs []string) (models.Catalog, error) {
	ids := pstrings.DedupeAndTrim(productIDs)
	catalog := make(models.Catalog, len(ids))
	if len(ids) == 0 {
		return catalog, nil
	}

	ctx, span := h.tracer.Start(ctx, "catalog.Products",
		trace.WithAttributes(attribute.Int("catalog.ids", len(ids))),
	)
	defer span.End()

	if !h.breaker.Allow() {
		span.SetStatus(codes.Error, "circuit open")
		return nil, fmt.Errorf("catalog circuit %s is open: %w", h.breaker.Name(), sentinel.ErrUnavailable)
	}

	start := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for _, batch := range pstrings.Chunk(ids, h.batchSize) {
		g.Go(func() error {
			products, err := h.fetch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range products {
				catalog[p.ID] = p
			}
			return nil
		})
	}
	err := g.Wait()
	h.metrics.ObserveCatalogLatency("http", time.Since(start))

	if err != nil {
		if _, change := h.breaker.RecordFailure(); change.Opened {
			h.logger.WarnContext(ctx, "catalog circuit opened", "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if _, change := h.breaker.RecordSuccess(); change.Closed {
		h.logger.InfoContext(ctx, "catalog circuit closed")
	}
	span.SetAttributes(attribute.Int("catalog.found", len(catalog)))
	return catalog, nil
}

type productListResponse struct {
	Data []models.Product `json:"data"`
}

func (h *HTTPClient) fetch(ctx context.Context, ids []string) ([]models.Product, error) {
	query := url.Values{}
	query.Set("id", strings.Join(ids, ","))
	query.Set("fields", productFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/products?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("catalog returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload productListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return payload.Data, nil
}
