// Package catalog resolves order line product references against the book
// and stationery catalogs of the upstream API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/discovery"
	"github.com/example/bookadmin/pkg/metrics"
	"github.com/example/bookadmin/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8
	maxBodyBytes       = 1 << 20
)

var errMissingProductID = errors.New("line item has no product id")

// EnrichmentError records why one line could not be enriched. It is logged,
// never returned to callers.
type EnrichmentError struct {
	Ref        models.ProductRef
	StatusCode int
	Err        error
}

func (e *EnrichmentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("enrich %s/%s: catalog returned status %d", e.Ref.Category, e.Ref.ID, e.StatusCode)
	}
	return fmt.Sprintf("enrich %s/%s: %v", e.Ref.Category, e.Ref.ID, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

type Options struct {
	Timeout        time.Duration
	MaxConcurrency int
	HTTPClient     *http.Client
	Metrics        *metrics.Registry
}

// Client fetches catalog entries and merges them into order lines.
type Client struct {
	endpoint    discovery.EndpointResolver
	credentials auth.CredentialProvider
	httpClient  *http.Client
	timeout     time.Duration
	concurrency int
	metrics     *metrics.Registry
	logger      *zap.Logger
}

func NewClient(endpoint discovery.EndpointResolver, credentials auth.CredentialProvider, logger *zap.Logger, opts Options) *Client {
	c := &Client{
		endpoint:    endpoint,
		credentials: credentials,
		httpClient:  opts.HTTPClient,
		timeout:     opts.Timeout,
		concurrency: opts.MaxConcurrency,
		metrics:     opts.Metrics,
		logger:      logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Enrich looks up every line concurrently. A missing credential fails the
// whole call before any request; any per-line failure keeps that line as it
// was. The returned slice is a new slice of the same length and order.
func (c *Client) Enrich(ctx context.Context, lines []models.OrderLineView) ([]models.OrderLineView, error) {
	token, err := auth.Require(ctx, c.credentials)
	if err != nil {
		return nil, err
	}

	out := make([]models.OrderLineView, len(lines))
	copy(out, lines)
	if len(out) == 0 {
		return out, nil
	}

	base := c.endpoint.Resolve(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range out {
		i := i
		g.Go(func() error {
			product, err := c.fetch(ctx, base, token, out[i].ProductRef)
			if err != nil {
				c.observe(out[i].ProductRef.Category, metrics.OutcomeFailed)
				c.logger.Warn("Catalog enrichment failed, keeping placeholder",
					zap.String("category", out[i].ProductRef.Category),
					zap.String("product_id", out[i].ProductRef.ID),
					zap.Error(err))
				return nil
			}
			c.observe(out[i].ProductRef.Category, metrics.OutcomeOK)
			out[i] = Merge(out[i], product)
			return nil
		})
	}
	// workers never return errors; Wait is only the join barrier
	_ = g.Wait()

	return out, nil
}

// Lookup fetches a single catalog entry.
func (c *Client) Lookup(ctx context.Context, ref models.ProductRef) (*models.Product, error) {
	token, err := auth.Require(ctx, c.credentials)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, c.endpoint.Resolve(ctx), token, ref)
}

func (c *Client) fetch(ctx context.Context, base, token string, ref models.ProductRef) (*models.Product, error) {
	if ref.ID == "" {
		return nil, &EnrichmentError{Ref: ref, Err: errMissingProductID}
	}

	path, err := catalogPath(ref.Category)
	if err != nil {
		return nil, &EnrichmentError{Ref: ref, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+url.PathEscape(ref.ID), nil)
	if err != nil {
		return nil, &EnrichmentError{Ref: ref, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.EnrichLatency.WithLabelValues(ref.Category).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, &EnrichmentError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &EnrichmentError{Ref: ref, StatusCode: resp.StatusCode}
	}

	product, err := decodeProduct(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &EnrichmentError{Ref: ref, Err: err}
	}
	return product, nil
}

func catalogPath(category string) (string, error) {
	switch category {
	case models.CategoryBook:
		return "/books/", nil
	case models.CategoryStationery:
		return "/stationery/", nil
	default:
		return "", fmt.Errorf("no catalog for category %q", category)
	}
}

// decodeProduct accepts the entry itself or one wrapped under "data",
// "book" or "stationery".
func decodeProduct(r io.Reader) (*models.Product, error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	body := envelope
	for _, key := range []string{"data", "book", "stationery"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil {
			body = inner
			break
		}
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var product models.Product
	if err := json.Unmarshal(buf, &product); err != nil {
		return nil, fmt.Errorf("failed to decode catalog entry: %w", err)
	}
	return &product, nil
}

func (c *Client) observe(category, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.EnrichRequests.WithLabelValues(category, outcome).Inc()
}
