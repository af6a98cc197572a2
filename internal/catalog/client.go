// Package catalog reads product price and stock from the catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/circuitbreaker"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	productsPath       = "/catalog/api/products"
	maxResponseBytes   = 1 << 20
	msgUnreachable     = "Unable to reach Catalog service."
	msgProductNotFound = "Product not found in Catalog."
)

// Reader is the catalog read port shared by the cart store and the reconciler.
type Reader interface {
	Lookup(ctx context.Context, ref ProductRef) (*Product, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker[*Product]
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

type ClientParams struct {
	Config     config.CatalogConfig
	HTTPClient *http.Client
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

func NewClient(params ClientParams) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(params.Config.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Config.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	breaker := circuitbreaker.New[*Product](circuitbreaker.Settings{
		Name:         "catalog",
		MaxRequests:  params.Config.BreakerMaxRequests,
		Interval:     params.Config.BreakerInterval,
		OpenTimeout:  params.Config.BreakerOpenTimeout,
		FailureLimit: params.Config.BreakerFailureLimit,
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsCode(err, pkgerrors.CodeNotFound)
		},
	}, params.Logger)
	return &Client{
		baseURL: base,
		http:    httpClient,
		breaker: breaker,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Lookup fetches the product by SKU or id. Transport failures, non-2xx replies and
// malformed bodies map to CodeUpstreamUnavailable; an empty result maps to CodeNotFound.
func (c *Client) Lookup(ctx context.Context, ref ProductRef) (*Product, error) {
	if err := ref.Validate(); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	started := time.Now()
	product, err := c.breaker.Execute(func() (*Product, error) {
		return c.fetch(ctx, ref)
	})
	c.metrics.ObserveCatalogLookup(ref.Mode(), lookupOutcome(err), time.Since(started))
	if err == nil {
		return product, nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return nil, err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, msgUnreachable)
}

func (c *Client) fetch(ctx context.Context, ref ProductRef) (*Product, error) {
	q := url.Values{}
	if ref.Mode() == ModeSKU {
		q.Set("sku", strings.TrimSpace(ref.SKU))
	} else {
		q.Set("id", strconv.FormatInt(ref.ID, 10))
	}
	q.Set("per_page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+productsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, msgUnreachable)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, msgUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable,
			fmt.Errorf("catalog responded %d for %s", resp.StatusCode, ref), msgUnreachable)
	}

	var body productListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, fmt.Errorf("decode catalog response: %w", err), msgUnreachable)
	}
	if len(body.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	return body.Data[0].toProduct(), nil
}

func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeUpstream
	}
}
