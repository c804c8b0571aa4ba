package reader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"modscout/config"
	"modscout/logger"
	"modscout/models"
)

const (
	itemsProvider  = "item_directory"
	ordersProvider = "orderbook"
)

// MarketReader talks to the marketplace: the item directory and per-item order
// books. All requests share one rate limiter because the marketplace throttles
// per client.
type MarketReader struct {
	itemsURL  string
	ordersURL string
	headers   map[string]string
	client    *http.Client
	limiter   *rate.Limiter
	log       *logger.Log
}

func NewMarketReader(cfg *config.Config) *MarketReader {
	log := logger.GetLogger()
	market := cfg.Source.Market

	r := &MarketReader{
		itemsURL:  market.ItemsURL,
		ordersURL: market.OrdersURL,
		headers: map[string]string{
			"Platform": market.Platform,
			"Language": market.Language,
		},
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg.Reader.RateLimit),
		log:     log,
	}

	log.WithComponent("market_reader").WithFields(logger.Fields{
		"items_url":           r.itemsURL,
		"orders_url":          r.ordersURL,
		"requests_per_second": cfg.Reader.RateLimit.RequestsPerSecond,
		"max_conns_per_host":  cfg.Source.ConnectionPool.MaxConnsPerHost,
	}).Debug("market reader initialized")

	return r
}

// FetchItems returns the marketplace item directory (payload.items).
func (r *MarketReader) FetchItems(ctx context.Context) ([]models.MarketItem, error) {
	if err := wait(ctx, r.limiter); err != nil {
		return nil, err
	}

	var resp models.ItemsResponse
	if err := getJSON(ctx, r.client, r.log, itemsProvider, r.itemsURL, r.headers, &resp); err != nil {
		return nil, err
	}

	r.log.WithComponent("market_reader").WithFields(logger.Fields{
		"items": len(resp.Payload.Items),
	}).Info("fetched market item directory")

	return resp.Payload.Items, nil
}

// FetchOrders returns the order book (payload.orders) of the item addressed by slug.
func (r *MarketReader) FetchOrders(ctx context.Context, slug string) ([]models.Order, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("%w: empty market slug", ErrProviderUnavailable)
	}
	if err := wait(ctx, r.limiter); err != nil {
		return nil, err
	}

	reqURL := r.OrdersURL(slug)
	var resp models.OrdersResponse
	if err := getJSON(ctx, r.client, r.log, ordersProvider, reqURL, r.headers, &resp); err != nil {
		return nil, err
	}

	logger.LogDataFlowEntry(r.log.WithComponent("market_reader").WithFields(logger.Fields{"slug": slug}),
		"orderbook_api", "aggregator", len(resp.Payload.Orders), "orders")

	return resp.Payload.Orders, nil
}

// OrdersURL expands the configured order-book template for slug.
func (r *MarketReader) OrdersURL(slug string) string {
	return strings.Replace(r.ordersURL, "%s", url.PathEscape(slug), 1)
}
