package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"modscout/config"
	"modscout/internal/metrics"
	"modscout/logger"
)

// ErrProviderUnavailable wraps every transport, status or decoding failure of
// the catalog, item-directory and order-book providers.
var ErrProviderUnavailable = errors.New("provider unavailable")

// maxBodyBytes caps provider payloads; the full mod catalog is a few MB.
const maxBodyBytes = 64 << 20

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider   string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s for %s", e.Provider, e.Status, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrProviderUnavailable
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// newHTTPClient builds the pooled client shared by a reader. Per-request
// deadlines come from the caller's context; Timeout is the outer bound.
func newHTTPClient(cfg *config.Config) *http.Client {
	pool := cfg.Source.ConnectionPool
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
	}

	var rt http.RoundTripper = transport
	if cfg.Source.UserAgent != "" {
		rt = userAgentTransport{agent: cfg.Source.UserAgent, base: transport}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Reader.Timeout,
	}
}

// getJSON issues a GET to reqURL and decodes the body into out. Every failure is
// wrapped with ErrProviderUnavailable.
func getJSON(ctx context.Context, client *http.Client, log *logger.Log, provider, reqURL string, headers map[string]string, out interface{}) error {
	entry := log.WithComponent(provider).WithFields(logger.Fields{
		"operation": "fetch",
		"url":       reqURL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", ErrProviderUnavailable, provider, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		fail(provider, duration)
		return fmt.Errorf("%w: %s request failed: %v", ErrProviderUnavailable, provider, err)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(entry, provider, "api_request", duration, logger.Fields{
		"status": resp.StatusCode,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fail(provider, duration)
		if resp.StatusCode == http.StatusTooManyRequests {
			ReportRateLimitExceeded(log, provider, reqURL)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: provider, URL: reqURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		fail(provider, duration)
		return fmt.Errorf("%w: read %s body: %v", ErrProviderUnavailable, provider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		fail(provider, duration)
		return fmt.Errorf("%w: decode %s payload: %v", ErrProviderUnavailable, provider, err)
	}

	metrics.ObserveProviderRequest(provider, true, duration)
	logger.RecordProviderRead(provider, len(body))
	return nil
}

func fail(provider string, duration time.Duration) {
	metrics.ObserveProviderRequest(provider, false, duration)
	logger.RecordProviderFailure(provider)
}
