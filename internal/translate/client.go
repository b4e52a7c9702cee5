// Package translate implements the remote translation client (C6) and the
// layout-aware translator (C7) that drives it together with the layout
// engine.
//
// Grounded on the teacher's internal/clients/mageagent_client.go for the
// HTTP request/response shape and bearer-token header, and on
// internal/processor/processor.go's retry loop, generalized into
// internal/retry. Bounded concurrency and outbound rate limiting are new
// requirements this client adds that the teacher's single-call clients did
// not need, drawn from the golang.org/x/sync and golang.org/x/time modules
// already present in the pack's dependency graph.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/retry"
)

// DefaultConcurrency and DefaultRatePerSecond bound outbound traffic to the
// translation backend when the caller does not override them.
const (
	DefaultConcurrency  = 8
	DefaultRatePerSecond = 10
)

// Request is one unit of translatable text submitted to the backend.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Result is the backend's response for one Request, paired by index with
// the submitted batch.
type Result struct {
	TranslatedText string
	Err            error
}

type apiRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

type apiResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Client submits text to a remote translation service, bounding concurrent
// in-flight requests with a semaphore and outbound rate with a token
// bucket, independent of each other: the semaphore caps parallelism, the
// limiter caps throughput.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	maxRetries int
	logger     *logging.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu      sync.Mutex
	metrics Metrics
}

// Metrics tracks cumulative translation call outcomes.
type Metrics struct {
	TotalRequests int
	Successes     int
	Failures      int
	TotalRetries  int
}

// Option configures a Client at construction.
type Option func(*Client)

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int64) Option {
	return func(c *Client) { c.sem = semaphore.NewWeighted(n) }
}

// WithRateLimit overrides DefaultRatePerSecond.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func NewClient(endpoint, token string, timeout time.Duration, maxRetries int, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
		sem:        semaphore.NewWeighted(DefaultConcurrency),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Client) recordResult(success bool, retries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalRequests++
	if success {
		c.metrics.Successes++
	} else {
		c.metrics.Failures++
	}
	c.metrics.TotalRetries += retries
}

// TranslateBatch submits every request concurrently (bounded by the
// client's semaphore and limiter) and returns results in the same order as
// the input, one Result per Request. A failure on one item does not cancel
// the others.
func (c *Client) TranslateBatch(ctx context.Context, jobID string, reqs []Request) ([]Result, error) {
	if c.token == "" {
		return nil, apperr.NewAuthenticationRequired(jobID)
	}

	results := make([]Result, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		i, req := i, req
		if err := c.sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Err: apperr.NewCancelled(jobID)}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.sem.Release(1)

			if err := c.limiter.Wait(ctx); err != nil {
				results[i] = Result{Err: apperr.NewCancelled(jobID)}
				return
			}

			text, err := c.translateOne(ctx, jobID, req)
			results[i] = Result{TranslatedText: text, Err: err}
		}()
	}
	wg.Wait()

	return results, nil
}

func (c *Client) translateOne(ctx context.Context, jobID string, req Request) (string, error) {
	policy := retry.Policy{MaxAttempts: c.maxRetries, Base: retry.BaseDelay, Cap: retry.CapDelay}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	retries := 0
	var translated string

	err := retry.Do(ctx, policy, func(err error) bool {
		if pe, ok := err.(*apperr.PipelineError); ok {
			return pe.Retryable()
		}
		return false
	}, func(attempt int) error {
		if attempt > 1 {
			retries++
		}
		out, retryAfter, err := c.doRequest(ctx, jobID, req)
		if err != nil {
			if retryAfter > 0 {
				time.Sleep(retryAfter)
			}
			return err
		}
		translated = out
		return nil
	})

	c.recordResult(err == nil, retries)
	return translated, err
}

func (c *Client) doRequest(ctx context.Context, jobID string, req Request) (string, time.Duration, error) {
	payload, err := json.Marshal(apiRequest{
		Text:           req.Text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return "", 0, apperr.NewInternal(jobID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, apperr.NewInternal(jobID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, apperr.NewCancelled(jobID)
		}
		return "", 0, apperr.NewProcessingTimeout(jobID, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", 0, apperr.NewAuthenticationFailed(jobID)
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", retryAfter, apperr.NewRateLimited(jobID, retryAfter)
	case resp.StatusCode >= 500:
		return "", 0, apperr.NewServiceUnavailable(jobID, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", 0, apperr.NewServiceUnavailable(jobID, resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, apperr.NewProtocolError(jobID, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, apperr.NewProtocolError(jobID, err)
	}
	if out.TranslatedText == "" {
		return "", 0, apperr.NewProtocolError(jobID, fmt.Errorf("empty translatedText field"))
	}
	return out.TranslatedText, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
