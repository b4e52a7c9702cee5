// Package ocr implements the remote OCR client (C3) and the normalizer that
// turns its structured response into TextBlocks (C4).
//
// Grounded on the teacher's internal/clients/mageagent_client.go (HTTP
// client shape, JSON request/response, base64 image encoding) and the
// exponential-backoff loop in internal/processor/processor.go's
// downloadFileFromURL, generalized into internal/retry.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/retry"
)

const (
	MaxImageBytes = 5 * 1024 * 1024 // 5 MiB
	MaxImages     = 32
)

// Client submits page images to the remote OCR service.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	maxRetries int
	logger     *logging.Logger

	mu      sync.Mutex
	metrics Metrics
}

// Metrics tracks cumulative OCR call outcomes.
type Metrics struct {
	TotalRequests int
	Successes     int
	Failures      int
	TotalRetries  int
	TotalLatency  time.Duration
}

func NewClient(endpoint, token string, timeout time.Duration, maxRetries int, logger *logging.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Metrics returns a snapshot of the client's cumulative metrics.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Client) recordResult(success bool, retries int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalRequests++
	if success {
		c.metrics.Successes++
	} else {
		c.metrics.Failures++
	}
	c.metrics.TotalRetries += retries
	c.metrics.TotalLatency += latency
}

// Process submits all page images as one multipart request and returns the
// parsed OcrLayout. Client-side constraints (image size, count, auth) are
// enforced before any network call.
func (c *Client) Process(ctx context.Context, jobID string, images [][]byte) (*OcrLayout, error) {
	if len(images) > MaxImages {
		return nil, apperr.NewInvalidInput(jobID, fmt.Sprintf("too many images: %d > %d", len(images), MaxImages))
	}
	for i, img := range images {
		if len(img) > MaxImageBytes {
			return nil, apperr.NewInvalidInput(jobID, fmt.Sprintf("image %d exceeds %d bytes", i, MaxImageBytes))
		}
	}
	if c.token == "" {
		return nil, apperr.NewAuthenticationRequired(jobID)
	}

	policy := retry.Policy{MaxAttempts: c.maxRetries, Base: retry.BaseDelay, Cap: retry.CapDelay}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	retries := 0
	start := time.Now()

	var layout *OcrLayout
	err := retry.Do(ctx, policy, func(err error) bool {
		if pe, ok := err.(*apperr.PipelineError); ok {
			return pe.Retryable()
		}
		return false
	}, func(attempt int) error {
		if attempt > 1 {
			retries++
		}
		l, retryAfter, err := c.doRequest(ctx, jobID, images)
		if err != nil {
			if retryAfter > 0 {
				time.Sleep(retryAfter)
			}
			return err
		}
		layout = l
		return nil
	})

	c.recordResult(err == nil, retries, time.Since(start))
	if err != nil {
		return nil, err
	}
	return layout, nil
}

func (c *Client) doRequest(ctx context.Context, jobID string, images [][]byte) (*OcrLayout, time.Duration, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i, img := range images {
		part, err := writer.CreateFormFile("images", fmt.Sprintf("page-%d.png", i))
		if err != nil {
			return nil, 0, apperr.NewInternal(jobID, err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, 0, apperr.NewInternal(jobID, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, apperr.NewInternal(jobID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, 0, apperr.NewInternal(jobID, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, apperr.NewCancelled(jobID)
		}
		return nil, 0, apperr.NewProcessingTimeout(jobID, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, apperr.NewAuthenticationFailed(jobID)
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, apperr.NewRateLimited(jobID, retryAfter)
	case resp.StatusCode >= 500:
		return nil, 0, apperr.NewServiceUnavailable(jobID, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, 0, apperr.NewServiceUnavailable(jobID, resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperr.NewProtocolError(jobID, err)
	}

	var layout OcrLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return nil, 0, apperr.NewProtocolError(jobID, err)
	}
	return &layout, 0, nil
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
