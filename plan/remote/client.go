package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrConnectionFailed is returned when the service cannot be reached.
var ErrConnectionFailed = errors.New("connection to generation service failed")

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient posts requests as JSON to a single endpoint. Connection errors,
// 429, and 5xx responses are retried with exponential backoff.
type HTTPClient struct {
	endpoint   string
	token      string
	client     *http.Client
	maxRetries uint64
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithToken sends token as a bearer credential.
func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// WithMaxRetries sets how many times a failed request is retried. Default: 2.
func WithMaxRetries(n uint64) HTTPOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// NewHTTPClient returns a client for endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 90 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint implements EndpointProvider.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (Response, error) {
	if c.endpoint == "" {
		return Response{}, ErrClientNotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode generation request: %w", err)
	}

	var out Response
	operation := func() error {
		resp, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return Response{}, err
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, backoff.Permanent(ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrConnectionFailed, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Response{}, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("%w: decode response (status %d): %v",
			ErrGenerationFailed, resp.StatusCode, err))
	}
	if resp.StatusCode >= 400 && out.Error == nil {
		out.Error = &RemoteError{Code: http.StatusText(resp.StatusCode), Message: string(raw)}
	}
	return out, nil
}
