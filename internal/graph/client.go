package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Microsoft Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const userAgent = "onedrive-console/0.1"

// Outbound request rate limits. Graph throttles aggressive clients; staying
// under 10 req/s keeps a single console instance well inside its budget.
const (
	requestsPerSecond = 10
	requestBurst      = 20
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer
// (graph package) per Go convention "accept interfaces, return structs".
// The auth package provides the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the Microsoft Graph API. It handles request
// construction, authentication, rate limiting, and error classification.
// Failed requests are not retried — callers see the first failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// NewClient creates a Graph API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// Do executes an HTTP request against the Graph API.
// The path is appended to the client's base URL.
// For non-nil bodies, Content-Type is set to application/json.
// The caller is responsible for closing the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}

	return c.do(ctx, method, path, contentType, body)
}

// DoRaw executes an HTTP request with an explicit content type.
// Used for content uploads where application/octet-stream is needed
// instead of application/json.
func (c *Client) DoRaw(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, method, path, contentType, body)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("graph: rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("graph: creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("graph: obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("graph: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("graph: %s %s: %w", method, path, err)
	}

	// 2xx — success.
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	// Read and close body for error responses.
	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &RemoteError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}
