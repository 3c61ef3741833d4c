// Package github implements a minimal client for the GitHub GraphQL API.
// It issues one authenticated request per call and maps transport failures
// and upstream error payloads into a single typed error.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/Laisky/github-reader-mcp/library/log"
)

const (
	defaultEndpoint = "https://api.github.com/graphql"
	defaultTimeout  = 60 * time.Second
	// logBodyLimit caps the number of response bytes logged for debugging.
	logBodyLimit = 4096
)

// Option configures the Client instance.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to communicate with GitHub.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithEndpoint overrides the GraphQL endpoint, primarily for testing.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(endpoint)
		if trimmed != "" {
			c.endpoint = trimmed
		}
	}
}

// WithLogger overrides the default logger used for requests.
func WithLogger(logger logSDK.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request deadline applied inside Execute.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Client executes GraphQL queries against the GitHub API with bearer-token
// authentication. A single attempt is made per call; retry policy, if any,
// belongs to the caller.
type Client struct {
	token    string
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   logSDK.Logger
}

// NewClient constructs a GitHub GraphQL client using the provided token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:    strings.TrimSpace(token),
		endpoint: defaultEndpoint,
		timeout:  defaultTimeout,
		client:   &http.Client{},
		logger:   log.Logger.Named("github_client"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Execute sends one GraphQL query and returns the raw data payload.
// Failures are reported as *APIError with a stable ErrorKind.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, errors.Wrap(err, "marshal graphql request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create github graphql request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestID := uuid.NewString()
	c.logger.Debug("outgoing github graphql request",
		zap.String("request_id", requestID),
		zap.String("url", c.endpoint),
		zap.Any("variables", variables),
	)

	startAt := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newAPIError(KindTimeout, "request timed out after %s", c.timeout)
		}
		return nil, newAPIError(KindTransport, "network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAPIError(KindTransport, "read response body: %v", err)
	}

	truncatedBody, truncated := truncateForLog(body, logBodyLimit)
	c.logger.Debug("incoming github graphql response",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncatedBody),
		zap.Bool("body_truncated", truncated),
		zap.Duration("cost", time.Since(startAt)),
	)

	if err := classifyStatus(resp.StatusCode, truncatedBody); err != nil {
		return nil, err
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newAPIError(KindUpstream, "decode response: %v", err)
	}

	if len(parsed.Errors) > 0 {
		return nil, classifyGraphQLErrors(parsed.Errors)
	}

	return parsed.Data, nil
}

// classifyStatus maps a non-2xx HTTP status to the matching error kind.
func classifyStatus(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return newAPIError(KindUnauthorized, "invalid or expired GitHub token")
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return newAPIError(KindRateLimited, "rate limit exceeded or forbidden resource")
	case status == http.StatusNotFound:
		return newAPIError(KindNotFound, "resource not found")
	default:
		return newAPIError(KindUpstream, "unexpected status %d: %s", status, body)
	}
}

// classifyGraphQLErrors folds the upstream error list into one typed error.
// GitHub tags errors with a type such as NOT_FOUND or RATE_LIMITED.
func classifyGraphQLErrors(errs []graphqlError) error {
	messages := make([]string, 0, len(errs))
	kind := KindUpstream
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			msg = "unknown error"
		}
		messages = append(messages, msg)

		switch strings.ToUpper(strings.TrimSpace(e.Type)) {
		case "NOT_FOUND":
			kind = KindNotFound
		case "RATE_LIMITED":
			kind = KindRateLimited
		}
	}

	return newAPIError(kind, "%s", strings.Join(messages, "; "))
}

// truncateForLog limits the payload logged for debugging and reports whether truncation occurred.
func truncateForLog(body []byte, limit int) (string, bool) {
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
