package github

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorKind classifies a failed GraphQL request into one stable category.
type ErrorKind string

const (
	// KindUnauthorized means the token was rejected by the upstream API.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNotFound means the requested resource does not exist or is not visible.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited means the upstream refused the request due to quota or access rules.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimeout means the request exceeded the configured deadline.
	KindTimeout ErrorKind = "timeout"
	// KindUpstream means the upstream returned an error payload or unexpected status.
	KindUpstream ErrorKind = "upstream_error"
	// KindTransport means the request never produced an upstream response.
	KindTransport ErrorKind = "transport_error"
)

// APIError is the single typed error returned by the client for upstream failures.
type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api %s: %s", e.Kind, e.Message)
}

func newAPIError(kind ErrorKind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from an error chain, defaulting to KindUpstream.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUpstream
}
