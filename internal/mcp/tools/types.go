// Package tools implements the read-only GitHub MCP tools. Each tool
// validates its parameters, issues one GraphQL query through the shared
// client (plus an optional default-branch resolution sub-call), and
// normalizes the raw response into a stable result shape.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errors "github.com/Laisky/errors/v2"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/github-reader-mcp/library/github"
)

// Querier executes a single GraphQL query against the GitHub API.
type Querier interface {
	Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// Error kinds for failures raised before the query executor is reached.
const (
	KindValidation    = "validation_error"
	KindConfiguration = "configuration_error"
)

// FailureResult builds the normalized failure shape: success=false plus a
// human-readable message and the stable error kind, merged with any identity
// fields (owner/repo/path/branch) already known for the call.
func FailureResult(kind string, message string, identity map[string]any) *mcp.CallToolResult {
	payload := map[string]any{
		"success":    false,
		"error":      message,
		"error_kind": kind,
	}
	for key, value := range identity {
		payload[key] = value
	}

	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		result = mcp.NewToolResultError(message)
	}
	result.IsError = true
	return result
}

// ErrorInfo extracts the message and error kind from a failed tool result.
// Used by the server when building usage records.
func ErrorInfo(result *mcp.CallToolResult) (message string, kind string) {
	if result == nil || !result.IsError {
		return "", ""
	}

	for _, content := range result.Content {
		textContent, ok := mcp.AsTextContent(content)
		if !ok {
			continue
		}
		txt := strings.TrimSpace(textContent.Text)
		if txt == "" {
			continue
		}

		var payload struct {
			Error     string `json:"error"`
			ErrorKind string `json:"error_kind"`
		}
		if err := json.Unmarshal([]byte(txt), &payload); err == nil && payload.Error != "" {
			return payload.Error, payload.ErrorKind
		}
		return txt, ""
	}

	return "", ""
}

// executorFailure converts a query executor error into a normalized failure
// result, mapping the error kind to a caller-facing message that never leaks
// transport internals.
func executorFailure(err error, identity map[string]any) *mcp.CallToolResult {
	kind := github.KindOf(err)
	return FailureResult(string(kind), userMessage(kind), identity)
}

func userMessage(kind github.ErrorKind) string {
	switch kind {
	case github.KindUnauthorized:
		return "invalid or expired GitHub token"
	case github.KindNotFound:
		return "requested resource was not found on GitHub"
	case github.KindRateLimited:
		return "GitHub rate limit exceeded or resource forbidden"
	case github.KindTimeout:
		return "GitHub API request timed out"
	case github.KindTransport:
		return "could not reach the GitHub API"
	default:
		return "GitHub API request failed"
	}
}

// requireParam fetches a required string argument, returning a validation
// failure result when it is missing or blank.
func requireParam(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	value, err := req.RequireString(key)
	if err != nil {
		return "", FailureResult(KindValidation, fmt.Sprintf("%s is required", key), nil)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", FailureResult(KindValidation, fmt.Sprintf("%s cannot be empty", key), nil)
	}

	return value, nil
}

// readStringArg extracts an optional string argument from the request.
func readStringArg(req mcp.CallToolRequest, key string) string {
	if raw, ok := req.Params.Arguments.(map[string]any); ok {
		if value, ok := raw[key].(string); ok {
			return value
		}
	}
	return ""
}

// readIntArgWithDefault extracts an optional int argument with a default fallback.
func readIntArgWithDefault(req mcp.CallToolRequest, key string, def int) int {
	raw, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return def
	}
	if _, exists := raw[key]; !exists {
		return def
	}
	switch value := raw[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return def
	}
}

// limitParam reads an optional positive limit, clamping it to max and
// falling back to def for absent or non-positive values.
func limitParam(req mcp.CallToolRequest, def, max int) int {
	limit := readIntArgWithDefault(req, "limit", def)
	if limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

const defaultBranchQuery = `
query GetDefaultBranch($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef { name }
  }
}`

type defaultBranchPayload struct {
	Repository *struct {
		DefaultBranchRef *struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	} `json:"repository"`
}

// resolveBranch determines a repository's default branch with one
// lightweight query. Repositories without a default ref (empty repos)
// fall back to "main".
func resolveBranch(ctx context.Context, client Querier, owner, repo string) (string, error) {
	data, err := client.Execute(ctx, defaultBranchQuery, map[string]any{"owner": owner, "name": repo})
	if err != nil {
		return "", err
	}

	var payload defaultBranchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", errors.Wrap(err, "decode default branch response")
	}

	if payload.Repository == nil {
		return "", &github.APIError{
			Kind:    github.KindNotFound,
			Message: fmt.Sprintf("repository %s/%s not found", owner, repo),
		}
	}
	if payload.Repository.DefaultBranchRef == nil || payload.Repository.DefaultBranchRef.Name == "" {
		return "main", nil
	}

	return payload.Repository.DefaultBranchRef.Name, nil
}

// branchParam returns the caller-supplied branch or resolves the default
// branch when omitted. The second return value is non-nil when resolution
// failed and carries the normalized failure result.
func branchParam(ctx context.Context, client Querier, req mcp.CallToolRequest, owner, repo string) (string, *mcp.CallToolResult) {
	branch := strings.TrimSpace(readStringArg(req, "branch"))
	if branch != "" {
		return branch, nil
	}

	resolved, err := resolveBranch(ctx, client, owner, repo)
	if err != nil {
		return "", executorFailure(err, map[string]any{"owner": owner, "repo": repo})
	}

	return resolved, nil
}
