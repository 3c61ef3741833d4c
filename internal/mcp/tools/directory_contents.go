package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

// DirectoryContentsTool implements the get_directory_contents MCP tool.
type DirectoryContentsTool struct {
	client Querier
	logger logSDK.Logger
}

// NewDirectoryContentsTool constructs a DirectoryContentsTool with the provided dependencies.
func NewDirectoryContentsTool(client Querier, logger logSDK.Logger) (*DirectoryContentsTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &DirectoryContentsTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *DirectoryContentsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_directory_contents",
		mcp.WithDescription("List files and directories at a given path in a repository."),
		mcp.WithString(
			"owner",
			mcp.Required(),
			mcp.Description("Repository owner (user or organization)."),
		),
		mcp.WithString(
			"repo",
			mcp.Required(),
			mcp.Description("Repository name."),
		),
		mcp.WithString(
			"path",
			mcp.Description("Directory path; empty for the repository root."),
		),
		mcp.WithString(
			"branch",
			mcp.Description("Branch name; defaults to the repository's default branch."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

const directoryContentsQuery = `
query GetDirectoryContents($owner: String!, $name: String!, $expression: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $expression) {
      ... on Tree {
        entries {
          name
          type
          path
        }
      }
    }
  }
}`

type directoryContentsPayload struct {
	Repository *struct {
		Object *struct {
			Entries []struct {
				Name string `json:"name"`
				Type string `json:"type"`
				Path string `json:"path"`
			} `json:"entries"`
		} `json:"object"`
	} `json:"repository"`
}

// DirectoryEntry is one normalized entry in a directory listing.
type DirectoryEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// DirectoryContentsResult is the normalized get_directory_contents response.
type DirectoryContentsResult struct {
	Success bool             `json:"success"`
	Owner   string           `json:"owner"`
	Repo    string           `json:"repo"`
	Path    string           `json:"path"`
	Branch  string           `json:"branch"`
	Entries []DirectoryEntry `json:"entries"`
	Count   int              `json:"count"`
}

// Handle executes the get_directory_contents tool logic.
func (t *DirectoryContentsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, failure := requireParam(req, "owner")
	if failure != nil {
		return failure, nil
	}
	repo, failure := requireParam(req, "repo")
	if failure != nil {
		return failure, nil
	}

	path := strings.TrimSpace(readStringArg(req, "path"))
	path = strings.TrimPrefix(path, "/")

	branch, failure := branchParam(ctx, t.client, req, owner, repo)
	if failure != nil {
		return failure, nil
	}

	identity := map[string]any{"owner": owner, "repo": repo, "path": path, "branch": branch}

	expression := branch + ":" + path
	data, err := t.client.Execute(ctx, directoryContentsQuery, map[string]any{
		"owner":      owner,
		"name":       repo,
		"expression": expression,
	})
	if err != nil {
		t.logger.Warn("get_directory_contents query failed",
			zap.Error(err), zap.String("owner", owner), zap.String("repo", repo), zap.String("path", path))
		return executorFailure(err, identity), nil
	}

	var payload directoryContentsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Error("decode get_directory_contents response", zap.Error(err))
		return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
	}

	if payload.Repository == nil {
		return FailureResult("not_found", fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
	}
	if payload.Repository.Object == nil {
		return FailureResult("not_found",
			fmt.Sprintf("path %q not found in %s/%s on branch %s", path, owner, repo, branch), identity), nil
	}

	entries := make([]DirectoryEntry, 0, len(payload.Repository.Object.Entries))
	for _, entry := range payload.Repository.Object.Entries {
		entryType := "file"
		if entry.Type == "tree" {
			entryType = "directory"
		}
		entries = append(entries, DirectoryEntry{
			Name: entry.Name,
			Type: entryType,
			Path: entry.Path,
		})
	}

	displayPath := path
	if displayPath == "" {
		displayPath = "/"
	}

	result := DirectoryContentsResult{
		Success: true,
		Owner:   owner,
		Repo:    repo,
		Path:    displayPath,
		Branch:  branch,
		Entries: entries,
		Count:   len(entries),
	}

	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_directory_contents result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode directory contents"), nil
	}

	return toolResult, nil
}
