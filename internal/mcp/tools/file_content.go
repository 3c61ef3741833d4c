package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

const binaryFileMessage = "File is binary and cannot be displayed as text"

// looksBinary reports whether decoded blob text carries the marks of a
// non-text file: U+FFFD left behind by JSON decoding of invalid UTF-8,
// or embedded NUL bytes.
func looksBinary(text string) bool {
	return strings.ContainsRune(text, utf8.RuneError) || strings.ContainsRune(text, '\x00')
}

// FileContentTool implements the get_file_content MCP tool.
type FileContentTool struct {
	client Querier
	logger logSDK.Logger
}

// NewFileContentTool constructs a FileContentTool with the provided dependencies.
func NewFileContentTool(client Querier, logger logSDK.Logger) (*FileContentTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &FileContentTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *FileContentTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_file_content",
		mcp.WithDescription("Read the content of a specific file in a repository."),
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
			mcp.Required(),
			mcp.Description("File path within the repository."),
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

const fileContentQuery = `
query GetFileContent($owner: String!, $name: String!, $expression: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $expression) {
      ... on Blob {
        text
        byteSize
        isBinary
      }
    }
  }
}`

type fileContentPayload struct {
	Repository *struct {
		Object *struct {
			Text     *string `json:"text"`
			ByteSize int64   `json:"byteSize"`
			IsBinary bool    `json:"isBinary"`
		} `json:"object"`
	} `json:"repository"`
}

// FileContentResult is the normalized get_file_content response.
type FileContentResult struct {
	Success  bool    `json:"success"`
	Owner    string  `json:"owner"`
	Repo     string  `json:"repo"`
	Path     string  `json:"path"`
	Branch   string  `json:"branch"`
	Content  *string `json:"content"`
	Size     int64   `json:"size"`
	IsBinary bool    `json:"is_binary"`
	Message  string  `json:"message,omitempty"`
}

// Handle executes the get_file_content tool logic.
func (t *FileContentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, failure := requireParam(req, "owner")
	if failure != nil {
		return failure, nil
	}
	repo, failure := requireParam(req, "repo")
	if failure != nil {
		return failure, nil
	}
	path, failure := requireParam(req, "path")
	if failure != nil {
		return failure, nil
	}
	path = strings.TrimPrefix(path, "/")

	branch, failure := branchParam(ctx, t.client, req, owner, repo)
	if failure != nil {
		return failure, nil
	}

	identity := map[string]any{"owner": owner, "repo": repo, "path": path, "branch": branch}

	data, err := t.client.Execute(ctx, fileContentQuery, map[string]any{
		"owner":      owner,
		"name":       repo,
		"expression": branch + ":" + path,
	})
	if err != nil {
		t.logger.Warn("get_file_content query failed",
			zap.Error(err), zap.String("owner", owner), zap.String("repo", repo), zap.String("path", path))
		return executorFailure(err, identity), nil
	}

	var payload fileContentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Error("decode get_file_content response", zap.Error(err))
		return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
	}

	if payload.Repository == nil {
		return FailureResult("not_found", fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
	}
	blob := payload.Repository.Object
	if blob == nil {
		return FailureResult("not_found",
			fmt.Sprintf("file %q not found in %s/%s on branch %s", path, owner, repo, branch), identity), nil
	}

	// GitHub occasionally reports isBinary=false while returning content
	// that is not really text. JSON decoding has already replaced any
	// invalid UTF-8 in the payload with U+FFFD, so sniff the decoded text
	// for replacement runes and NUL bytes.
	isBinary := blob.IsBinary
	if !isBinary && blob.Text != nil && looksBinary(*blob.Text) {
		isBinary = true
	}

	result := FileContentResult{
		Success:  true,
		Owner:    owner,
		Repo:     repo,
		Path:     path,
		Branch:   branch,
		Size:     blob.ByteSize,
		IsBinary: isBinary,
	}
	if isBinary {
		result.Message = binaryFileMessage
	} else {
		result.Content = blob.Text
	}

	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_file_content result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode file content"), nil
	}

	return toolResult, nil
}
