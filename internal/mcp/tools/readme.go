package tools

import (
	"context"
	"encoding/json"
	"fmt"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

// readmeCandidates are tried in order; the first blob with text wins.
var readmeCandidates = []string{
	"README.md", "README", "readme.md", "Readme.md", "README.rst", "README.txt",
}

// ReadmeTool implements the get_readme MCP tool.
type ReadmeTool struct {
	client Querier
	logger logSDK.Logger
}

// NewReadmeTool constructs a ReadmeTool with the provided dependencies.
func NewReadmeTool(client Querier, logger logSDK.Logger) (*ReadmeTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &ReadmeTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *ReadmeTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_readme",
		mcp.WithDescription("Get the repository README content as text."),
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
			"branch",
			mcp.Description("Branch name; defaults to the repository's default branch."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

const readmeQuery = `
query GetReadme($owner: String!, $name: String!, $expression: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $expression) {
      ... on Blob {
        text
      }
    }
  }
}`

type readmePayload struct {
	Repository *struct {
		Object *struct {
			Text *string `json:"text"`
		} `json:"object"`
	} `json:"repository"`
}

// ReadmeResult is the normalized get_readme response. A repository without
// any README is still a successful call with Found=false.
type ReadmeResult struct {
	Success  bool   `json:"success"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	Found    bool   `json:"found"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Handle executes the get_readme tool logic.
func (t *ReadmeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, failure := requireParam(req, "owner")
	if failure != nil {
		return failure, nil
	}
	repo, failure := requireParam(req, "repo")
	if failure != nil {
		return failure, nil
	}

	branch, failure := branchParam(ctx, t.client, req, owner, repo)
	if failure != nil {
		return failure, nil
	}

	identity := map[string]any{"owner": owner, "repo": repo, "branch": branch}

	for _, candidate := range readmeCandidates {
		data, err := t.client.Execute(ctx, readmeQuery, map[string]any{
			"owner":      owner,
			"name":       repo,
			"expression": branch + ":" + candidate,
		})
		if err != nil {
			t.logger.Warn("get_readme query failed",
				zap.Error(err), zap.String("owner", owner), zap.String("repo", repo),
				zap.String("candidate", candidate))
			return executorFailure(err, identity), nil
		}

		var payload readmePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.logger.Error("decode get_readme response", zap.Error(err))
			return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
		}

		if payload.Repository == nil {
			return FailureResult("not_found",
				fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
		}

		blob := payload.Repository.Object
		if blob == nil || blob.Text == nil || *blob.Text == "" {
			continue
		}

		return t.encode(ReadmeResult{
			Success:  true,
			Owner:    owner,
			Repo:     repo,
			Branch:   branch,
			Found:    true,
			Filename: candidate,
			Content:  *blob.Text,
		})
	}

	return t.encode(ReadmeResult{
		Success: true,
		Owner:   owner,
		Repo:    repo,
		Branch:  branch,
		Found:   false,
		Message: fmt.Sprintf("no README file found in %s/%s on branch %s", owner, repo, branch),
	})
}

func (t *ReadmeTool) encode(result ReadmeResult) (*mcp.CallToolResult, error) {
	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_readme result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode readme"), nil
	}
	return toolResult, nil
}
