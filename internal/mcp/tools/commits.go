package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultCommitLimit = 10
	maxCommitLimit     = 50
)

// CommitsTool implements the get_commits MCP tool.
type CommitsTool struct {
	client Querier
	logger logSDK.Logger
}

// NewCommitsTool constructs a CommitsTool with the provided dependencies.
func NewCommitsTool(client Querier, logger logSDK.Logger) (*CommitsTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &CommitsTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *CommitsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_commits",
		mcp.WithDescription("Get recent commits on a branch."),
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
		mcp.WithNumber(
			"limit",
			mcp.Description("Number of commits to return (default 10, max 50)."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

const commitsQuery = `
query GetCommits($owner: String!, $name: String!, $branch: String!, $limit: Int!) {
  repository(owner: $owner, name: $name) {
    ref(qualifiedName: $branch) {
      target {
        ... on Commit {
          history(first: $limit) {
            nodes {
              oid
              messageHeadline
              message
              author {
                name
                email
                date
              }
            }
          }
        }
      }
    }
  }
}`

type commitsPayload struct {
	Repository *struct {
		Ref *struct {
			Target *struct {
				History struct {
					Nodes []struct {
						Oid             string `json:"oid"`
						MessageHeadline string `json:"messageHeadline"`
						Message         string `json:"message"`
						Author          *struct {
							Name  string    `json:"name"`
							Email string    `json:"email"`
							Date  time.Time `json:"date"`
						} `json:"author"`
					} `json:"nodes"`
				} `json:"history"`
			} `json:"target"`
		} `json:"ref"`
	} `json:"repository"`
}

// CommitAuthor identifies who authored a commit and when.
type CommitAuthor struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Date  *time.Time `json:"date"`
}

// Commit is one entry in the commit listing.
type Commit struct {
	SHA             string       `json:"sha"`
	MessageHeadline string       `json:"message_headline"`
	Message         string       `json:"message"`
	Author          CommitAuthor `json:"author"`
}

// CommitsResult is the normalized get_commits response.
type CommitsResult struct {
	Success bool     `json:"success"`
	Owner   string   `json:"owner"`
	Repo    string   `json:"repo"`
	Branch  string   `json:"branch"`
	Commits []Commit `json:"commits"`
	Count   int      `json:"count"`
}

// Handle executes the get_commits tool logic.
func (t *CommitsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	limit := limitParam(req, defaultCommitLimit, maxCommitLimit)
	identity := map[string]any{"owner": owner, "repo": repo, "branch": branch}

	data, err := t.client.Execute(ctx, commitsQuery, map[string]any{
		"owner":  owner,
		"name":   repo,
		"branch": branch,
		"limit":  limit,
	})
	if err != nil {
		t.logger.Warn("get_commits query failed",
			zap.Error(err), zap.String("owner", owner), zap.String("repo", repo),
			zap.String("branch", branch))
		return executorFailure(err, identity), nil
	}

	var payload commitsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Error("decode get_commits response", zap.Error(err))
		return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
	}

	if payload.Repository == nil {
		return FailureResult("not_found", fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
	}
	if payload.Repository.Ref == nil {
		return FailureResult("not_found",
			fmt.Sprintf("branch %q not found in %s/%s", branch, owner, repo), identity), nil
	}

	commits := make([]Commit, 0)
	if target := payload.Repository.Ref.Target; target != nil {
		for _, node := range target.History.Nodes {
			commit := Commit{
				SHA:             node.Oid,
				MessageHeadline: node.MessageHeadline,
				Message:         node.Message,
			}
			if node.Author != nil {
				date := node.Author.Date
				commit.Author = CommitAuthor{
					Name:  node.Author.Name,
					Email: node.Author.Email,
					Date:  &date,
				}
			}
			commits = append(commits, commit)
		}
	}

	result := CommitsResult{
		Success: true,
		Owner:   owner,
		Repo:    repo,
		Branch:  branch,
		Commits: commits,
		Count:   len(commits),
	}

	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_commits result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode commits"), nil
	}

	return toolResult, nil
}
