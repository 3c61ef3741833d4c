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
	defaultBranchLimit = 20
	maxBranchLimit     = 100
)

// BranchesTool implements the get_branches MCP tool.
type BranchesTool struct {
	client Querier
	logger logSDK.Logger
}

// NewBranchesTool constructs a BranchesTool with the provided dependencies.
func NewBranchesTool(client Querier, logger logSDK.Logger) (*BranchesTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &BranchesTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *BranchesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_branches",
		mcp.WithDescription("List repository branches with their latest commit."),
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
		mcp.WithNumber(
			"limit",
			mcp.Description("Number of branches to return (default 20, max 100)."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

const branchesQuery = `
query GetBranches($owner: String!, $name: String!, $limit: Int!) {
  repository(owner: $owner, name: $name) {
    refs(refPrefix: "refs/heads/", first: $limit) {
      nodes {
        name
        target {
          ... on Commit {
            oid
            committedDate
            messageHeadline
          }
        }
      }
    }
  }
}`

type branchesPayload struct {
	Repository *struct {
		Refs struct {
			Nodes []struct {
				Name   string `json:"name"`
				Target *struct {
					Oid             string    `json:"oid"`
					CommittedDate   time.Time `json:"committedDate"`
					MessageHeadline string    `json:"messageHeadline"`
				} `json:"target"`
			} `json:"nodes"`
		} `json:"refs"`
	} `json:"repository"`
}

// BranchCommit summarizes the latest commit of a branch.
type BranchCommit struct {
	SHA     string     `json:"sha"`
	Date    *time.Time `json:"date"`
	Message string     `json:"message"`
}

// Branch is one entry in the branch listing.
type Branch struct {
	Name       string       `json:"name"`
	LastCommit BranchCommit `json:"last_commit"`
}

// BranchesResult is the normalized get_branches response.
type BranchesResult struct {
	Success  bool     `json:"success"`
	Owner    string   `json:"owner"`
	Repo     string   `json:"repo"`
	Branches []Branch `json:"branches"`
	Count    int      `json:"count"`
}

// Handle executes the get_branches tool logic.
func (t *BranchesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, failure := requireParam(req, "owner")
	if failure != nil {
		return failure, nil
	}
	repo, failure := requireParam(req, "repo")
	if failure != nil {
		return failure, nil
	}

	limit := limitParam(req, defaultBranchLimit, maxBranchLimit)
	identity := map[string]any{"owner": owner, "repo": repo}

	data, err := t.client.Execute(ctx, branchesQuery, map[string]any{
		"owner": owner,
		"name":  repo,
		"limit": limit,
	})
	if err != nil {
		t.logger.Warn("get_branches query failed",
			zap.Error(err), zap.String("owner", owner), zap.String("repo", repo))
		return executorFailure(err, identity), nil
	}

	var payload branchesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Error("decode get_branches response", zap.Error(err))
		return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
	}

	if payload.Repository == nil {
		return FailureResult("not_found", fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
	}

	branches := make([]Branch, 0, len(payload.Repository.Refs.Nodes))
	for _, ref := range payload.Repository.Refs.Nodes {
		branch := Branch{Name: ref.Name}
		if ref.Target != nil {
			date := ref.Target.CommittedDate
			branch.LastCommit = BranchCommit{
				SHA:     ref.Target.Oid,
				Date:    &date,
				Message: ref.Target.MessageHeadline,
			}
		}
		branches = append(branches, branch)
	}

	result := BranchesResult{
		Success:  true,
		Owner:    owner,
		Repo:     repo,
		Branches: branches,
		Count:    len(branches),
	}

	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_branches result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode branches"), nil
	}

	return toolResult, nil
}
