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

// RepositoryInfoTool implements the get_repository_info MCP tool.
type RepositoryInfoTool struct {
	client Querier
	logger logSDK.Logger
}

// NewRepositoryInfoTool constructs a RepositoryInfoTool with the provided dependencies.
func NewRepositoryInfoTool(client Querier, logger logSDK.Logger) (*RepositoryInfoTool, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &RepositoryInfoTool{client: client, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *RepositoryInfoTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_repository_info",
		mcp.WithDescription("Get basic repository metadata: description, stars, forks, language, license, dates, and topics."),
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
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

const repositoryInfoQuery = `
query GetRepository($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    name
    description
    stargazerCount
    forkCount
    primaryLanguage { name }
    licenseInfo { name spdxId }
    createdAt
    updatedAt
    isPrivate
    defaultBranchRef { name }
    repositoryTopics(first: 10) {
      nodes { topic { name } }
    }
  }
}`

type repositoryInfoPayload struct {
	Repository *struct {
		Name            string  `json:"name"`
		Description     *string `json:"description"`
		StargazerCount  int     `json:"stargazerCount"`
		ForkCount       int     `json:"forkCount"`
		PrimaryLanguage *struct {
			Name string `json:"name"`
		} `json:"primaryLanguage"`
		LicenseInfo *struct {
			Name   string `json:"name"`
			SpdxID string `json:"spdxId"`
		} `json:"licenseInfo"`
		CreatedAt        time.Time `json:"createdAt"`
		UpdatedAt        time.Time `json:"updatedAt"`
		IsPrivate        bool      `json:"isPrivate"`
		DefaultBranchRef *struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
		RepositoryTopics struct {
			Nodes []struct {
				Topic struct {
					Name string `json:"name"`
				} `json:"topic"`
			} `json:"nodes"`
		} `json:"repositoryTopics"`
	} `json:"repository"`
}

// RepositoryInfoResult is the normalized get_repository_info response.
type RepositoryInfoResult struct {
	Success       bool      `json:"success"`
	Owner         string    `json:"owner"`
	Repo          string    `json:"repo"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Language      *string   `json:"language"`
	License       *string   `json:"license"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	IsPrivate     bool      `json:"is_private"`
	DefaultBranch *string   `json:"default_branch"`
	Topics        []string  `json:"topics"`
}

// Handle executes the get_repository_info tool logic.
func (t *RepositoryInfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, failure := requireParam(req, "owner")
	if failure != nil {
		return failure, nil
	}
	repo, failure := requireParam(req, "repo")
	if failure != nil {
		return failure, nil
	}

	identity := map[string]any{"owner": owner, "repo": repo}

	data, err := t.client.Execute(ctx, repositoryInfoQuery, map[string]any{"owner": owner, "name": repo})
	if err != nil {
		t.logger.Warn("get_repository_info query failed",
			zap.Error(err), zap.String("owner", owner), zap.String("repo", repo))
		return executorFailure(err, identity), nil
	}

	var payload repositoryInfoPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Error("decode get_repository_info response", zap.Error(err))
		return FailureResult(KindValidation, "unexpected response shape from GitHub", identity), nil
	}

	repository := payload.Repository
	if repository == nil {
		return FailureResult("not_found", fmt.Sprintf("repository %s/%s not found", owner, repo), identity), nil
	}

	result := RepositoryInfoResult{
		Success:     true,
		Owner:       owner,
		Repo:        repo,
		Name:        repository.Name,
		Description: repository.Description,
		Stars:       repository.StargazerCount,
		Forks:       repository.ForkCount,
		CreatedAt:   repository.CreatedAt,
		UpdatedAt:   repository.UpdatedAt,
		IsPrivate:   repository.IsPrivate,
		Topics:      make([]string, 0, len(repository.RepositoryTopics.Nodes)),
	}
	if repository.PrimaryLanguage != nil {
		result.Language = &repository.PrimaryLanguage.Name
	}
	if repository.LicenseInfo != nil {
		result.License = &repository.LicenseInfo.SpdxID
	}
	if repository.DefaultBranchRef != nil {
		result.DefaultBranch = &repository.DefaultBranchRef.Name
	}
	for _, node := range repository.RepositoryTopics.Nodes {
		result.Topics = append(result.Topics, node.Topic.Name)
	}

	toolResult, err := mcp.NewToolResultJSON(result)
	if err != nil {
		t.logger.Error("encode get_repository_info result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode repository info"), nil
	}

	return toolResult, nil
}
