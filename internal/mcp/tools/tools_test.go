package tools

import (
	"context"
	"encoding/json"
	"testing"

	logSDK "github.com/Laisky/go-utils/v6/log"
	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/github-reader-mcp/library/github"
)

type queryCall struct {
	query     string
	variables map[string]any
}

// fakeQuerier answers queries from a caller-supplied handler and records
// every call for assertions.
type fakeQuerier struct {
	calls   []queryCall
	handler func(query string, variables map[string]any) (json.RawMessage, error)
}

func (f *fakeQuerier) Execute(_ context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, queryCall{query: query, variables: variables})
	if f.handler == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.handler(query, variables)
}

func newRequest(tool string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	return req
}

func testLogger(t *testing.T) logSDK.Logger {
	t.Helper()
	logger, err := logSDK.NewConsoleWithName("test", logSDK.LevelError)
	require.NoError(t, err)
	return logger
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), out))
}

func TestRepositoryInfoHandle(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, "octocat", variables["owner"])
		require.Equal(t, "Hello-World", variables["name"])
		return json.RawMessage(`{
			"repository": {
				"name": "Hello-World",
				"description": "My first repository",
				"stargazerCount": 1234,
				"forkCount": 567,
				"primaryLanguage": {"name": "Go"},
				"licenseInfo": {"name": "MIT License", "spdxId": "MIT"},
				"createdAt": "2011-01-26T19:01:12Z",
				"updatedAt": "2024-01-01T00:00:00Z",
				"isPrivate": false,
				"defaultBranchRef": {"name": "master"},
				"repositoryTopics": {"nodes": [{"topic": {"name": "demo"}}, {"topic": {"name": "example"}}]}
			}
		}`), nil
	}}

	tool, err := NewRepositoryInfoTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_repository_info",
		map[string]any{"owner": "octocat", "repo": "Hello-World"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded RepositoryInfoResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.Equal(t, "Hello-World", decoded.Name)
	require.Equal(t, 1234, decoded.Stars)
	require.Equal(t, 567, decoded.Forks)
	require.NotNil(t, decoded.Language)
	require.Equal(t, "Go", *decoded.Language)
	require.NotNil(t, decoded.License)
	require.Equal(t, "MIT", *decoded.License)
	require.NotNil(t, decoded.DefaultBranch)
	require.Equal(t, "master", *decoded.DefaultBranch)
	require.Equal(t, []string{"demo", "example"}, decoded.Topics)
	require.Len(t, client.calls, 1)
}

func TestRepositoryInfoValidationSkipsExecutor(t *testing.T) {
	client := &fakeQuerier{}
	tool, err := NewRepositoryInfoTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_repository_info",
		map[string]any{"owner": "octocat"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	message, kind := ErrorInfo(result)
	require.Equal(t, "repo is required", message)
	require.Equal(t, KindValidation, kind)
	require.Empty(t, client.calls)
}

func TestRepositoryInfoNotFound(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"repository": null}`), nil
	}}
	tool, err := NewRepositoryInfoTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_repository_info",
		map[string]any{"owner": "octocat", "repo": "missing"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	_, kind := ErrorInfo(result)
	require.Equal(t, "not_found", kind)
}

func TestRepositoryInfoExecutorErrorMapped(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return nil, &github.APIError{Kind: github.KindUnauthorized, Message: "bad credentials"}
	}}
	tool, err := NewRepositoryInfoTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_repository_info",
		map[string]any{"owner": "octocat", "repo": "Hello-World"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	message, kind := ErrorInfo(result)
	require.Equal(t, "unauthorized", kind)
	require.Equal(t, "invalid or expired GitHub token", message)
}

func TestDirectoryContentsResolvesDefaultBranch(t *testing.T) {
	client := &fakeQuerier{handler: func(query string, variables map[string]any) (json.RawMessage, error) {
		if _, ok := variables["expression"]; !ok {
			return json.RawMessage(`{"repository": {"defaultBranchRef": {"name": "develop"}}}`), nil
		}
		require.Equal(t, "develop:", variables["expression"])
		return json.RawMessage(`{
			"repository": {
				"object": {
					"entries": [
						{"name": "src", "type": "tree", "path": "src"},
						{"name": "go.mod", "type": "blob", "path": "go.mod"}
					]
				}
			}
		}`), nil
	}}

	tool, err := NewDirectoryContentsTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_directory_contents",
		map[string]any{"owner": "octocat", "repo": "Hello-World"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded DirectoryContentsResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.Equal(t, "/", decoded.Path)
	require.Equal(t, "develop", decoded.Branch)
	require.Equal(t, 2, decoded.Count)
	require.Equal(t, DirectoryEntry{Name: "src", Type: "directory", Path: "src"}, decoded.Entries[0])
	require.Equal(t, DirectoryEntry{Name: "go.mod", Type: "file", Path: "go.mod"}, decoded.Entries[1])

	// One default-branch resolution plus one listing query.
	require.Len(t, client.calls, 2)
}

func TestDirectoryContentsExplicitBranchSkipsResolution(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, "main:docs", variables["expression"])
		return json.RawMessage(`{"repository": {"object": {"entries": []}}}`), nil
	}}

	tool, err := NewDirectoryContentsTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_directory_contents",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "docs", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, client.calls, 1)
}

func TestDirectoryContentsPathNotFound(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"repository": {"object": null}}`), nil
	}}

	tool, err := NewDirectoryContentsTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_directory_contents",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "nope", "branch": "main"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	_, kind := ErrorInfo(result)
	require.Equal(t, "not_found", kind)
}

func TestFileContentText(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, "main:README.md", variables["expression"])
		return json.RawMessage(`{
			"repository": {
				"object": {"text": "# Hello\n", "byteSize": 8, "isBinary": false}
			}
		}`), nil
	}}

	tool, err := NewFileContentTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_file_content",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "README.md", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded FileContentResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.False(t, decoded.IsBinary)
	require.NotNil(t, decoded.Content)
	require.Equal(t, "# Hello\n", *decoded.Content)
	require.Equal(t, int64(8), decoded.Size)
	require.Empty(t, decoded.Message)
}

func TestFileContentBinaryFlag(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{
			"repository": {
				"object": {"text": null, "byteSize": 2048, "isBinary": true}
			}
		}`), nil
	}}

	tool, err := NewFileContentTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_file_content",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "logo.png", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded FileContentResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.True(t, decoded.IsBinary)
	require.Nil(t, decoded.Content)
	require.Equal(t, binaryFileMessage, decoded.Message)
}

func TestFileContentInvalidUTF8TreatedAsBinary(t *testing.T) {
	// Raw wire bytes: the text field carries invalid UTF-8, which JSON
	// decoding turns into U+FFFD replacement runes.
	raw := json.RawMessage("{\"repository\": {\"object\": {\"text\": \"\xff\xfeplain\", \"byteSize\": 7, \"isBinary\": false}}}")

	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return raw, nil
	}}

	tool, err := NewFileContentTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_file_content",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "data.bin", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded FileContentResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.IsBinary)
	require.Nil(t, decoded.Content)
	require.Equal(t, binaryFileMessage, decoded.Message)
}

func TestFileContentNulBytesTreatedAsBinary(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{
			"repository": {
				"object": {"text": "PK\u0003\u0004\u0000payload", "byteSize": 12, "isBinary": false}
			}
		}`), nil
	}}

	tool, err := NewFileContentTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_file_content",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "archive.zip", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded FileContentResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.IsBinary)
	require.Nil(t, decoded.Content)
	require.Equal(t, binaryFileMessage, decoded.Message)
}

func TestFileContentMissingFile(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"repository": {"object": null}}`), nil
	}}

	tool, err := NewFileContentTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_file_content",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "missing.txt", "branch": "main"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	_, kind := ErrorInfo(result)
	require.Equal(t, "not_found", kind)
}

func TestBranchesListing(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, 20, variables["limit"])
		return json.RawMessage(`{
			"repository": {
				"refs": {
					"nodes": [
						{"name": "main", "target": {"oid": "abc123", "committedDate": "2024-04-01T10:00:00Z", "messageHeadline": "Initial commit"}},
						{"name": "feature", "target": {"oid": "def456", "committedDate": "2024-04-02T10:00:00Z", "messageHeadline": "Add feature"}}
					]
				}
			}
		}`), nil
	}}

	tool, err := NewBranchesTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_branches",
		map[string]any{"owner": "octocat", "repo": "Hello-World"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded BranchesResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.Equal(t, 2, decoded.Count)
	require.Equal(t, "main", decoded.Branches[0].Name)
	require.Equal(t, "abc123", decoded.Branches[0].LastCommit.SHA)
	require.Equal(t, "Initial commit", decoded.Branches[0].LastCommit.Message)
}

func TestBranchesLimitClamped(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, maxBranchLimit, variables["limit"])
		return json.RawMessage(`{"repository": {"refs": {"nodes": []}}}`), nil
	}}

	tool, err := NewBranchesTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_branches",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "limit": 500}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestReadmeTriesCandidatesInOrder(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		if variables["expression"] == "main:readme.md" {
			return json.RawMessage(`{"repository": {"object": {"text": "hello readme"}}}`), nil
		}
		return json.RawMessage(`{"repository": {"object": null}}`), nil
	}}

	tool, err := NewReadmeTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_readme",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded ReadmeResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.True(t, decoded.Found)
	require.Equal(t, "readme.md", decoded.Filename)
	require.Equal(t, "hello readme", decoded.Content)

	// Stopped at the third candidate.
	require.Len(t, client.calls, 3)
}

func TestReadmeMissingIsSuccess(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"repository": {"object": null}}`), nil
	}}

	tool, err := NewReadmeTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_readme",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded ReadmeResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.False(t, decoded.Found)
	require.Empty(t, decoded.Content)
	require.NotEmpty(t, decoded.Message)
	require.Len(t, client.calls, len(readmeCandidates))
}

func TestCommitsListing(t *testing.T) {
	client := &fakeQuerier{handler: func(_ string, variables map[string]any) (json.RawMessage, error) {
		require.Equal(t, "main", variables["branch"])
		require.Equal(t, 10, variables["limit"])
		return json.RawMessage(`{
			"repository": {
				"ref": {
					"target": {
						"history": {
							"nodes": [
								{
									"oid": "abc123",
									"messageHeadline": "Fix bug",
									"message": "Fix bug\n\nDetails here.",
									"author": {"name": "Octo Cat", "email": "octo@example.com", "date": "2024-04-01T10:00:00Z"}
								}
							]
						}
					}
				}
			}
		}`), nil
	}}

	tool, err := NewCommitsTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_commits",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "branch": "main"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded CommitsResult
	decodeResult(t, result, &decoded)
	require.True(t, decoded.Success)
	require.Equal(t, 1, decoded.Count)
	require.Equal(t, "abc123", decoded.Commits[0].SHA)
	require.Equal(t, "Fix bug", decoded.Commits[0].MessageHeadline)
	require.Equal(t, "Octo Cat", decoded.Commits[0].Author.Name)
}

func TestCommitsBranchNotFound(t *testing.T) {
	client := &fakeQuerier{handler: func(string, map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"repository": {"ref": null}}`), nil
	}}

	tool, err := NewCommitsTool(client, testLogger(t))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), newRequest("get_commits",
		map[string]any{"owner": "octocat", "repo": "Hello-World", "branch": "ghost"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	_, kind := ErrorInfo(result)
	require.Equal(t, "not_found", kind)
}

func TestLimitParamDefaults(t *testing.T) {
	require.Equal(t, 10, limitParam(newRequest("t", map[string]any{}), 10, 50))
	require.Equal(t, 10, limitParam(newRequest("t", map[string]any{"limit": -3}), 10, 50))
	require.Equal(t, 25, limitParam(newRequest("t", map[string]any{"limit": 25}), 10, 50))
	require.Equal(t, 50, limitParam(newRequest("t", map[string]any{"limit": 500}), 10, 50))
}
