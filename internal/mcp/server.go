// Package mcp assembles the GitHub reader MCP server: tool registration,
// the auth gate, and usage recording around every tool call.
package mcp

import (
	"context"
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/github-reader-mcp/internal/mcp/tools"
	"github.com/Laisky/github-reader-mcp/internal/mcp/usagelog"
	"github.com/Laisky/github-reader-mcp/library/config"
	"github.com/Laisky/github-reader-mcp/library/log"
)

// Recorder persists one usage record per tool invocation.
type Recorder interface {
	Record(ctx context.Context, input usagelog.RecordInput) error
}

// Server wraps the MCP server state for both the HTTP and stdio transports.
type Server struct {
	handler   http.Handler
	mcpServer *srv.MCPServer
	settings  config.Settings
	recorder  Recorder
	logger    logSDK.Logger
	toolNames []string
}

// tool is the common shape of the read-only GitHub tools.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// NewServer constructs the MCP server and registers every enabled tool.
// The recorder may be nil, in which case usage recording is skipped.
func NewServer(settings config.Settings, client tools.Querier, recorder Recorder, logger logSDK.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if logger == nil {
		logger = log.Logger
	}

	hooks := newMCPHooks(logger.Named("mcp_hooks"))

	mcpServer := srv.NewMCPServer(
		"github-reader-mcp",
		"1.0.0",
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Read-only GitHub repository tools: metadata, directory listings, file contents, branches, README, and commit history."),
		srv.WithRecovery(),
		srv.WithHooks(hooks),
	)

	streamable := srv.NewStreamableHTTPServer(mcpServer)

	s := &Server{
		handler:   withHTTPLogging(streamable, logger.Named("mcp_http")),
		mcpServer: mcpServer,
		settings:  settings,
		recorder:  recorder,
		logger:    logger.Named("mcp"),
	}

	toolLogger := logger.Named("tools")
	repositoryInfo, err := tools.NewRepositoryInfoTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new repository info tool")
	}
	directoryContents, err := tools.NewDirectoryContentsTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new directory contents tool")
	}
	fileContent, err := tools.NewFileContentTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new file content tool")
	}
	branches, err := tools.NewBranchesTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new branches tool")
	}
	readme, err := tools.NewReadmeTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new readme tool")
	}
	commits, err := tools.NewCommitsTool(client, toolLogger)
	if err != nil {
		return nil, errors.Wrap(err, "new commits tool")
	}

	toolsSettings := LoadToolsSettingsFromConfig()
	registrations := []struct {
		enabled bool
		tool    tool
	}{
		{toolsSettings.RepositoryInfoEnabled, repositoryInfo},
		{toolsSettings.DirectoryContentsEnabled, directoryContents},
		{toolsSettings.FileContentEnabled, fileContent},
		{toolsSettings.BranchesEnabled, branches},
		{toolsSettings.ReadmeEnabled, readme},
		{toolsSettings.CommitsEnabled, commits},
	}

	for _, registration := range registrations {
		if !registration.enabled {
			continue
		}
		definition := registration.tool.Definition()
		mcpServer.AddTool(definition, s.wrapTool(definition.Name, registration.tool.Handle))
		s.toolNames = append(s.toolNames, definition.Name)
	}

	return s, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return srv.ServeStdio(s.mcpServer)
}

// AvailableToolNames lists the tools registered on this server.
func (s *Server) AvailableToolNames() []string {
	names := make([]string, len(s.toolNames))
	copy(names, s.toolNames)
	return names
}
