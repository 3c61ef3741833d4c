package mcp

import (
	"context"
	"time"

	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/github-reader-mcp/internal/mcp/tools"
	"github.com/Laisky/github-reader-mcp/internal/mcp/usagelog"
)

const tokenMissingMessage = "GitHub token is not configured; set settings.github.token or the GITHUB_TOKEN environment variable"

// wrapTool composes the auth gate and usage recording around a tool handler.
// The usage wrapper sits outside the gate so rejected calls still produce a
// usage record. The duration timer only covers the handler itself; gate
// rejections are recorded with a zero duration.
func (s *Server) wrapTool(name string, next srv.ToolHandlerFunc) srv.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		occurredAt := time.Now().UTC()

		var result *mcp.CallToolResult
		var err error
		var duration time.Duration
		if !s.settings.TokenConfigured() {
			s.logger.Warn("tool call rejected, token not configured", zap.String("tool", name))
			result = tools.FailureResult(tools.KindConfiguration, tokenMissingMessage, nil)
		} else {
			start := time.Now()
			result, err = next(ctx, req)
			duration = time.Since(start)
		}

		s.recordToolInvocation(ctx, name, argumentsMap(req.Params.Arguments), occurredAt, duration, result, err)

		return result, err
	}
}

func (s *Server) recordToolInvocation(ctx context.Context, toolName string, args map[string]any, startedAt time.Time, duration time.Duration, result *mcp.CallToolResult, invokeErr error) {
	if s.recorder == nil {
		s.logger.Debug("recorder is nil, skipping usage record", zap.String("tool", toolName))
		return
	}

	status := usagelog.StatusSuccess
	errorKind := ""
	errorMessage := ""

	if invokeErr != nil {
		status = usagelog.StatusError
		errorMessage = invokeErr.Error()
	}
	if result != nil && result.IsError {
		status = usagelog.StatusError
		if msg, kind := tools.ErrorInfo(result); msg != "" {
			errorMessage = msg
			errorKind = kind
		}
	}

	if duration < 0 {
		duration = 0
	}
	occurredAt := startedAt.UTC()
	if startedAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	input := usagelog.RecordInput{
		ToolName:     toolName,
		Status:       status,
		ErrorKind:    errorKind,
		Duration:     duration,
		Parameters:   cloneArguments(args),
		ErrorMessage: errorMessage,
		OccurredAt:   occurredAt,
	}

	// Recording must survive the caller hanging up mid-call.
	if err := s.recorder.Record(context.WithoutCancel(ctx), input); err != nil {
		s.logger.Warn("record tool usage", zap.Error(err), zap.String("tool", toolName))
	}
}

func cloneArguments(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(args))
	for key, value := range args {
		cloned[key] = value
	}
	return cloned
}

func argumentsMap(raw any) map[string]any {
	switch value := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return value
	case map[string]string:
		result := make(map[string]any, len(value))
		for key, item := range value {
			result[key] = item
		}
		return result
	default:
		return nil
	}
}
