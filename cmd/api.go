package cmd

import (
	"context"
	"net/http"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	mcpServer "github.com/Laisky/github-reader-mcp/internal/mcp"
	"github.com/Laisky/github-reader-mcp/internal/mcp/usagelog"
	"github.com/Laisky/github-reader-mcp/internal/web"
	"github.com/Laisky/github-reader-mcp/library/config"
	"github.com/Laisky/github-reader-mcp/library/github"
	"github.com/Laisky/github-reader-mcp/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `serve the GitHub reader MCP server over HTTP`,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		settings := config.LoadSettings()

		server, usageHandler, err := buildServer(ctx, settings)
		if err != nil {
			log.Logger.Panic("build mcp server", zap.Error(err))
		}

		listen := settings.Listen
		if flagListen := gconfig.Shared.GetString("listen"); flagListen != "" {
			listen = flagListen
		}

		web.RunServer(listen, server.Handler(), usageHandler)
	},
}

func buildServer(ctx context.Context, settings config.Settings) (*mcpServer.Server, http.Handler, error) {
	client := github.NewClient(settings.Token,
		github.WithEndpoint(settings.Endpoint),
		github.WithTimeout(settings.Timeout),
		github.WithLogger(log.Logger.Named("github")),
	)

	recorder, usageHandler, err := buildRecorder(ctx, settings)
	if err != nil {
		return nil, nil, err
	}

	server, err := mcpServer.NewServer(settings, client, recorder, log.Logger)
	if err != nil {
		return nil, nil, err
	}

	return server, usageHandler, nil
}

// buildRecorder picks the usage sink: postgres when a DSN is configured,
// otherwise per-tool JSON files on disk. The returned handler serves the
// read side of whichever sink was built.
func buildRecorder(ctx context.Context, settings config.Settings) (mcpServer.Recorder, http.Handler, error) {
	usageLogger := log.Logger.Named("usagelog")

	if settings.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, settings.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		service, err := usagelog.NewService(pool, usageLogger, nil)
		if err != nil {
			return nil, nil, err
		}
		return service, usagelog.NewHTTPHandler(service, nil, usageLogger), nil
	}

	store, err := usagelog.NewFileStore(settings.UsageDir, usageLogger, nil)
	if err != nil {
		return nil, nil, err
	}
	return store, usagelog.NewHTTPHandler(nil, store, usageLogger), nil
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
