package cmd

import (
	"context"

	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/github-reader-mcp/library/config"
	"github.com/Laisky/github-reader-mcp/library/log"
)

var stdioCMD = &cobra.Command{
	Use:   "stdio",
	Short: "stdio",
	Long:  `serve the GitHub reader MCP server over stdin/stdout`,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		settings := config.LoadSettings()

		server, _, err := buildServer(ctx, settings)
		if err != nil {
			log.Logger.Panic("build mcp server", zap.Error(err))
		}

		log.Logger.Info("serving mcp over stdio",
			zap.Strings("tools", server.AvailableToolNames()))
		if err := server.ServeStdio(); err != nil {
			log.Logger.Panic("stdio server exit", zap.Error(err))
		}
	},
}

func init() {
	rootCMD.AddCommand(stdioCMD)
}
