// Package web runs the gin HTTP server that fronts the MCP transport.
package web

import (
	"net/http"

	ginMw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/github-reader-mcp/library/log"
)

var (
	server = gin.New()
)

// RunServer mounts the MCP and usage log handlers and blocks serving HTTP
// on addr. usageHandler may be nil when no usage sink is configured.
func RunServer(addr string, mcpHandler http.Handler, usageHandler http.Handler) {
	server.Use(
		gin.Recovery(),
		ginMw.NewLoggerMiddleware(
			ginMw.WithLoggerMwColored(),
			ginMw.WithLevel(log.Logger.Level().String()),
			ginMw.WithLogger(log.Logger.Named("gin")),
		),
		allowCORS,
	)
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := ginMw.EnableMetric(server); err != nil {
		log.Logger.Panic("enable metric server", zap.Error(err))
	}

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	server.Any("/mcp", ginMw.FromStd(mcpHandler.ServeHTTP))
	server.Any("/mcp/*path", ginMw.FromStd(mcpHandler.ServeHTTP))

	if usageHandler != nil {
		server.GET("/usage/*path", ginMw.FromStd(usageHandler.ServeHTTP))
	}

	log.Logger.Info("listening on http", zap.String("addr", addr))
	log.Logger.Panic("httpServer exit", zap.Error(server.Run(addr)))
}

// allowCORS answers preflight requests so browser-based MCP clients can
// reach the server from any origin. The server is read-only and token auth
// happens upstream at GitHub.
func allowCORS(ctx *gin.Context) {
	origin := ctx.Request.Header.Get("Origin")
	if origin != "" {
		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Mcp-Session-Id")
		ctx.Header("Access-Control-Expose-Headers", "Mcp-Session-Id")
		ctx.Header("Access-Control-Max-Age", "86400")
		ctx.Header("Vary", "Origin")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
	}

	ctx.Next()
}
