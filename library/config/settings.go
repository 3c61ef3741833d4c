package config

import (
	"os"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

const (
	// PlaceholderToken is the sample value shipped in documentation; a token
	// equal to it is treated as unconfigured.
	PlaceholderToken = "your_github_token_here"

	defaultTimeout  = 60 * time.Second
	defaultListen   = "0.0.0.0:8000"
	defaultUsageDir = "data/usage"
)

// Settings captures the runtime configuration for the GitHub reader service.
// It is constructed once at process start and passed explicitly to every
// component that needs it; nothing mutates it afterwards.
type Settings struct {
	// Token is the GitHub personal access token used for GraphQL requests.
	Token string
	// Endpoint overrides the GitHub GraphQL endpoint, primarily for testing.
	Endpoint string
	// Timeout bounds each upstream GraphQL request.
	Timeout time.Duration
	// Listen is the HTTP listen address for the streamable MCP transport.
	Listen string
	// UsageDir is the directory for per-tool JSON usage statistics.
	UsageDir string
	// PostgresDSN, when set, enables the PostgreSQL usage sink.
	PostgresDSN string
}

// LoadSettings reads the process settings from the shared configuration,
// falling back to environment variables the same way the deployment
// documentation describes (GITHUB_TOKEN).
func LoadSettings() Settings {
	token := strings.TrimSpace(gconfig.Shared.GetString("settings.github.token"))
	if token == "" {
		token = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	timeout := defaultTimeout
	if secs := gconfig.Shared.GetInt("settings.github.timeout_secs"); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	listen := strings.TrimSpace(gconfig.Shared.GetString("settings.listen"))
	if listen == "" {
		listen = defaultListen
	}

	usageDir := strings.TrimSpace(gconfig.Shared.GetString("settings.usage.dir"))
	if usageDir == "" {
		usageDir = defaultUsageDir
	}

	return Settings{
		Token:       token,
		Endpoint:    strings.TrimSpace(gconfig.Shared.GetString("settings.github.endpoint")),
		Timeout:     timeout,
		Listen:      listen,
		UsageDir:    usageDir,
		PostgresDSN: strings.TrimSpace(gconfig.Shared.GetString("settings.usage.postgres_dsn")),
	}
}

// TokenConfigured reports whether a usable GitHub token is present.
func (s Settings) TokenConfigured() bool {
	token := strings.TrimSpace(s.Token)
	return token != "" && token != PlaceholderToken
}
