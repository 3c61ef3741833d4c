package mcp

import (
	gconfig "github.com/Laisky/go-config/v2"
)

// ToolsSettings captures runtime configuration for enabling or disabling
// individual MCP tools.
type ToolsSettings struct {
	RepositoryInfoEnabled    bool
	DirectoryContentsEnabled bool
	FileContentEnabled       bool
	BranchesEnabled          bool
	ReadmeEnabled            bool
	CommitsEnabled           bool
}

// LoadToolsSettingsFromConfig reads the MCP tools configuration. All tools
// are enabled unless explicitly disabled.
func LoadToolsSettingsFromConfig() ToolsSettings {
	return ToolsSettings{
		RepositoryInfoEnabled:    boolFromConfig("settings.mcp.tools.get_repository_info.enabled", true),
		DirectoryContentsEnabled: boolFromConfig("settings.mcp.tools.get_directory_contents.enabled", true),
		FileContentEnabled:       boolFromConfig("settings.mcp.tools.get_file_content.enabled", true),
		BranchesEnabled:          boolFromConfig("settings.mcp.tools.get_branches.enabled", true),
		ReadmeEnabled:            boolFromConfig("settings.mcp.tools.get_readme.enabled", true),
		CommitsEnabled:           boolFromConfig("settings.mcp.tools.get_commits.enabled", true),
	}
}

// boolFromConfig retrieves a boolean configuration value with a default fallback.
func boolFromConfig(key string, def bool) bool {
	value := gconfig.Shared.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes", "Yes", "YES":
			return true
		case "false", "False", "FALSE", "0", "no", "No", "NO":
			return false
		default:
			return def
		}
	default:
		return def
	}
}
