// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not say otherwise
const (
	DefaultAdapter        = "codex"
	DefaultTimeout        = 120 * time.Second
	DefaultCodexPath      = "codex"
	DefaultCodexModel     = "gpt-5-mini"
	DefaultClaudePath     = "anthropic"
	DefaultClaudeModel    = "claude-3-5-sonnet-latest"
	DefaultClaudeMaxToken = 1024
	DefaultCopilotPath    = "copilot"
)

// Settings is the container for runtime configuration
type Settings struct {
	// Adapter selects the executor backend: codex, claude, copilot,
	// http, or mock.
	Adapter string

	// ArtifactDir is where plan artifacts and workflow history live.
	ArtifactDir string

	// Timeout bounds every single backend invocation.
	Timeout time.Duration

	// OpenAI / Codex CLI
	OpenAIAPIKey string
	CodexPath    string
	CodexModel   string

	// Anthropic / Claude CLI
	AnthropicAPIKey string
	ClaudePath      string
	ClaudeModel     string
	ClaudeMaxTokens int

	// GitHub Copilot CLI
	CopilotPath  string
	CopilotToken string

	// Generic HTTP backend
	HTTPEndpoint string

	// Logging
	LogLevel  string
	LogFormat string
}

// FromEnv loads settings from environment variables. A .env file in the
// working directory is loaded first when present; explicit environment
// variables win.
func FromEnv() Settings {
	// Ignore a missing .env; it is optional.
	_ = godotenv.Load()

	return Settings{
		Adapter:         envOr("AGENTFLOW_ADAPTER", DefaultAdapter),
		ArtifactDir:     envOr("AGENTFLOW_ARTIFACT_DIR", "."),
		Timeout:         envDuration("AGENTFLOW_TIMEOUT", DefaultTimeout),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		CodexPath:       envOr("AGENTFLOW_CODEX_PATH", DefaultCodexPath),
		CodexModel:      envOr("AGENTFLOW_CODEX_MODEL", DefaultCodexModel),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ClaudePath:      envOr("AGENTFLOW_ANTHROPIC_PATH", DefaultClaudePath),
		ClaudeModel:     envOr("AGENTFLOW_ANTHROPIC_MODEL", DefaultClaudeModel),
		ClaudeMaxTokens: envInt("AGENTFLOW_ANTHROPIC_MAX_TOKENS", DefaultClaudeMaxToken),
		CopilotPath:     envOr("AGENTFLOW_COPILOT_PATH", DefaultCopilotPath),
		CopilotToken:    os.Getenv("AGENTFLOW_COPILOT_TOKEN"),
		HTTPEndpoint:    os.Getenv("AGENTFLOW_HTTP_ENDPOINT"),
		LogLevel:        envOr("AGENTFLOW_LOG_LEVEL", "info"),
		LogFormat:       envOr("AGENTFLOW_LOG_FORMAT", "text"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept both Go duration syntax and bare seconds.
	if parsed, err := time.ParseDuration(v); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
