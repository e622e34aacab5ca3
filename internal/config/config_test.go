package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"AGENTFLOW_ADAPTER", "AGENTFLOW_TIMEOUT", "AGENTFLOW_ARTIFACT_DIR",
		"AGENTFLOW_CODEX_MODEL", "AGENTFLOW_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	s := FromEnv()
	if s.Adapter != DefaultAdapter {
		t.Errorf("Adapter = %q, want %q", s.Adapter, DefaultAdapter)
	}
	if s.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultTimeout)
	}
	if s.ArtifactDir != "." {
		t.Errorf("ArtifactDir = %q, want %q", s.ArtifactDir, ".")
	}
	if s.CodexModel != DefaultCodexModel {
		t.Errorf("CodexModel = %q, want %q", s.CodexModel, DefaultCodexModel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AGENTFLOW_ADAPTER", "mock")
	t.Setenv("AGENTFLOW_TIMEOUT", "45s")
	t.Setenv("AGENTFLOW_ARTIFACT_DIR", "/tmp/plans")
	t.Setenv("AGENTFLOW_ANTHROPIC_MAX_TOKENS", "4096")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	s := FromEnv()
	if s.Adapter != "mock" {
		t.Errorf("Adapter = %q, want mock", s.Adapter)
	}
	if s.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", s.Timeout)
	}
	if s.ArtifactDir != "/tmp/plans" {
		t.Errorf("ArtifactDir = %q, want /tmp/plans", s.ArtifactDir)
	}
	if s.ClaudeMaxTokens != 4096 {
		t.Errorf("ClaudeMaxTokens = %d, want 4096", s.ClaudeMaxTokens)
	}
	if s.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want sk-test", s.OpenAIAPIKey)
	}
}

func TestEnvDurationBareSeconds(t *testing.T) {
	t.Setenv("AGENTFLOW_TIMEOUT", "90")
	if got := FromEnv().Timeout; got != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", got)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("AGENTFLOW_TIMEOUT", "soon")
	if got := FromEnv().Timeout; got != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", got, DefaultTimeout)
	}
}
