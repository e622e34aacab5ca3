package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/avaricia/agentflow/internal/config"
	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/plan"
)

// CLI wraps a headless agent CLI that emits JSONL events on stdout. The
// prompt is passed as the final argument; the final assistant message is
// taken from the last agent_message item.
type CLI struct {
	name string
	path string
	args []string
	env  []string
}

// NewCodexCLI builds the adapter for the Codex CLI exec command.
func NewCodexCLI(settings config.Settings) (*CLI, error) {
	if settings.OpenAIAPIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return nil, errors.NewAdapterConfigError("codex", "OPENAI_API_KEY must be set")
	}
	env := os.Environ()
	if settings.OpenAIAPIKey != "" {
		env = append(env, "OPENAI_API_KEY="+settings.OpenAIAPIKey)
	}
	return &CLI{
		name: "codex",
		path: settings.CodexPath,
		args: []string{"exec", "--model", settings.CodexModel, "--json"},
		env:  env,
	}, nil
}

// NewClaudeCLI builds the adapter for the Anthropic CLI.
func NewClaudeCLI(settings config.Settings) (*CLI, error) {
	if settings.AnthropicAPIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, errors.NewAdapterConfigError("claude", "ANTHROPIC_API_KEY must be set")
	}
	env := os.Environ()
	if settings.AnthropicAPIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+settings.AnthropicAPIKey)
	}
	return &CLI{
		name: "claude",
		path: settings.ClaudePath,
		args: []string{
			"--model", settings.ClaudeModel,
			"--max-tokens", fmt.Sprintf("%d", settings.ClaudeMaxTokens),
			"--json",
		},
		env: env,
	}, nil
}

// NewCopilotCLI builds the adapter for the GitHub Copilot CLI.
func NewCopilotCLI(settings config.Settings) (*CLI, error) {
	env := os.Environ()
	if settings.CopilotToken != "" {
		env = append(env, "GITHUB_TOKEN="+settings.CopilotToken)
	}
	return &CLI{
		name: "copilot",
		path: settings.CopilotPath,
		args: []string{"exec", "--json"},
		env:  env,
	}, nil
}

// NewCommandCLI builds an adapter around an arbitrary executable. Used for
// tool and check nodes whose payload names a command rather than a prompt.
func NewCommandCLI(name, path string, args ...string) *CLI {
	return &CLI{name: name, path: path, args: args, env: os.Environ()}
}

// Name implements Adapter.
func (c *CLI) Name() string { return c.name }

// Run implements Adapter.
func (c *CLI) Run(ctx context.Context, payload plan.Payload, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	prompt := payload.Prompt
	if prompt == "" {
		prompt = payload.Command
	}

	args := append(append([]string{}, c.args...), prompt)
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Env = c.env
	cmd.Dir = opts.WorkingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ctx.Err()
		}
		return nil, errors.NewAdapterExitError(c.name, stderr.String(), err)
	}

	return parseEventStream(c.name, stdout.Bytes())
}

// parseEventStream reads JSONL events, capturing the final agent message
// and turn usage. Lines that are not JSON objects are tolerated; agent
// CLIs sometimes interleave plain log lines.
func parseEventStream(backend string, output []byte) (*Result, error) {
	result := &Result{Usage: map[string]any{}}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		eventType, _ := raw["type"].(string)
		event := Event{Type: eventType, Payload: raw}
		result.Events = append(result.Events, event)

		if item, ok := raw["item"].(map[string]any); ok {
			if itemType, _ := item["type"].(string); itemType == "agent_message" {
				if text, ok := item["text"].(string); ok {
					result.Message = text
				}
			}
		}

		if eventType == "turn.completed" {
			if usage, ok := raw["usage"].(map[string]any); ok {
				result.Usage = usage
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewAdapterOutputError(backend, err)
	}

	if result.Message == "" && len(result.Events) == 0 {
		// Plain-text backends: the whole stdout is the message.
		result.Message = string(bytes.TrimSpace(output))
	}
	if result.Message == "" {
		return nil, errors.NewAdapterOutputError(backend,
			fmt.Errorf("no agent_message event in output"))
	}
	return result, nil
}
