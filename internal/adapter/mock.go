package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avaricia/agentflow/internal/plan"
)

// Mock returns canned responses without calling any external CLI or API.
// It backs tests and demos that should not depend on installed agents.
type Mock struct {
	// Fail, when set, makes every Run return this error.
	Fail error

	// Reply, when set, overrides the canned message.
	Reply string
}

// NewMock creates a mock backend.
func NewMock() *Mock { return &Mock{} }

// Name implements Adapter.
func (m *Mock) Name() string { return "mock" }

// Run implements Adapter. Prompts that mention "flow" or "workflow" get a
// synthetic flow spec embedded in a json fence so extraction paths can be
// exercised end to end. Evaluation prompts get a strict score object.
func (m *Mock) Run(ctx context.Context, payload plan.Payload, _ Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fail != nil {
		return nil, m.Fail
	}

	prompt := payload.Prompt
	if prompt == "" {
		prompt = payload.Command
	}

	message := m.Reply
	if message == "" {
		message = cannedMessage(prompt)
	}

	events := []Event{
		{Type: "thread.started", Payload: map[string]any{"thread_id": "mock-thread-123"}},
		{Type: "item.completed", Payload: map[string]any{
			"item": map[string]any{"type": "agent_message", "text": message},
		}},
		{Type: "turn.completed", Payload: map[string]any{
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 25},
		}},
	}
	usage := map[string]any{"input_tokens": 10, "output_tokens": 25, "total_tokens": 35}

	return &Result{Message: message, Events: events, Usage: usage}, nil
}

func cannedMessage(prompt string) string {
	lower := strings.ToLower(prompt)

	if strings.Contains(lower, "self-evaluation judge") {
		return `{"score": 0.85, "justification": "The reply addresses the prompt directly and completely."}`
	}

	if strings.Contains(lower, "flow") || strings.Contains(lower, "workflow") {
		spec := map[string]any{
			"flow_spec": map[string]any{
				"nodes": []map[string]any{
					{"id": "start", "type": "action", "label": "Start"},
					{"id": "greet", "type": "action", "label": "Say Hello"},
					{"id": "end", "type": "action", "label": "End"},
				},
				"edges": []map[string]any{
					{"source": "start", "target": "greet", "label": "begin"},
					{"source": "greet", "target": "end", "label": "finish"},
				},
			},
		}
		encoded, _ := json.MarshalIndent(spec, "", "  ")
		return fmt.Sprintf(
			"Here is a simple flow for your request:\n\n```json\n%s\n```\n\nThis flow has three steps: start, greet (say hello), and end.",
			encoded,
		)
	}

	head := prompt
	if len(head) > 50 {
		head = head[:50]
	}
	return fmt.Sprintf("Mock response: I received your prompt '%s...' and here is a canned reply.", head)
}
