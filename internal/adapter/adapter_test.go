package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaricia/agentflow/internal/config"
	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/plan"
)

func TestMockPlainPrompt(t *testing.T) {
	result, err := NewMock().Run(context.Background(),
		plan.Payload{Prompt: "summarize the release notes"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "Mock response")
	assert.Len(t, result.Events, 3)
	assert.Equal(t, "thread.started", result.Events[0].Type)
	assert.Equal(t, "turn.completed", result.Events[2].Type)
	assert.Equal(t, 35, result.Usage["total_tokens"])
}

func TestMockFlowPromptEmbedsSpec(t *testing.T) {
	result, err := NewMock().Run(context.Background(),
		plan.Payload{Prompt: "design a workflow for onboarding"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "```json")
	assert.Contains(t, result.Message, "flow_spec")

	// The fenced block must be valid JSON.
	start := strings.Index(result.Message, "```json\n") + len("```json\n")
	end := strings.Index(result.Message[start:], "```")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Message[start:start+end]), &payload))
	require.Contains(t, payload, "flow_spec")
}

func TestMockJudgePromptReturnsScore(t *testing.T) {
	result, err := NewMock().Run(context.Background(),
		plan.Payload{Prompt: "You are an impartial self-evaluation judge. Score how well..."}, Options{})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Message), &parsed))
	assert.InDelta(t, 0.85, parsed["score"], 0.0001)
	assert.NotEmpty(t, parsed["justification"])
}

func TestMockHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock().Run(ctx, plan.Payload{Prompt: "hello"}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryResolveAndList(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func() (Adapter, error) { return NewMock(), nil })

	a, err := r.Resolve("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", a.Name())
	assert.Equal(t, []string{"mock"}, r.List())
}

func TestRegistryUnknownAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func() (Adapter, error) { return NewMock(), nil })

	_, err := r.Resolve("gemini")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAdapterNotFound, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "mock")
}

func TestDefaultRegistryCodexNeedsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	r := DefaultRegistry(config.Settings{Adapter: "codex", CodexPath: "codex"})
	_, err := r.Resolve("codex")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAdapterConfig, errors.CodeOf(err))
}

func TestParseEventStream(t *testing.T) {
	output := strings.Join([]string{
		`{"type":"thread.started","thread_id":"t-1"}`,
		`not json, ignore me`,
		`{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"first"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"final answer"}}`,
		`{"type":"turn.completed","usage":{"input_tokens":12,"output_tokens":30}}`,
	}, "\n")

	result, err := parseEventStream("codex", []byte(output))
	require.NoError(t, err)
	assert.Equal(t, "final answer", result.Message)
	assert.Len(t, result.Events, 5)
	assert.Equal(t, float64(12), result.Usage["input_tokens"])
}

func TestParseEventStreamPlainText(t *testing.T) {
	result, err := parseEventStream("claude", []byte("just a plain reply\n"))
	require.NoError(t, err)
	assert.Equal(t, "just a plain reply", result.Message)
}

func TestParseEventStreamNoMessage(t *testing.T) {
	_, err := parseEventStream("codex", []byte(`{"type":"thread.started"}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMalformedResult, errors.CodeOf(err))
}

func TestHTTPAdapterPostsPrompt(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"message": "hi from server",
			"usage":   map[string]any{"total_tokens": 7},
		})
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	result, err := h.Run(context.Background(), plan.Payload{Prompt: "ping"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ping", gotBody["prompt"])
	assert.Equal(t, "hi from server", result.Message)
	assert.Equal(t, float64(7), result.Usage["total_tokens"])
}

func TestHTTPAdapterServiceRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	h, err := NewHTTP("http://unused.invalid")
	require.NoError(t, err)

	result, err := h.Run(context.Background(), plan.Payload{Request: &plan.HTTPRequest{
		Method:  http.MethodPut,
		URL:     srv.URL,
		Headers: map[string]string{"X-Custom": "yes"},
		Body:    `{"k":"v"}`,
	}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "plain body", result.Message)
}

func TestHTTPAdapterErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), plan.Payload{Prompt: "ping"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
