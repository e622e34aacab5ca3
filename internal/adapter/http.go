package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/plan"
)

// HTTP posts payloads to a messages-style endpoint and reads the reply
// from the response body. Service nodes use it directly with the request
// described in their payload; agent nodes use the configured endpoint.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// NewHTTP builds an HTTP backend for the given endpoint.
func NewHTTP(endpoint string) (*HTTP, error) {
	if endpoint == "" {
		return nil, errors.NewAdapterConfigError("http", "AGENTFLOW_HTTP_ENDPOINT must be set")
	}
	return &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// NewRequestHTTP builds an HTTP backend with no configured endpoint.
// Every payload must carry its own request descriptor; service nodes are
// dispatched through this.
func NewRequestHTTP() *HTTP {
	return &HTTP{client: &http.Client{Timeout: 5 * time.Minute}}
}

// Name implements Adapter.
func (h *HTTP) Name() string { return "http" }

type httpResponse struct {
	Message string         `json:"message"`
	Content string         `json:"content"`
	Usage   map[string]any `json:"usage"`
}

// Run implements Adapter. Payloads carrying an explicit request override
// the configured endpoint and method.
func (h *HTTP) Run(ctx context.Context, payload plan.Payload, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if payload.Request == nil && h.endpoint == "" {
		return nil, errors.NewAdapterConfigError("http",
			"no endpoint configured and payload carries no request")
	}

	method := http.MethodPost
	url := h.endpoint
	var body io.Reader

	if payload.Request != nil {
		url = payload.Request.URL
		if payload.Request.Method != "" {
			method = payload.Request.Method
		}
		if payload.Request.Body != "" {
			body = bytes.NewBufferString(payload.Request.Body)
		}
	} else {
		encoded, err := json.Marshal(map[string]string{"prompt": payload.Prompt})
		if err != nil {
			return nil, errors.NewAdapterOutputError("http", err)
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewAdapterConfigError("http", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if payload.Request != nil {
		for key, value := range payload.Request.Headers {
			req.Header.Set(key, value)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ctx.Err()
		}
		return nil, errors.NewAdapterExitError("http", "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return nil, errors.NewAdapterOutputError("http", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewAdapterExitError("http",
			string(raw), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed httpResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Non-JSON bodies are treated as the message itself.
		return &Result{Message: string(bytes.TrimSpace(raw))}, nil
	}

	message := parsed.Message
	if message == "" {
		message = parsed.Content
	}
	if message == "" {
		message = string(bytes.TrimSpace(raw))
	}
	return &Result{Message: message, Usage: parsed.Usage}, nil
}
