// Package adapter defines the executor backend interface and the concrete
// backends that run plan node payloads: CLI agents spoken to over JSONL,
// a generic HTTP backend, and a deterministic mock for tests.
package adapter

import (
	"context"
	"time"

	"github.com/avaricia/agentflow/internal/plan"
)

// Event is a single streamed event emitted by a backend while working on
// a payload. CLI agents emit these as JSON lines on stdout.
type Event struct {
	Type    string         `json:"type" yaml:"type"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Result is what a backend produced for one payload.
type Result struct {
	// Message is the final assistant message, verbatim.
	Message string

	// Events preserves the raw event stream in arrival order.
	Events []Event

	// Usage carries token accounting when the backend reports it.
	Usage map[string]any
}

// Options tunes a single invocation.
type Options struct {
	// Timeout bounds the invocation. Zero means no adapter-imposed bound;
	// the caller's context still applies.
	Timeout time.Duration

	// WorkingDir is the directory the backend runs in. Empty means the
	// current directory.
	WorkingDir string
}

// Adapter runs one payload against a backend and returns its result.
// Implementations must respect ctx cancellation.
type Adapter interface {
	// Name identifies the backend, e.g. "codex" or "mock".
	Name() string

	// Run executes the payload and returns the backend's result. A nil
	// error with an empty Message is valid; callers decide whether that
	// is acceptable for the node at hand.
	Run(ctx context.Context, payload plan.Payload, opts Options) (*Result, error)
}
