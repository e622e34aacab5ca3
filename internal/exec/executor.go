// Package exec runs individual plan nodes through an adapter backend and
// records the outcome on the node: result envelope, timeline, attempt
// history.
package exec

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avaricia/agentflow/internal/adapter"
	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/log"
	"github.com/avaricia/agentflow/internal/plan"
)

// Capabilities maps node types to the backend that can serve them.
// Agent covers agent and decision nodes, Command covers tool and check
// nodes, Service covers service nodes.
type Capabilities struct {
	Agent   adapter.Adapter
	Command adapter.Adapter
	Service adapter.Adapter
}

// DefaultCapabilities pairs the configured agent backend with a shell
// runner for command payloads and a request-driven HTTP backend for
// service payloads.
func DefaultCapabilities(agent adapter.Adapter) Capabilities {
	return Capabilities{
		Agent:   agent,
		Command: adapter.NewCommandCLI("shell", "/bin/sh", "-c"),
		Service: adapter.NewRequestHTTP(),
	}
}

// Executor runs one node at a time, dispatching each node to the
// capability that matches its type.
type Executor struct {
	caps    Capabilities
	timeout time.Duration
	logger  *log.Logger
}

// New creates an executor. A zero timeout disables the per-node bound.
func New(caps Capabilities, timeout time.Duration, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Executor{caps: caps, timeout: timeout, logger: logger}
}

// Run executes the node in place. The node must be pending or ready with
// its dependencies satisfied; the caller owns that check via the
// scheduler. On return the node is in a terminal state and carries
// exactly one new history entry for this attempt.
//
// The returned error is the execution failure, if any; the node records
// it too, so callers that persist the plan after every attempt can
// ignore it and read the node instead.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, nodeID string) error {
	attemptID, err := e.Begin(p, nodeID)
	if err != nil {
		return err
	}
	return e.Finish(ctx, p, nodeID, attemptID)
}

// Begin transitions the node to in_progress and stamps the attempt.
// Callers that persist the plan on every transition save between Begin
// and Finish so the started attempt survives a crash mid-call.
func (e *Executor) Begin(p *plan.Plan, nodeID string) (string, error) {
	node := p.NodeByID(nodeID)
	if node == nil {
		return "", errors.NewNodeNotRunnableError(nodeID, "absent")
	}
	if node.Status != plan.StatusPending && node.Status != plan.StatusReady {
		return "", errors.NewNodeNotRunnableError(nodeID, string(node.Status))
	}

	attemptID := uuid.NewString()
	started := time.Now().UTC()

	node.Status = plan.StatusInProgress
	node.Attempt++
	node.Timeline.StartedAt = &started
	if node.Timeline.QueuedAt == nil {
		node.Timeline.QueuedAt = &started
	}

	e.logger.Info("node started",
		"plan_id", p.ID, "node_id", nodeID, "type", node.Type, "attempt", node.Attempt)
	return attemptID, nil
}

// Finish runs the node's backend and records the terminal outcome for
// the attempt started by Begin.
func (e *Executor) Finish(ctx context.Context, p *plan.Plan, nodeID, attemptID string) error {
	node := p.NodeByID(nodeID)
	if node == nil {
		return errors.NewNodeNotRunnableError(nodeID, "absent")
	}
	started := time.Now().UTC()
	if node.Timeline.StartedAt != nil {
		started = *node.Timeline.StartedAt
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	backend, dispatchErr := e.backendFor(node)
	var result *adapter.Result
	runErr := dispatchErr
	if runErr == nil {
		result, runErr = backend.Run(runCtx, node.Payload, adapter.Options{Timeout: e.timeout})
	}

	ended := time.Now().UTC()
	node.Timeline.EndedAt = &ended
	node.Timeline.DurationSeconds = ended.Sub(started).Seconds()

	if runErr != nil {
		return e.recordFailure(p, node, attemptID, runErr)
	}

	if node.Type == plan.NodeDecision && !decisionOutcome(result.Message) {
		node.Status = plan.StatusSkipped
		node.Result = &plan.Result{
			Outputs: map[string]any{"message": result.Message, "decision": false},
			Metrics: usageMetrics(result.Usage),
		}
		node.AppendHistory(attemptID, ended, plan.StatusSkipped, "decision evaluated false")
		e.logger.Info("node skipped", "plan_id", p.ID, "node_id", node.ID)
		return nil
	}

	node.Status = plan.StatusSucceeded
	node.Result = &plan.Result{
		Outputs: map[string]any{
			"message": result.Message,
			"events":  eventMaps(result.Events),
		},
		Metrics: usageMetrics(result.Usage),
	}
	node.AppendHistory(attemptID, ended, plan.StatusSucceeded, "completed")

	e.logger.Info("node succeeded",
		"plan_id", p.ID, "node_id", node.ID,
		"duration_s", node.Timeline.DurationSeconds)
	return nil
}

// backendFor selects the capability serving the node's type.
func (e *Executor) backendFor(node *plan.Node) (adapter.Adapter, error) {
	var backend adapter.Adapter
	switch node.Type {
	case plan.NodeTool, plan.NodeCheck:
		backend = e.caps.Command
	case plan.NodeService:
		backend = e.caps.Service
	default:
		backend = e.caps.Agent
	}
	if backend == nil {
		return nil, errors.NewAdapterConfigError(string(node.Type),
			"no backend wired for node type")
	}
	return backend, nil
}

func (e *Executor) recordFailure(p *plan.Plan, node *plan.Node, attemptID string, runErr error) error {
	kind := "executor"
	wrapped := errors.NewExecutorFailureError(node.ID, runErr)
	if runErr == context.DeadlineExceeded || errors.IsTimeout(runErr) {
		kind = "timeout"
		wrapped = errors.NewExecTimeoutError(node.ID, e.timeout)
	}

	node.Status = plan.StatusFailed
	node.Result = &plan.Result{
		Error: &plan.ErrorInfo{Kind: kind, Message: runErr.Error()},
	}
	node.AppendHistory(attemptID, *node.Timeline.EndedAt, plan.StatusFailed, "failed: "+runErr.Error())

	e.logger.WithError(wrapped).Error("node failed",
		"plan_id", p.ID, "node_id", node.ID, "kind", kind)
	return wrapped
}

// decisionOutcome reads a boolean verdict from a decision node's reply.
// JSON objects with a decision/result/answer field are honored; otherwise
// a leading yes/true/proceed wins and anything else is false.
func decisionOutcome(message string) bool {
	trimmed := strings.TrimSpace(message)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, key := range []string{"decision", "result", "answer"} {
			switch v := obj[key].(type) {
			case bool:
				return v
			case string:
				return truthyWord(v)
			}
		}
	}

	firstWord := trimmed
	if idx := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '.' || r == ',' || r == ':' || r == '!'
	}); idx > 0 {
		firstWord = trimmed[:idx]
	}
	return truthyWord(firstWord)
}

func truthyWord(word string) bool {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "yes", "true", "proceed", "pass", "approve", "approved":
		return true
	}
	return false
}

func usageMetrics(usage map[string]any) map[string]any {
	if len(usage) == 0 {
		return nil
	}
	metrics := make(map[string]any, len(usage))
	for key, value := range usage {
		metrics[key] = value
	}
	return metrics
}

func eventMaps(events []adapter.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, event := range events {
		entry := map[string]any{"type": event.Type}
		for key, value := range event.Payload {
			entry[key] = value
		}
		out = append(out, entry)
	}
	return out
}
