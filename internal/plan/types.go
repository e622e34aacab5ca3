package plan

import (
	"strings"
	"time"
)

// SchemaVersion is the current plan artifact schema version.
// Field names are stable across schema versions; this governs forward
// compatibility for readers.
const SchemaVersion = "1.0"

// Status represents the lifecycle state of a single node
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusBlocked    Status = "blocked"
)

// TerminalSuccess reports whether the status satisfies downstream dependencies
func (s Status) TerminalSuccess() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// Terminal reports whether the node will not transition again without
// an explicit rerun
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusSkipped || s == StatusFailed || s == StatusBlocked
}

// PlanStatus represents the lifecycle state of the whole plan
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanRunning   PlanStatus = "running"
	PlanPaused    PlanStatus = "paused"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// NodeType determines which executor capability runs a node and which
// payload fields are required
type NodeType string

const (
	NodeAgent    NodeType = "agent"
	NodeTool     NodeType = "tool"
	NodeService  NodeType = "service"
	NodeCheck    NodeType = "check"
	NodeDecision NodeType = "decision"
)

// Plan is the top-level persisted document describing a DAG of tasks and
// their execution state. It is the single owner of all node and history
// data for its lifetime, and doubles as the durable log the orchestrator
// resumes from after a crash.
type Plan struct {
	SchemaVersion string     `yaml:"schema_version" json:"schema_version"`
	ID            string     `yaml:"plan_id" json:"plan_id"`
	Name          string     `yaml:"name" json:"name"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt     time.Time  `yaml:"created_at" json:"created_at"`
	LastUpdated   time.Time  `yaml:"last_updated" json:"last_updated"`
	CreatedBy     string     `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	Status        PlanStatus `yaml:"status" json:"status"`
	Notes         string     `yaml:"notes,omitempty" json:"notes,omitempty"`
	Nodes         []*Node    `yaml:"nodes" json:"nodes"`

	// Trailing integrity marker used for optimistic locking. Version
	// increments exactly once per successful write; Checksum covers the
	// document content with the marker itself zeroed.
	Version  int    `yaml:"version" json:"version"`
	Checksum string `yaml:"checksum,omitempty" json:"checksum,omitempty"`
}

// Node is one task in the plan, the unit of scheduling and status tracking
type Node struct {
	ID        string         `yaml:"id" json:"id"`
	Type      NodeType       `yaml:"type" json:"type"`
	Summary   string         `yaml:"summary" json:"summary"`
	DependsOn []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Payload   Payload        `yaml:"payload" json:"payload"`
	Status    Status         `yaml:"status" json:"status"`
	Attempt   int            `yaml:"attempt" json:"attempt"`
	Result    *Result        `yaml:"result,omitempty" json:"result,omitempty"`
	Timeline  Timeline       `yaml:"timeline" json:"timeline"`
	History   []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
}

// SyntheticPrefix namespaces nodes injected from an extracted sub-graph
// description rather than authored into the plan.
const SyntheticPrefix = "flow::"

// Synthetic reports whether the node was injected from a sub-graph
// description. Synthetic nodes exist for visualization and audit and are
// never scheduled.
func (n *Node) Synthetic() bool {
	return strings.HasPrefix(n.ID, SyntheticPrefix)
}

// Payload is the execution payload variant. Which field is required depends
// on the node type: agent and decision nodes need a prompt, tool and check
// nodes need a command, service nodes need an HTTP request descriptor.
type Payload struct {
	Prompt  string       `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Command string       `yaml:"command,omitempty" json:"command,omitempty"`
	Request *HTTPRequest `yaml:"request,omitempty" json:"request,omitempty"`
}

// HTTPRequest describes a service node invocation
type HTTPRequest struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// Result is the envelope a node execution produces
type Result struct {
	Outputs   map[string]any `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Artifacts []string       `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Metrics   map[string]any `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Error     *ErrorInfo     `yaml:"error,omitempty" json:"error,omitempty"`
}

// ErrorInfo records why a node failed
type ErrorInfo struct {
	Kind    string `yaml:"kind" json:"kind"`
	Message string `yaml:"message" json:"message"`
}

// Timeline tracks when a node moved through its lifecycle
type Timeline struct {
	QueuedAt        *time.Time `yaml:"queued_at,omitempty" json:"queued_at,omitempty"`
	StartedAt       *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt         *time.Time `yaml:"ended_at,omitempty" json:"ended_at,omitempty"`
	DurationSeconds float64    `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
}

// HistoryEntry records one attempt outcome. The sequence is append-only;
// entries are never mutated after append.
type HistoryEntry struct {
	AttemptID string    `yaml:"attempt_id" json:"attempt_id"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Status    Status    `yaml:"status" json:"status"`
	Notes     string    `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// NodeByID returns the node with the given id, or nil
func (p *Plan) NodeByID(id string) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// NodeIndex returns an id -> node lookup map
func (p *Plan) NodeIndex() map[string]*Node {
	index := make(map[string]*Node, len(p.Nodes))
	for _, n := range p.Nodes {
		index[n.ID] = n
	}
	return index
}

// Counts tallies nodes per status
func (p *Plan) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, n := range p.Nodes {
		counts[n.Status]++
	}
	return counts
}

// DeriveStatus computes the plan status implied by the node statuses:
// completed iff every node terminated successfully, failed iff at least one
// node failed or was blocked by a failure and nothing remains runnable,
// running otherwise.
func (p *Plan) DeriveStatus() PlanStatus {
	if len(p.Nodes) == 0 {
		return PlanDraft
	}

	allSuccess := true
	anyFailed := false
	anyOpen := false
	for _, n := range p.Nodes {
		if !n.Status.TerminalSuccess() {
			allSuccess = false
		}
		if n.Status == StatusFailed {
			anyFailed = true
		}
		if !n.Status.Terminal() {
			anyOpen = true
		}
	}

	switch {
	case allSuccess:
		return PlanCompleted
	case anyFailed && !anyOpen:
		return PlanFailed
	default:
		return PlanRunning
	}
}

// AppendHistory appends one attempt record to the node
func (n *Node) AppendHistory(attemptID string, at time.Time, status Status, notes string) {
	n.History = append(n.History, HistoryEntry{
		AttemptID: attemptID,
		Timestamp: at,
		Status:    status,
		Notes:     notes,
	})
}
