package plan

import (
	"strings"
	"time"
)

// CreatedByDefault identifies artifacts written by this process
const CreatedByDefault = "agentflow-cli@local"

// PromptNodeID is the id of the single agent node in an ad-hoc prompt plan
const PromptNodeID = "agent_execution"

// New creates an empty draft plan
func New(id, name, description string) *Plan {
	now := time.Now().UTC()
	return &Plan{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Name:          name,
		Description:   description,
		CreatedAt:     now,
		LastUpdated:   now,
		CreatedBy:     CreatedByDefault,
		Status:        PlanDraft,
	}
}

// AddNode appends a node in declaration order with pending status
func (p *Plan) AddNode(n *Node) {
	if n.Status == "" {
		n.Status = StatusPending
	}
	now := time.Now().UTC()
	if n.Timeline.QueuedAt == nil {
		n.Timeline.QueuedAt = &now
	}
	p.Nodes = append(p.Nodes, n)
}

// Summarize derives a one-line plan name from a free-form prompt
func Summarize(prompt string) string {
	summary := strings.TrimSpace(strings.ReplaceAll(prompt, "\n", " "))
	if len(summary) > 80 {
		summary = summary[:80]
	}
	if summary == "" {
		summary = "Ad-hoc execution"
	}
	return summary
}

// NewPromptPlan builds the single-node plan used for ad-hoc prompt runs:
// one agent node carrying the prompt, no dependencies.
func NewPromptPlan(id, prompt string) *Plan {
	summary := Summarize(prompt)
	p := New(id, summary, prompt)
	p.AddNode(&Node{
		ID:      PromptNodeID,
		Type:    NodeAgent,
		Summary: summary,
		Payload: Payload{Prompt: prompt},
	})
	return p
}
