// Package flowspec extracts structured sub-graph descriptions from agent
// replies and injects them into a plan as synthetic nodes. Injection is a
// pure transformation over the plan document; the originating node's
// status and outputs are never touched.
package flowspec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avaricia/agentflow/internal/plan"
)

// SpecNode is one node of an extracted sub-graph.
type SpecNode struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	OnTrue  string `json:"on_true,omitempty" yaml:"on_true,omitempty"`
	OnFalse string `json:"on_false,omitempty" yaml:"on_false,omitempty"`
}

// Edge connects two sub-graph nodes.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Spec is a structured sub-graph extracted from an agent reply.
type Spec struct {
	Nodes []SpecNode `json:"nodes" yaml:"nodes"`
	Edges []Edge     `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Stats summarizes the structure of a sub-graph.
type Stats struct {
	NodeCount   int `yaml:"node_count"`
	BranchCount int `yaml:"branch_count"`
	LoopCount   int `yaml:"loop_count"`
}

// Stats counts the nodes by structural role.
func (s *Spec) Stats() Stats {
	stats := Stats{NodeCount: len(s.Nodes)}
	for _, node := range s.Nodes {
		switch strings.ToLower(node.Type) {
		case "branch", "decision", "if":
			stats.BranchCount++
		case "loop", "while", "for":
			stats.LoopCount++
		}
	}
	return stats
}

var fencePattern = regexp.MustCompile("(?is)```json(?:\\s+flow_spec)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// Extract pulls a sub-graph description out of a fenced json block in the
// message. The block may wrap the spec under a flow_spec key or be the
// spec itself. Returns nil when no usable spec is present.
func Extract(message string) *Spec {
	if message == "" {
		return nil
	}

	match := fencePattern.FindStringSubmatch(message)
	if match == nil {
		return nil
	}
	candidate := strings.TrimSpace(match[1])

	var wrapper struct {
		FlowSpec json.RawMessage `json:"flow_spec"`
	}
	payload := []byte(candidate)
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil
	}
	if len(wrapper.FlowSpec) > 0 {
		payload = wrapper.FlowSpec
	}

	var spec Spec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil
	}
	for i := range spec.Nodes {
		if spec.Nodes[i].ID == "" {
			spec.Nodes[i].ID = spec.Nodes[i].Name
		}
	}
	if len(spec.Nodes) == 0 {
		return nil
	}
	return &spec
}

// SyntheticID namespaces a sub-graph node id under its source node so that
// re-injection from the same description lands on the same ids.
func SyntheticID(sourceNodeID, specNodeID string) string {
	return fmt.Sprintf("%s%s::%s", plan.SyntheticPrefix, sourceNodeID, specNodeID)
}

// Inject adds one synthetic succeeded node per sub-graph node to the plan.
// Dependencies come from the sub-graph's edges, each prefixed with the
// source node so the sub-graph hangs off the node that produced it.
// Edges that name a node absent from the spec are dropped, and edges
// that would close a cycle (loop back-edges) are skipped so the plan
// stays a valid DAG after injection. Injecting the same spec twice is a
// no-op for already-present ids. Returns the ids of the nodes added.
func Inject(p *plan.Plan, sourceNodeID string, spec *Spec) []string {
	if spec == nil || len(spec.Nodes) == 0 {
		return nil
	}

	known := make(map[string]bool, len(spec.Nodes))
	for _, specNode := range spec.Nodes {
		if id := strings.TrimSpace(specNode.ID); id != "" {
			known[id] = true
		}
	}

	forward := make(map[string][]string)
	dependencies := make(map[string][]string)
	for _, edge := range spec.Edges {
		source := strings.TrimSpace(edge.Source)
		target := strings.TrimSpace(edge.Target)
		if !known[source] || !known[target] {
			continue
		}
		if reaches(forward, target, source) {
			continue
		}
		forward[source] = append(forward[source], target)
		dependencies[target] = append(dependencies[target], source)
	}

	now := time.Now().UTC()
	var added []string

	for _, specNode := range spec.Nodes {
		rawID := strings.TrimSpace(specNode.ID)
		if rawID == "" {
			continue
		}
		nodeID := SyntheticID(sourceNodeID, rawID)
		if p.NodeByID(nodeID) != nil {
			continue
		}

		dependsOn := []string{sourceNodeID}
		seen := map[string]bool{sourceNodeID: true}
		for _, dep := range dependencies[rawID] {
			depID := SyntheticID(sourceNodeID, dep)
			if seen[depID] {
				continue
			}
			seen[depID] = true
			dependsOn = append(dependsOn, depID)
		}

		label := specNode.Label
		if label == "" {
			label = specNode.Name
		}
		if label == "" {
			label = rawID
		}
		nodeType := specNode.Type
		if nodeType == "" {
			nodeType = "flow"
		}

		synthetic := &plan.Node{
			ID:        nodeID,
			Type:      plan.NodeType(nodeType),
			Summary:   label,
			DependsOn: dependsOn,
			Status:    plan.StatusSucceeded,
			Attempt:   1,
			Result: &plan.Result{
				Outputs: map[string]any{
					"notes":   "synthetic node derived from flow_spec JSON",
					"source":  "flow_spec",
					"node_id": rawID,
				},
				Metrics: map[string]any{"flow_spec_type": nodeType},
			},
			Timeline: plan.Timeline{QueuedAt: &now, StartedAt: &now, EndedAt: &now},
		}
		synthetic.AppendHistory("", now, plan.StatusSucceeded, "generated from flow_spec JSON")

		p.Nodes = append(p.Nodes, synthetic)
		added = append(added, nodeID)
	}
	return added
}

// reaches reports whether to is reachable from from over the accepted
// forward edges. A node trivially reaches itself.
func reaches(forward map[string][]string, from, to string) bool {
	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == to {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		stack = append(stack, forward[current]...)
	}
	return false
}

const compilerPromptFormat = `You are the AgentFlowLanguage compiler. Convert the provided pseudo code or natural language routine into a structured flow description.

Return your answer as a markdown ` + "```json```" + ` block containing an object with exactly these keys:
  - "flow_spec": a JSON object with "nodes" (list) and "edges" (list) describing the control flow. Each node must include "id", "label", and "type".
  - "agentflowlanguage": a multiline string that mirrors the flow using AgentFlowLanguage syntax with constructs such as while(), if(), else, and semicolon-terminated actions.

Flow spec requirements:
  * Use the node types "action", "branch", "loop", or other canonical AgentFlow types.
  * Provide "on_true" / "on_false" targets for branch and loop nodes when available.
  * Edges must include "source" and "target"; include a short "label" when it clarifies the path (e.g., "true", "false", "loop").

Pseudo-code input:
<<<
%s
>>>`

// CompilerPrompt renders the AgentFlowLanguage compiler instruction for
// a pseudo-code or natural language routine. Used when an agent reply
// carries no fenced flow_spec and the sub-graph has to be compiled in a
// second pass.
func CompilerPrompt(pseudoCode string) string {
	return fmt.Sprintf(compilerPromptFormat, strings.TrimSpace(pseudoCode))
}
