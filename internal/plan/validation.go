package plan

import (
	"strings"

	"github.com/avaricia/agentflow/internal/errors"
)

// Validate checks structural well-formedness: non-empty and unique node ids,
// depends_on references resolving to existing nodes, per-type payload
// requirements, and acyclicity of the dependency graph. It runs before any
// execution attempt and again after any externally supplied edit.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New(errors.ErrCodePlanInvalid, "plan_id cannot be empty")
	}
	if len(p.Nodes) == 0 {
		return errors.New(errors.ErrCodePlanInvalid, "plan must have at least one node").
			WithSuggestion("Add nodes to the plan before running it")
	}

	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return errors.New(errors.ErrCodePlanInvalid, "node id cannot be empty")
		}
		if seen[n.ID] {
			return errors.NewDuplicateNodeError(n.ID)
		}
		seen[n.ID] = true

		if err := n.validatePayload(); err != nil {
			return err
		}
	}

	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return errors.NewUnknownDependencyError(n.ID, dep)
			}
		}
	}

	return p.checkAcyclic()
}

// validatePayload enforces the payload variant required by the node type.
// Synthetic nodes carry no payload and their types come from the injected
// sub-graph, so they skip both checks.
func (n *Node) validatePayload() error {
	if n.Synthetic() {
		return nil
	}
	switch n.Type {
	case NodeAgent, NodeDecision:
		if strings.TrimSpace(n.Payload.Prompt) == "" {
			return errors.NewPayloadMissingError(n.ID, string(n.Type), "prompt")
		}
	case NodeTool, NodeCheck:
		if strings.TrimSpace(n.Payload.Command) == "" {
			return errors.NewPayloadMissingError(n.ID, string(n.Type), "command")
		}
	case NodeService:
		if n.Payload.Request == nil || strings.TrimSpace(n.Payload.Request.URL) == "" {
			return errors.NewPayloadMissingError(n.ID, string(n.Type), "request")
		}
	default:
		return errors.New(errors.ErrCodePlanInvalid, "node "+n.ID+" has unknown type "+string(n.Type)).
			WithSuggestion("Use one of: agent, tool, service, check, decision")
	}
	return nil
}

// checkAcyclic detects cycles via depth-first traversal with an in-progress
// marker set, reporting the offending cycle as an ordered id list.
func (p *Plan) checkAcyclic() error {
	graph := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		graph[n.ID] = n.DependsOn
	}

	visited := make(map[string]bool)
	inProgress := make(map[string]bool)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		visited[id] = true
		inProgress[id] = true
		path = append(path, id)

		for _, dep := range graph[id] {
			if inProgress[dep] {
				// Trim the path down to where the cycle starts.
				start := 0
				for i, seen := range path {
					if seen == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				return errors.NewCyclicDependencyError(cycle)
			}
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			}
		}

		inProgress[id] = false
		return nil
	}

	for _, n := range p.Nodes {
		if !visited[n.ID] {
			if err := visit(n.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
