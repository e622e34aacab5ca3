// Package sched computes execution order over the plan graph. The resolver
// returns the entire ready frontier so callers may choose sequential or
// bounded-parallel execution; the reference orchestrator runs one node at a
// time to keep the persistence step simple.
package sched

import (
	"fmt"
	"time"

	"github.com/avaricia/agentflow/internal/plan"
)

// Frontier returns the ids of nodes eligible to run next, in plan
// declaration order. A node is eligible iff its status is pending or ready
// and every dependency terminated successfully (succeeded or skipped).
func Frontier(p *plan.Plan) []string {
	index := p.NodeIndex()

	var frontier []string
	for _, n := range p.Nodes {
		if n.Status != plan.StatusPending && n.Status != plan.StatusReady {
			continue
		}
		if depsSatisfied(n, index) {
			frontier = append(frontier, n.ID)
		}
	}
	return frontier
}

// MarkReady promotes eligible pending nodes to ready. Purely cosmetic for
// the artifact; the frontier computation accepts both states.
func MarkReady(p *plan.Plan) {
	index := p.NodeIndex()
	for _, n := range p.Nodes {
		if n.Status == plan.StatusPending && depsSatisfied(n, index) {
			n.Status = plan.StatusReady
		}
	}
}

// PropagateBlocked eagerly marks every transitive dependent of a failed
// node as blocked and returns the ids that changed, in declaration order.
// Blocked nodes are excluded from the frontier until an explicit rerun
// clears them.
func PropagateBlocked(p *plan.Plan) []string {
	index := p.NodeIndex()

	blockedBy := make(map[string]string)
	for _, n := range p.Nodes {
		if n.Status == plan.StatusFailed || n.Status == plan.StatusBlocked {
			blockedBy[n.ID] = n.ID
		}
	}

	// Declaration order is a topological order only for well-behaved
	// plans, so iterate until the marking reaches a fixed point.
	changedSet := make(map[string]bool)
	for {
		progressed := false
		for _, n := range p.Nodes {
			if n.Status.Terminal() || n.Status == plan.StatusInProgress {
				continue
			}
			for _, dep := range n.DependsOn {
				cause, tainted := blockedBy[dep]
				if !tainted {
					if d := index[dep]; d != nil && (d.Status == plan.StatusFailed || d.Status == plan.StatusBlocked) {
						cause = dep
						tainted = true
					}
				}
				if tainted {
					n.Status = plan.StatusBlocked
					blockedBy[n.ID] = cause
					if !changedSet[n.ID] {
						changedSet[n.ID] = true
						now := time.Now().UTC()
						n.AppendHistory("", now, plan.StatusBlocked,
							fmt.Sprintf("blocked: dependency chain through %q failed", cause))
					}
					progressed = true
					break
				}
			}
		}
		if !progressed {
			break
		}
	}

	var changed []string
	for _, n := range p.Nodes {
		if changedSet[n.ID] {
			changed = append(changed, n.ID)
		}
	}
	return changed
}

// Unblock clears blocked status from the transitive dependents of a node,
// returning them to pending. Used when a failed node is rerun.
func Unblock(p *plan.Plan, rootID string) []string {
	dependents := make(map[string][]string)
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	index := p.NodeIndex()
	var changed []string
	queue := []string{rootID}
	seen := map[string]bool{rootID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depID := range dependents[id] {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			if n := index[depID]; n != nil && n.Status == plan.StatusBlocked {
				n.Status = plan.StatusPending
				changed = append(changed, depID)
			}
			queue = append(queue, depID)
		}
	}
	return changed
}

func depsSatisfied(n *plan.Node, index map[string]*plan.Node) bool {
	for _, dep := range n.DependsOn {
		d := index[dep]
		if d == nil || !d.Status.TerminalSuccess() {
			return false
		}
	}
	return true
}
