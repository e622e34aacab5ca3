package sched

import (
	"reflect"
	"testing"

	"github.com/avaricia/agentflow/internal/plan"
)

func chainPlan() *plan.Plan {
	// a -> b -> c
	p := plan.New("plan-chain", "chain", "")
	p.AddNode(&plan.Node{ID: "a", Type: plan.NodeAgent, Summary: "a", Payload: plan.Payload{Prompt: "a"}})
	p.AddNode(&plan.Node{ID: "b", Type: plan.NodeAgent, Summary: "b", DependsOn: []string{"a"}, Payload: plan.Payload{Prompt: "b"}})
	p.AddNode(&plan.Node{ID: "c", Type: plan.NodeAgent, Summary: "c", DependsOn: []string{"b"}, Payload: plan.Payload{Prompt: "c"}})
	return p
}

func fanOutPlan() *plan.Plan {
	// a feeds both b and c
	p := plan.New("plan-fan", "fan out", "")
	p.AddNode(&plan.Node{ID: "a", Type: plan.NodeAgent, Summary: "a", Payload: plan.Payload{Prompt: "a"}})
	p.AddNode(&plan.Node{ID: "b", Type: plan.NodeAgent, Summary: "b", DependsOn: []string{"a"}, Payload: plan.Payload{Prompt: "b"}})
	p.AddNode(&plan.Node{ID: "c", Type: plan.NodeAgent, Summary: "c", DependsOn: []string{"a"}, Payload: plan.Payload{Prompt: "c"}})
	return p
}

func TestFrontierDeclarationOrder(t *testing.T) {
	p := plan.New("plan-order", "order", "")
	p.AddNode(&plan.Node{ID: "z", Type: plan.NodeAgent, Summary: "z", Payload: plan.Payload{Prompt: "z"}})
	p.AddNode(&plan.Node{ID: "a", Type: plan.NodeAgent, Summary: "a", Payload: plan.Payload{Prompt: "a"}})
	p.AddNode(&plan.Node{ID: "m", Type: plan.NodeAgent, Summary: "m", Payload: plan.Payload{Prompt: "m"}})

	got := Frontier(p)
	want := []string{"z", "a", "m"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected declaration order %v, got %v", want, got)
	}
}

func TestFrontierChain(t *testing.T) {
	p := chainPlan()

	if got := Frontier(p); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected only the root in frontier, got %v", got)
	}

	p.NodeByID("a").Status = plan.StatusSucceeded
	if got := Frontier(p); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("after a succeeds expected [b], got %v", got)
	}

	p.NodeByID("b").Status = plan.StatusSkipped
	if got := Frontier(p); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("skipped counts as satisfied, expected [c], got %v", got)
	}

	p.NodeByID("c").Status = plan.StatusSucceeded
	if got := Frontier(p); got != nil {
		t.Fatalf("expected empty frontier at the end, got %v", got)
	}
}

func TestFrontierExcludesInProgressAndTerminal(t *testing.T) {
	p := fanOutPlan()
	p.NodeByID("a").Status = plan.StatusInProgress

	if got := Frontier(p); got != nil {
		t.Errorf("in_progress node must not be in frontier, got %v", got)
	}
}

func TestFrontierWholeReadySet(t *testing.T) {
	p := fanOutPlan()
	p.NodeByID("a").Status = plan.StatusSucceeded

	got := Frontier(p)
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("resolver must return the whole frontier, got %v", got)
	}
}

func TestPropagateBlocked(t *testing.T) {
	p := fanOutPlan()
	p.NodeByID("a").Status = plan.StatusFailed

	changed := PropagateBlocked(p)
	if !reflect.DeepEqual(changed, []string{"b", "c"}) {
		t.Fatalf("expected b and c blocked, got %v", changed)
	}
	if got := Frontier(p); got != nil {
		t.Errorf("blocked nodes must not appear in frontier, got %v", got)
	}
	if p.DeriveStatus() != plan.PlanFailed {
		t.Errorf("expected derived plan status failed, got %s", p.DeriveStatus())
	}
}

func TestPropagateBlockedTransitiveOnly(t *testing.T) {
	// d is independent of the failing branch and must stay pending.
	p := chainPlan()
	p.AddNode(&plan.Node{ID: "d", Type: plan.NodeAgent, Summary: "d", Payload: plan.Payload{Prompt: "d"}})
	p.NodeByID("a").Status = plan.StatusFailed

	changed := PropagateBlocked(p)
	if !reflect.DeepEqual(changed, []string{"b", "c"}) {
		t.Fatalf("expected only transitive dependents blocked, got %v", changed)
	}
	if p.NodeByID("d").Status != plan.StatusPending {
		t.Errorf("independent node must not be blocked")
	}
	if got := Frontier(p); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("independent node stays runnable, got %v", got)
	}
}

func TestPropagateBlockedOutOfDeclarationOrder(t *testing.T) {
	// Dependent declared before its dependency: propagation must still
	// reach it.
	p := plan.New("plan-reverse", "reverse", "")
	p.AddNode(&plan.Node{ID: "late", Type: plan.NodeAgent, Summary: "late", DependsOn: []string{"early"}, Payload: plan.Payload{Prompt: "x"}})
	p.AddNode(&plan.Node{ID: "early", Type: plan.NodeAgent, Summary: "early", DependsOn: []string{"root"}, Payload: plan.Payload{Prompt: "x"}})
	p.AddNode(&plan.Node{ID: "root", Type: plan.NodeAgent, Summary: "root", Payload: plan.Payload{Prompt: "x"}})
	p.NodeByID("root").Status = plan.StatusFailed

	PropagateBlocked(p)
	if p.NodeByID("late").Status != plan.StatusBlocked {
		t.Error("expected propagation to reach dependents declared earlier")
	}
}

func TestPropagateBlockedIdempotent(t *testing.T) {
	p := fanOutPlan()
	p.NodeByID("a").Status = plan.StatusFailed

	PropagateBlocked(p)
	if changed := PropagateBlocked(p); changed != nil {
		t.Errorf("second propagation must be a no-op, got %v", changed)
	}
	if entries := len(p.NodeByID("b").History); entries != 1 {
		t.Errorf("expected a single blocked history entry, got %d", entries)
	}
}

func TestUnblock(t *testing.T) {
	p := chainPlan()
	p.NodeByID("a").Status = plan.StatusFailed
	PropagateBlocked(p)

	changed := Unblock(p, "a")
	if !reflect.DeepEqual(changed, []string{"b", "c"}) {
		t.Fatalf("expected b and c unblocked, got %v", changed)
	}
	if p.NodeByID("b").Status != plan.StatusPending {
		t.Errorf("unblocked node should be pending")
	}
}

func TestMarkReady(t *testing.T) {
	p := chainPlan()
	p.NodeByID("a").Status = plan.StatusSucceeded

	MarkReady(p)
	if p.NodeByID("b").Status != plan.StatusReady {
		t.Errorf("expected b promoted to ready")
	}
	if p.NodeByID("c").Status != plan.StatusPending {
		t.Errorf("c's dependency is not terminal, must stay pending")
	}
}
