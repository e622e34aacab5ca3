package orch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaricia/agentflow/internal/adapter"
	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/plan"
	"github.com/avaricia/agentflow/internal/store"
)

func chainPlan() *plan.Plan {
	p := plan.New("plan-chain", "three step chain", "")
	p.AddNode(&plan.Node{ID: "a", Type: plan.NodeAgent, Payload: plan.Payload{Prompt: "step a"}})
	p.AddNode(&plan.Node{ID: "b", Type: plan.NodeAgent, DependsOn: []string{"a"}, Payload: plan.Payload{Prompt: "step b"}})
	p.AddNode(&plan.Node{ID: "c", Type: plan.NodeAgent, DependsOn: []string{"b"}, Payload: plan.Payload{Prompt: "step c"}})
	return p
}

func newFixture(t *testing.T, backend adapter.Adapter) (*Orchestrator, *store.Store, string) {
	t.Helper()
	st := store.New(t.TempDir())
	path := filepath.Join(st.Dir(), "chain.yaml")
	_, err := st.Create(path, chainPlan())
	require.NoError(t, err)
	return New(st, backend, Options{SelfEvaluate: true}, nil), st, path
}

func TestRunDrivesPlanToCompletion(t *testing.T) {
	o, st, path := newFixture(t, adapter.NewMock())

	snap, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanCompleted, snap.Plan.Status)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, plan.StatusSucceeded, snap.Plan.NodeByID(id).Status, id)
	}

	// The on-disk artifact matches the final state.
	reloaded, err := st.Load(path)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanCompleted, reloaded.Plan.Status)
	assert.Equal(t, snap.Lock.Version, reloaded.Lock.Version)
}

func TestRunPersistsEveryTransition(t *testing.T) {
	o, st, path := newFixture(t, adapter.NewMock())

	before, err := st.Load(path)
	require.NoError(t, err)

	snap, err := o.Run(context.Background(), path)
	require.NoError(t, err)

	// One write to mark running, two per node (attempt start and
	// attempt end), one final.
	assert.Equal(t, before.Lock.Version+8, snap.Lock.Version)
}

func TestRunRequeuesInterruptedNode(t *testing.T) {
	o, st, path := newFixture(t, adapter.NewMock())

	// A crashed run leaves node a mid-attempt on disk.
	snap, err := st.Load(path)
	require.NoError(t, err)
	snap.Plan.Status = plan.PlanRunning
	snap.Plan.NodeByID("a").Status = plan.StatusInProgress
	snap.Plan.NodeByID("a").Attempt = 1
	require.NoError(t, st.Save(snap))

	result, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanCompleted, result.Plan.Status)
	assert.Equal(t, plan.StatusSucceeded, result.Plan.NodeByID("a").Status)
	assert.Equal(t, 2, result.Plan.NodeByID("a").Attempt)
}

type failOn struct {
	*adapter.Mock
	failPrompt string
}

func (f *failOn) Run(ctx context.Context, payload plan.Payload, opts adapter.Options) (*adapter.Result, error) {
	if payload.Prompt == f.failPrompt {
		return nil, fmt.Errorf("injected failure")
	}
	return f.Mock.Run(ctx, payload, opts)
}

func TestRunFailureBlocksDependents(t *testing.T) {
	backend := &failOn{Mock: adapter.NewMock(), failPrompt: "step b"}
	o, _, path := newFixture(t, backend)

	snap, err := o.Run(context.Background(), path)
	require.NoError(t, err)

	p := snap.Plan
	assert.Equal(t, plan.PlanFailed, p.Status)
	assert.Equal(t, plan.StatusSucceeded, p.NodeByID("a").Status)
	assert.Equal(t, plan.StatusFailed, p.NodeByID("b").Status)
	assert.Equal(t, plan.StatusBlocked, p.NodeByID("c").Status)
	require.NotNil(t, p.NodeByID("b").Result.Error)
}

func TestRerunNodeRecoversFailedPlan(t *testing.T) {
	backend := &failOn{Mock: adapter.NewMock(), failPrompt: "step b"}
	o, _, path := newFixture(t, backend)

	_, err := o.Run(context.Background(), path)
	require.NoError(t, err)

	backend.failPrompt = ""
	snap, err := o.RerunNode(context.Background(), path, "b")
	require.NoError(t, err)

	p := snap.Plan
	assert.Equal(t, plan.PlanCompleted, p.Status)
	assert.Equal(t, plan.StatusSucceeded, p.NodeByID("b").Status)
	assert.Equal(t, plan.StatusSucceeded, p.NodeByID("c").Status)
	assert.Equal(t, 2, p.NodeByID("b").Attempt)
}

func TestRerunNodeRejectsSucceeded(t *testing.T) {
	o, _, path := newFixture(t, adapter.NewMock())
	_, err := o.Run(context.Background(), path)
	require.NoError(t, err)

	_, err = o.RerunNode(context.Background(), path, "a")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNodeNotRunnable, errors.CodeOf(err))
}

func TestRunHonorsPause(t *testing.T) {
	o, st, path := newFixture(t, adapter.NewMock())

	snap, err := st.Load(path)
	require.NoError(t, err)
	snap.Plan.Status = plan.PlanPaused
	require.NoError(t, st.Save(snap))

	result, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanPaused, result.Plan.Status)
	assert.Equal(t, plan.StatusPending, result.Plan.NodeByID("a").Status)
}

func TestRunCancelledContext(t *testing.T) {
	o, _, path := newFixture(t, adapter.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := o.Run(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, plan.PlanCancelled, snap.Plan.Status)
}

// meddler simulates a concurrent writer: the first backend call bumps the
// artifact on disk through a separate store handle.
type meddler struct {
	*adapter.Mock
	st      *store.Store
	path    string
	meddled bool
}

func (m *meddler) Run(ctx context.Context, payload plan.Payload, opts adapter.Options) (*adapter.Result, error) {
	if !m.meddled {
		m.meddled = true
		other, err := m.st.Load(m.path)
		if err != nil {
			return nil, err
		}
		other.Plan.Notes = "touched by another writer"
		if err := m.st.Save(other); err != nil {
			return nil, err
		}
	}
	return m.Mock.Run(ctx, payload, opts)
}

func TestRunReconcilesLockConflict(t *testing.T) {
	st := store.New(t.TempDir())
	path := filepath.Join(st.Dir(), "chain.yaml")
	_, err := st.Create(path, chainPlan())
	require.NoError(t, err)

	backend := &meddler{Mock: adapter.NewMock(), st: st, path: path}
	o := New(st, backend, Options{}, nil)

	snap, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, backend.meddled)
	assert.Equal(t, plan.PlanCompleted, snap.Plan.Status)
	assert.Equal(t, "touched by another writer", snap.Plan.Notes)
}

func TestRunPromptInjectsAndEvaluates(t *testing.T) {
	st := store.New(t.TempDir())
	o := New(st, adapter.NewMock(), Options{SelfEvaluate: true}, nil)

	run, err := o.RunPrompt(context.Background(), "design a workflow for onboarding")
	require.NoError(t, err)

	p := run.Snapshot.Plan
	assert.Equal(t, plan.PlanCompleted, p.Status)
	require.NotNil(t, run.Spec)
	assert.Equal(t, 3, run.Stats.NodeCount)
	assert.NotNil(t, p.NodeByID("flow::agent_execution::start"))
	assert.Equal(t, "assistant", p.NodeByID(plan.PromptNodeID).Result.Outputs["flow_spec_source"])

	require.NotNil(t, run.Verdict)
	require.NotNil(t, run.Verdict.Score)
	assert.InDelta(t, 0.85, *run.Verdict.Score, 0.0001)

	node := p.NodeByID(plan.PromptNodeID)
	evaluation, ok := node.Result.Outputs["evaluation"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, evaluation, "score")

	// The augmented document round-trips through the store.
	reloaded, err := st.Load(run.Snapshot.Path)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.Plan.NodeByID("flow::agent_execution::end"))
}

func TestRunPromptCompilesWhenReplyHasNoSpec(t *testing.T) {
	st := store.New(t.TempDir())
	o := New(st, adapter.NewMock(), Options{}, nil)

	// The canned reply for this prompt carries no fenced flow_spec, so
	// the orchestrator asks the backend to compile one in a second pass.
	run, err := o.RunPrompt(context.Background(), "summarize the release notes")
	require.NoError(t, err)
	assert.Contains(t, run.Message, "Mock response")

	require.NotNil(t, run.Spec)
	assert.Equal(t, 3, run.Stats.NodeCount)

	p := run.Snapshot.Plan
	assert.NotNil(t, p.NodeByID("flow::agent_execution::start"))

	node := p.NodeByID(plan.PromptNodeID)
	assert.Equal(t, "agentflowlanguage_compiler", node.Result.Outputs["flow_spec_source"])
	compiler, ok := node.Result.Outputs["flow_spec_compiler"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, compiler["message"], "```json")
}

func TestRunPromptPlainWhenCompilerHasNoSpec(t *testing.T) {
	st := store.New(t.TempDir())
	backend := &adapter.Mock{Reply: "just words, no structure"}
	o := New(st, backend, Options{}, nil)

	run, err := o.RunPrompt(context.Background(), "summarize the release notes")
	require.NoError(t, err)
	assert.Nil(t, run.Spec)
	assert.Nil(t, run.Verdict)
	assert.Len(t, run.Snapshot.Plan.Nodes, 1)

	node := run.Snapshot.Plan.NodeByID(plan.PromptNodeID)
	assert.Contains(t, node.Result.Outputs["flow_spec_compiler_error"],
		"did not contain a valid flow_spec")
}

func TestRunDispatchesServiceNode(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"message": "inventory synced"}`)
	}))
	defer srv.Close()

	p := plan.New("plan-service", "service call", "")
	p.AddNode(&plan.Node{
		ID:   "sync",
		Type: plan.NodeService,
		Payload: plan.Payload{Request: &plan.HTTPRequest{
			Method: http.MethodPost,
			URL:    srv.URL,
			Body:   `{"warehouse": "main"}`,
		}},
	})

	st := store.New(t.TempDir())
	path := filepath.Join(st.Dir(), "service.yaml")
	_, err := st.Create(path, p)
	require.NoError(t, err)

	o := New(st, adapter.NewMock(), Options{}, nil)
	snap, err := o.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	node := snap.Plan.NodeByID("sync")
	assert.Equal(t, plan.StatusSucceeded, node.Status)
	assert.Equal(t, "inventory synced", node.Result.Outputs["message"])
}
