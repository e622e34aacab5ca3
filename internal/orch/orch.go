// Package orch drives a plan to completion: it pulls the ready frontier
// from the scheduler, runs one node at a time through the executor, and
// persists the document after every transition so a crash can resume
// from the last write.
package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/avaricia/agentflow/internal/adapter"
	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/eval"
	"github.com/avaricia/agentflow/internal/exec"
	"github.com/avaricia/agentflow/internal/flowspec"
	"github.com/avaricia/agentflow/internal/log"
	"github.com/avaricia/agentflow/internal/plan"
	"github.com/avaricia/agentflow/internal/sched"
	"github.com/avaricia/agentflow/internal/store"
)

// ArtifactBaseName is the stem plan artifacts are written under.
const ArtifactBaseName = "agentflow"

// Options configures a run.
type Options struct {
	// Timeout bounds each node execution. Zero disables the bound.
	Timeout time.Duration

	// SelfEvaluate, when set, scores every agent node's reply after the
	// run and records the verdict on the node.
	SelfEvaluate bool

	// MaxLockRetries caps how many consecutive lock conflicts are
	// reconciled before the run gives up. Zero means a small default.
	MaxLockRetries int
}

// Orchestrator executes plans against one backend.
type Orchestrator struct {
	store   *store.Store
	backend adapter.Adapter
	opts    Options
	logger  *log.Logger
}

// New creates an orchestrator.
func New(st *store.Store, backend adapter.Adapter, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if opts.MaxLockRetries <= 0 {
		opts.MaxLockRetries = 5
	}
	return &Orchestrator{store: st, backend: backend, opts: opts, logger: logger}
}

// Run loads the plan at path, executes it to a terminal state, and
// returns the final snapshot. The artifact on disk reflects every node
// transition; a concurrent writer triggers a reload and revalidation
// rather than a lost update.
func (o *Orchestrator) Run(ctx context.Context, path string) (*store.Snapshot, error) {
	snap, err := o.store.Load(path)
	if err != nil {
		return nil, err
	}
	return snap, o.drive(ctx, snap)
}

// drive advances the loaded plan until no ready work remains.
func (o *Orchestrator) drive(ctx context.Context, snap *store.Snapshot) error {
	p := snap.Plan
	requeueInterrupted(p)

	if p.Status == plan.PlanDraft || p.Status == plan.PlanFailed {
		p.Status = plan.PlanRunning
	}
	if err := o.save(snap); err != nil {
		return err
	}

	executor := exec.New(exec.DefaultCapabilities(o.backend), o.opts.Timeout, o.logger)
	conflicts := 0

	for {
		if err := ctx.Err(); err != nil {
			p.Status = plan.PlanCancelled
			_ = o.save(snap)
			return err
		}
		if p.Status == plan.PlanPaused || p.Status == plan.PlanCancelled {
			o.logger.Info("run halted", "plan_id", p.ID, "status", p.Status)
			return nil
		}

		frontier := sched.Frontier(p)
		if len(frontier) == 0 {
			break
		}

		nodeID := frontier[0]
		attemptID, beginErr := executor.Begin(p, nodeID)
		if beginErr != nil {
			return beginErr
		}
		// Persist the in_progress transition before the backend call so a
		// crash mid-attempt leaves the started attempt on disk.
		reloaded, err := o.saveOrReconcile(snap, &conflicts)
		if err != nil {
			return err
		}
		if reloaded {
			p = snap.Plan
			continue
		}

		_ = executor.Finish(ctx, p, nodeID, attemptID)

		if blocked := sched.PropagateBlocked(p); len(blocked) > 0 {
			o.logger.Warn("dependents blocked",
				"plan_id", p.ID, "failed_node", nodeID, "blocked", blocked)
		}
		p.Status = p.DeriveStatus()

		reloaded, err = o.saveOrReconcile(snap, &conflicts)
		if err != nil {
			return err
		}
		if reloaded {
			p = snap.Plan
		}
	}

	p.Status = p.DeriveStatus()
	if err := o.save(snap); err != nil {
		return err
	}
	o.logger.Info("run finished", "plan_id", p.ID, "status", p.Status, "version", snap.Lock.Version)
	return nil
}

// saveOrReconcile persists the snapshot, reconciling a lock conflict by
// reloading from disk. Reports whether the snapshot was reloaded, in
// which case the caller must re-derive its frontier.
func (o *Orchestrator) saveOrReconcile(snap *store.Snapshot, conflicts *int) (bool, error) {
	err := o.save(snap)
	if err == nil {
		*conflicts = 0
		return false, nil
	}
	if !errors.IsLockConflict(err) {
		return false, err
	}
	*conflicts++
	if *conflicts > o.opts.MaxLockRetries {
		return false, err
	}
	o.logger.Warn("concurrent artifact update, reconciling",
		"plan_id", snap.Plan.ID, "path", snap.Path)
	if err := o.store.Reload(snap); err != nil {
		return false, err
	}
	requeueInterrupted(snap.Plan)
	return true, nil
}

// requeueInterrupted returns in_progress nodes to pending. An artifact
// can carry an in_progress node when a prior run persisted the start of
// an attempt and then crashed, or when a reload discarded an in-flight
// attempt; either way no executor holds the node anymore.
func requeueInterrupted(p *plan.Plan) {
	for _, node := range p.Nodes {
		if node.Status == plan.StatusInProgress {
			node.Status = plan.StatusPending
			node.Timeline.StartedAt = nil
		}
	}
}

// RerunNode resets a failed or skipped node to pending, unblocks its
// dependents, and drives the plan again.
func (o *Orchestrator) RerunNode(ctx context.Context, path, nodeID string) (*store.Snapshot, error) {
	snap, err := o.store.Load(path)
	if err != nil {
		return nil, err
	}
	p := snap.Plan

	node := p.NodeByID(nodeID)
	if node == nil {
		return nil, errors.NewNodeNotRunnableError(nodeID, "absent")
	}
	if node.Status != plan.StatusFailed && node.Status != plan.StatusSkipped {
		return nil, errors.NewNodeNotRunnableError(nodeID, string(node.Status)).
			WithSuggestion("Only failed or skipped nodes can be rerun")
	}

	node.Status = plan.StatusPending
	node.Result = nil
	node.Timeline.StartedAt = nil
	node.Timeline.EndedAt = nil
	node.Timeline.DurationSeconds = 0

	unblocked := sched.Unblock(p, nodeID)
	o.logger.Info("node queued for rerun",
		"plan_id", p.ID, "node_id", nodeID, "unblocked", unblocked)

	return snap, o.drive(ctx, snap)
}

// PromptRun is the outcome of a single-prompt execution.
type PromptRun struct {
	Snapshot *store.Snapshot
	Message  string
	Verdict  *eval.Verdict
	Spec     *flowspec.Spec
	Stats    flowspec.Stats
}

// RunPrompt wraps an ad-hoc prompt in a fresh single-node plan, executes
// it, injects any sub-graph the reply describes, and optionally scores
// the reply. The artifact lands under a collision-free name in the
// store's directory.
func (o *Orchestrator) RunPrompt(ctx context.Context, prompt string) (*PromptRun, error) {
	base := fmt.Sprintf("%s-%s", ArtifactBaseName, time.Now().UTC().Format("20060102-150405"))
	path, planID := o.store.ResolvePath(base)

	p := plan.NewPromptPlan(planID, prompt)
	snap, err := o.store.Create(path, p)
	if err != nil {
		return nil, err
	}

	if err := o.drive(ctx, snap); err != nil {
		return nil, err
	}
	p = snap.Plan

	run := &PromptRun{Snapshot: snap}
	node := p.NodeByID(plan.PromptNodeID)
	if node == nil || node.Result == nil {
		return run, nil
	}
	if message, ok := node.Result.Outputs["message"].(string); ok {
		run.Message = message
	}

	spec := flowspec.Extract(run.Message)
	specSource := "assistant"
	if spec == nil && node.Status == plan.StatusSucceeded {
		spec = o.compileSpec(ctx, prompt, node)
		specSource = "agentflowlanguage_compiler"
	}
	if spec != nil {
		added := flowspec.Inject(p, plan.PromptNodeID, spec)
		run.Spec = spec
		run.Stats = spec.Stats()
		node.Result.Outputs["flow_spec_source"] = specSource
		o.logger.Info("sub-graph injected",
			"plan_id", p.ID, "source", specSource,
			"nodes", run.Stats.NodeCount, "added", len(added))
	}

	if o.opts.SelfEvaluate && node.Status == plan.StatusSucceeded {
		run.Verdict = eval.Evaluate(ctx, o.backend, prompt, run.Message)
		node.Result.Outputs["evaluation"] = run.Verdict.Outputs()
		if run.Verdict.Err != "" {
			o.logger.Warn("self-evaluation degraded", "plan_id", p.ID, "error", run.Verdict.Err)
		}
	}

	if err := o.save(snap); err != nil {
		return nil, err
	}
	return run, nil
}

// compileSpec asks the backend to compile the original prompt into a
// sub-graph when the reply itself carried no fenced flow_spec. The
// compiler exchange is recorded on the node either way.
func (o *Orchestrator) compileSpec(ctx context.Context, prompt string, node *plan.Node) *flowspec.Spec {
	compilation, err := o.backend.Run(ctx,
		plan.Payload{Prompt: flowspec.CompilerPrompt(prompt)},
		adapter.Options{Timeout: o.opts.Timeout})
	if err != nil {
		o.logger.WithError(err).Warn("flow compilation failed")
		node.Result.Outputs["flow_spec_compiler_error"] = "flow compilation failed: " + err.Error()
		return nil
	}

	node.Result.Outputs["flow_spec_compiler"] = map[string]any{
		"message": compilation.Message,
		"usage":   compilation.Usage,
	}
	spec := flowspec.Extract(compilation.Message)
	if spec == nil {
		node.Result.Outputs["flow_spec_compiler_error"] = "compiler reply did not contain a valid flow_spec"
	}
	return spec
}

func (o *Orchestrator) save(snap *store.Snapshot) error {
	if err := o.store.Save(snap); err != nil {
		return fmt.Errorf("persisting %s: %w", snap.Path, err)
	}
	return nil
}
