// Package workflow drives repeated plan/execute/evaluate cycles, feeding
// each cycle's evaluation verdict and structural statistics into the next
// cycle's prompt as explicit directives.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/avaricia/agentflow/internal/flowspec"
	"github.com/avaricia/agentflow/internal/log"
	"github.com/avaricia/agentflow/internal/orch"
	"github.com/avaricia/agentflow/internal/store"
)

// ScoreThreshold is the evaluation score below which the next cycle gets
// an improvement directive.
const ScoreThreshold = 0.8

// Cycle is one iteration of the adaptive loop. Records are append-only;
// a cycle is written once, after it finishes, and never rewritten.
type Cycle struct {
	Index         int            `yaml:"cycle_index"`
	PromptIssued  string         `yaml:"prompt_issued"`
	Score         *float64       `yaml:"evaluation_score,omitempty"`
	Justification string         `yaml:"evaluation_justification,omitempty"`
	Stats         flowspec.Stats `yaml:"structural_stats"`
	Directives    []string       `yaml:"directives_for_next_cycle,omitempty"`
	PlanID        string         `yaml:"plan_id,omitempty"`
	PlanPath      string         `yaml:"plan_path,omitempty"`
	Error         string         `yaml:"error,omitempty"`
	Timestamp     time.Time      `yaml:"timestamp"`
}

// History is the per-run document holding the cycle sequence. It lives
// next to the plan artifacts, one file per workflow run.
type History struct {
	RunID      string    `yaml:"run_id"`
	BasePrompt string    `yaml:"base_prompt"`
	StartedAt  time.Time `yaml:"started_at"`
	Cycles     []Cycle   `yaml:"cycles"`
}

// Controller owns the cycle sequence for one workflow run. Plans created
// by the cycles are referenced by id and never mutated here; all plan
// mutation stays on the orchestrator's executor/persistence path.
type Controller struct {
	orch   *orch.Orchestrator
	store  *store.Store
	logger *log.Logger
}

// New creates a workflow controller.
func New(o *orch.Orchestrator, st *store.Store, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Controller{orch: o, store: st, logger: logger}
}

// Run executes cycles iterations of the adaptive loop. A failed cycle is
// recorded and the loop moves on; every cycle is an independent plan. The
// returned history matches the document persisted alongside the plans.
func (c *Controller) Run(ctx context.Context, basePrompt string, cycles int) (*History, error) {
	history := &History{
		RunID:      uuid.NewString(),
		BasePrompt: basePrompt,
		StartedAt:  time.Now().UTC(),
	}
	historyPath := filepath.Join(c.store.Dir(),
		fmt.Sprintf("workflow-%s.yaml", history.StartedAt.Format("20060102-150405")))

	var directives []string
	for index := 0; index < cycles; index++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}

		prompt := amendPrompt(basePrompt, directives)
		cycle := Cycle{Index: index, PromptIssued: prompt, Timestamp: time.Now().UTC()}

		c.logger.Info("cycle started",
			"run_id", history.RunID, "cycle", index, "directives", len(directives))

		run, err := c.orch.RunPrompt(ctx, prompt)
		if err != nil {
			cycle.Error = err.Error()
			c.logger.Error("cycle failed", "run_id", history.RunID, "cycle", index, "error", err)
		} else {
			cycle.PlanID = run.Snapshot.Plan.ID
			cycle.PlanPath = run.Snapshot.Path
			cycle.Stats = run.Stats
			if run.Verdict != nil {
				cycle.Score = run.Verdict.Score
				cycle.Justification = run.Verdict.Justification
				if run.Verdict.Err != "" {
					cycle.Error = run.Verdict.Err
				}
			}
		}

		directives = SynthesizeDirectives(&cycle)
		cycle.Directives = directives

		history.Cycles = append(history.Cycles, cycle)
		if err := c.persist(historyPath, history); err != nil {
			return history, err
		}
	}

	c.logger.Info("workflow finished",
		"run_id", history.RunID, "cycles", len(history.Cycles), "path", historyPath)
	return history, nil
}

func (c *Controller) persist(path string, history *History) error {
	data, err := yaml.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding workflow history: %w", err)
	}
	return store.WriteDocument(path, data)
}

// SynthesizeDirectives turns a finished cycle's outcome into instructions
// for the next cycle's prompt.
func SynthesizeDirectives(cycle *Cycle) []string {
	var directives []string

	if cycle.Error != "" {
		directives = append(directives,
			"The previous attempt did not produce a usable result; keep the flow simple and ensure the JSON block is well-formed.")
	}

	if cycle.Score != nil && *cycle.Score < ScoreThreshold {
		directive := fmt.Sprintf(
			"The previous attempt scored %.2f.", *cycle.Score)
		if cycle.Justification != "" {
			directive = fmt.Sprintf(
				"%s The judge said: %q. Address that feedback directly.", directive, cycle.Justification)
		}
		directives = append(directives, directive)
	}

	if cycle.Stats.NodeCount > 0 {
		if cycle.Stats.BranchCount == 0 {
			directives = append(directives,
				"The previous graph lacked a branch node; add at least one decision node with on_true/on_false targets.")
		}
		if cycle.Stats.LoopCount == 0 {
			directives = append(directives,
				"The previous graph had no loop; add a loop construct where repetition makes sense.")
		}
	} else if cycle.Error == "" {
		directives = append(directives,
			"The previous reply contained no flow_spec JSON block; include one inside a ```json fence.")
	}

	return directives
}

func amendPrompt(basePrompt string, directives []string) string {
	if len(directives) == 0 {
		return basePrompt
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nDirectives from the previous cycle:\n")
	for _, directive := range directives {
		b.WriteString("- ")
		b.WriteString(directive)
		b.WriteString("\n")
	}
	return b.String()
}
