package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avaricia/agentflow/internal/workflow"
)

var (
	workflowPrompt string
	workflowCycles int
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run an adaptive multi-cycle workflow from a base prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		if workflowPrompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		if workflowCycles < 1 {
			return fmt.Errorf("--cycles must be at least 1")
		}

		o, st, err := newOrchestrator(true)
		if err != nil {
			return err
		}

		history, err := workflow.New(o, st, logger).Run(cmd.Context(), workflowPrompt, workflowCycles)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "workflow run %s: %d cycles\n", history.RunID, len(history.Cycles))
		for _, cycle := range history.Cycles {
			score := "-"
			if cycle.Score != nil {
				score = fmt.Sprintf("%.2f", *cycle.Score)
			}
			fmt.Fprintf(out, "  cycle %d: score=%s nodes=%d branches=%d loops=%d plan=%s\n",
				cycle.Index, score, cycle.Stats.NodeCount, cycle.Stats.BranchCount,
				cycle.Stats.LoopCount, cycle.PlanID)
			if cycle.Error != "" {
				fmt.Fprintf(out, "    error: %s\n", cycle.Error)
			}
		}
		return nil
	},
}

func init() {
	workflowCmd.Flags().StringVar(&workflowPrompt, "prompt", "", "base prompt issued every cycle")
	workflowCmd.Flags().IntVar(&workflowCycles, "cycles", 3, "number of plan/execute/evaluate cycles")
	rootCmd.AddCommand(workflowCmd)
}
