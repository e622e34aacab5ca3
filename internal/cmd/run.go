package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avaricia/agentflow/internal/plan"
)

var (
	runPrompt   string
	runEvaluate bool
)

var runCmd = &cobra.Command{
	Use:   "run [plan.yaml]",
	Short: "Execute a plan artifact, or an ad-hoc prompt with --prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (runPrompt == "") {
			return fmt.Errorf("provide either a plan path or --prompt, not both")
		}

		o, _, err := newOrchestrator(runEvaluate)
		if err != nil {
			return err
		}

		if runPrompt != "" {
			run, err := o.RunPrompt(cmd.Context(), runPrompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.Message)
			if run.Verdict != nil && run.Verdict.Score != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nevaluation: %.2f %s\n",
					*run.Verdict.Score, run.Verdict.Justification)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "artifact: %s\n", run.Snapshot.Path)
			return nil
		}

		snap, err := o.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSummary(cmd, snap.Plan, snap.Lock.Version)
		if snap.Plan.Status == plan.PlanFailed {
			return fmt.Errorf("plan %s finished with status failed", snap.Plan.ID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "run a single ad-hoc prompt instead of a plan file")
	runCmd.Flags().BoolVar(&runEvaluate, "evaluate", true, "score agent replies with a self-evaluation pass")
	rootCmd.AddCommand(runCmd)
}
