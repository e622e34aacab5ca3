package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/avaricia/agentflow/internal/plan"
	"github.com/avaricia/agentflow/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [plan.yaml]",
	Short: "Show a plan's node statuses, or list all artifacts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.New(settings.ArtifactDir)

		if len(args) == 0 {
			return listArtifacts(cmd, st)
		}

		snap, err := st.Load(args[0])
		if err != nil {
			return err
		}
		printSummary(cmd, snap.Plan, snap.Lock.Version)

		out := cmd.OutOrStdout()
		for _, node := range snap.Plan.Nodes {
			marker := " "
			if node.Status == plan.StatusFailed {
				marker = "!"
			}
			fmt.Fprintf(out, "%s %-12s %-24s %s\n", marker, node.Status, node.ID, node.Summary)
			if node.Result != nil && node.Result.Error != nil {
				fmt.Fprintf(out, "    %s: %s\n", node.Result.Error.Kind, node.Result.Error.Message)
			}
		}
		return nil
	},
}

func listArtifacts(cmd *cobra.Command, st *store.Store) error {
	paths, err := st.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "no plan artifacts found")
		return nil
	}
	for _, path := range paths {
		snap, err := st.Load(path)
		if err != nil {
			fmt.Fprintf(out, "%-40s (unreadable: %v)\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%-40s %-10s v%d %s\n", path, snap.Plan.Status, snap.Lock.Version, snap.Plan.Name)
	}
	return nil
}

func printSummary(cmd *cobra.Command, p *plan.Plan, version int) {
	counts := p.Counts()
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "plan %s (%s) v%d\n", p.ID, p.Status, version)
	for _, status := range statuses {
		fmt.Fprintf(out, "  %s: %d\n", status, counts[plan.Status(status)])
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
