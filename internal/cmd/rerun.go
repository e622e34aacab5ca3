package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rerunNode string

var rerunCmd = &cobra.Command{
	Use:   "rerun <plan.yaml>",
	Short: "Re-attempt a failed or skipped node, preserving its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := newOrchestrator(false)
		if err != nil {
			return err
		}

		snap, err := o.RerunNode(cmd.Context(), args[0], rerunNode)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "node %s rerun, plan status: %s\n", rerunNode, snap.Plan.Status)
		printSummary(cmd, snap.Plan, snap.Lock.Version)
		return nil
	},
}

func init() {
	rerunCmd.Flags().StringVar(&rerunNode, "node", "", "id of the node to rerun")
	rerunCmd.MarkFlagRequired("node")
	rootCmd.AddCommand(rerunCmd)
}
