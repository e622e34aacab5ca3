package cmd

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/avaricia/agentflow/internal/server"
	"github.com/avaricia/agentflow/internal/store"
)

var viewAddr string

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Serve a read-only HTTP view over the plan artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.New(settings.ArtifactDir)
		srv := server.New(st, viewAddr, logger)
		err := srv.ListenAndServe(cmd.Context())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	viewCmd.Flags().StringVar(&viewAddr, "addr", "127.0.0.1:8787", "listen address")
	rootCmd.AddCommand(viewCmd)
}
