// Package cmd wires the CLI surface: plan runs, reruns, adaptive
// workflows, artifact inspection, and the read-only viewer.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/avaricia/agentflow/internal/adapter"
	"github.com/avaricia/agentflow/internal/config"
	"github.com/avaricia/agentflow/internal/log"
	"github.com/avaricia/agentflow/internal/orch"
	"github.com/avaricia/agentflow/internal/store"
)

var (
	settings config.Settings
	logger   *log.Logger

	flagArtifactDir string
	flagAdapter     string
	flagLogLevel    string
	flagLogFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "Plan-based agent task orchestrator",
	Long: `agentflow executes DAG-shaped task plans against pluggable agent
backends. Plans live as YAML artifacts on disk; every node transition is
persisted atomically with optimistic locking, so runs survive crashes and
tolerate concurrent edits. Adaptive workflows run repeated plan cycles,
feeding each cycle's self-evaluation back into the next prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		settings = config.FromEnv()
		if flagArtifactDir != "" {
			settings.ArtifactDir = flagArtifactDir
		}
		if flagAdapter != "" {
			settings.Adapter = flagAdapter
		}
		if flagLogLevel != "" {
			settings.LogLevel = flagLogLevel
		}
		if flagLogFormat != "" {
			settings.LogFormat = flagLogFormat
		}

		cfg := log.DefaultConfig()
		cfg.Level = log.ParseLevel(settings.LogLevel)
		cfg.Format = log.ParseFormat(settings.LogFormat)
		cfg.Output = log.OutputStderr()
		logger = log.New(cfg)
		log.SetDefaultLogger(logger)
	},
}

// ExecuteContext runs the root command with the given context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagArtifactDir, "artifact-dir", "", "directory holding plan artifacts (default $AGENTFLOW_ARTIFACT_DIR or .)")
	rootCmd.PersistentFlags().StringVar(&flagAdapter, "adapter", "", "executor backend: codex, claude, copilot, http, mock")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
}

// newOrchestrator builds the store/backend/orchestrator triple the run
// commands share.
func newOrchestrator(selfEvaluate bool) (*orch.Orchestrator, *store.Store, error) {
	st := store.New(settings.ArtifactDir)
	backend, err := adapter.DefaultRegistry(settings).Resolve(settings.Adapter)
	if err != nil {
		return nil, nil, err
	}
	o := orch.New(st, backend, orch.Options{
		Timeout:      settings.Timeout,
		SelfEvaluate: selfEvaluate,
	}, logger)
	return o, st, nil
}
