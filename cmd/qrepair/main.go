// Package main implements the qrepair CLI for inspecting and maintaining
// knowledge files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/qrepair/internal/config"
	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configPath is the YAML config file
	configPath string
	// version information
	version = "dev"

	cfg    *config.Config
	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qrepair",
	Short: "Maintain learned repair knowledge",
	Long: `qrepair manages the knowledge files written by the repair learner.

A knowledge file maps error codes to contexts, actions and scores. Files
ending in .xml use the element/attribute layout; .yaml and .yml files hold
the same tree as YAML.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML)")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(convertCmd)
}

// setup loads configuration and builds the logger. Each invocation gets its
// own run id for log correlation.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err = logging.NewLogger(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithRunID(ctx, uuid.New().String())
	cmd.SetContext(logging.WithLogger(ctx, logger))
	return nil
}

// knowledgePath returns args[0] or the configured knowledge path.
func knowledgePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg != nil {
		return cfg.Knowledge.Path
	}
	return config.Default().Knowledge.Path
}

// loadKnowledge reads path strictly: a missing file is an error.
func loadKnowledge(ctx context.Context, path string) (*knowledge.KnowledgeBase, error) {
	l := logging.FromContext(ctx)
	kb := knowledge.New(knowledge.WithLogger(l.Underlying()))
	report, err := kb.Load(path)
	if err != nil {
		return nil, err
	}
	if report.Skipped > 0 {
		l.Warn(ctx, "knowledge file contained malformed nodes",
			zap.String("path", path), zap.Int("skipped", report.Skipped))
	}
	return kb, nil
}
