package main

import (
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resetValue is the score every entry is reset to
var resetValue float64

func init() {
	resetCmd.Flags().Float64Var(&resetValue, "value", 0, "score to assign to every entry")
}

// resetCmd resets every score in a knowledge file
var resetCmd = &cobra.Command{
	Use:   "reset [file]",
	Short: "Set every score to a value",
	Long: `Set every score in a knowledge file to the same value and clear all tags.
The error, context and action structure is kept.

Examples:
  qrepair reset knowledge.xml
  qrepair reset knowledge.xml --value -5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := knowledgePath(args)

	kb, err := loadKnowledge(ctx, path)
	if err != nil {
		return err
	}
	kb.SetAllValuesTo(resetValue)
	if err := kb.Save(path); err != nil {
		return err
	}

	stats := kb.Stats()
	logging.FromContext(ctx).Info(ctx, "knowledge reset",
		zap.String("path", path),
		zap.Float64("value", resetValue),
		zap.Int("actions", stats.Actions))
	fmt.Fprintf(cmd.OutOrStdout(), "reset %d entries in %s to %g\n", stats.Actions, path, resetValue)
	return nil
}
