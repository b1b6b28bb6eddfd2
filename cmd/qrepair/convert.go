package main

import (
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// convertCmd re-encodes a knowledge file
var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a knowledge file between XML and YAML",
	Long: `Re-encode a knowledge file. Both formats are chosen by file extension
(.xml, .yaml, .yml). Malformed nodes in the input are skipped with a warning.

Examples:
  qrepair convert knowledge.xml knowledge.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	in, out := args[0], args[1]

	if _, err := knowledge.FormatFromPath(out); err != nil {
		return err
	}
	kb, err := loadKnowledge(ctx, in)
	if err != nil {
		return err
	}
	if err := kb.Save(out); err != nil {
		return err
	}

	stats := kb.Stats()
	logging.FromContext(ctx).Info(ctx, "knowledge converted",
		zap.String("from", in),
		zap.String("to", out),
		zap.Int("errors", stats.Errors))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d errors to %s\n", stats.Errors, out)
	return nil
}
