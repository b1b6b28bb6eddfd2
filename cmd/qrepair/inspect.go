package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/spf13/cobra"
)

// inspectAll prints every entry instead of the optimum per error
var inspectAll bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "print every entry, not only the optimal action per error")
}

// inspectCmd prints the learned optimum per error code
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show the optimal action per error code",
	Long: `Load a knowledge file and print, for every error code, the context and
action with the highest score.

The file defaults to knowledge.path from the configuration.

Examples:
  qrepair inspect knowledge.xml
  qrepair inspect --all knowledge.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	kb, err := loadKnowledge(cmd.Context(), knowledgePath(args))
	if err != nil {
		return err
	}
	if inspectAll {
		return writeEntries(cmd.OutOrStdout(), kb)
	}
	return writeOptimal(cmd.OutOrStdout(), kb)
}

// writeOptimal prints one row per error code in table order.
func writeOptimal(w io.Writer, kb *knowledge.KnowledgeBase) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ERROR\tCONTEXT\tACTION\tSCORE\tTAGS")
	for _, code := range kb.ErrorCodes() {
		loc, ok := kb.OptimalActionLocation(code)
		if !ok {
			continue
		}
		entry := kb.Get(code, loc.Context, loc.Action)
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", code, loc.Context, loc.Action, formatScore(entry.Score()), formatTags(entry))
	}
	return tw.Flush()
}

// writeEntries prints every stored entry in table order.
func writeEntries(w io.Writer, kb *knowledge.KnowledgeBase) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ERROR\tCONTEXT\tACTION\tSCORE\tTAGS")
	kb.Range(func(code knowledge.ErrorCode, contextID knowledge.ContextID, action knowledge.ActionID, entry knowledge.ScoreEntry) bool {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", code, contextID, action, formatScore(entry.Score()), formatTags(entry))
		return true
	})
	return tw.Flush()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTags(entry knowledge.ScoreEntry) string {
	ids := entry.TagIDs()
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		v, _ := entry.Tag(id)
		parts = append(parts, fmt.Sprintf("%d=%s", id, formatScore(v)))
	}
	return strings.Join(parts, ",")
}
