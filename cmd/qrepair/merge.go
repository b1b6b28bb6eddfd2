package main

import (
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/fyrsmithlabs/qrepair/internal/reward"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mergeTags are the preference tags blended into the knowledge file
var mergeTags []int

func init() {
	mergeCmd.Flags().IntSliceVar(&mergeTags, "tags", nil, "preference tag ids to blend (default: preferences.active, else 7)")
}

// mergeCmd blends a preference table into a knowledge file
var mergeCmd = &cobra.Command{
	Use:   "merge <file> <preference-file>",
	Short: "Blend preference scores into a knowledge file",
	Long: `Blend the tag values recorded in a preference file into a knowledge file
and save the result in place.

Only entries present in both files change. For each listed tag found on the
preference entry, its value is added to the score and accumulated into the
same tag of the knowledge entry. Without --tags the configured active
preferences are blended, or the maintainability tag when none are active.

Examples:
  qrepair merge knowledge.xml preferences.xml
  qrepair merge knowledge.xml preferences.xml --tags 0,7`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tags, err := parseTags(defaultTags(mergeTags))
	if err != nil {
		return err
	}

	kb, err := loadKnowledge(ctx, args[0])
	if err != nil {
		return err
	}
	preferred, err := loadKnowledge(ctx, args[1])
	if err != nil {
		return err
	}

	blended := kb.InfluenceWeightsByPreferredScores(preferred, tags)
	if err := kb.Save(args[0]); err != nil {
		return err
	}

	logging.FromContext(ctx).Info(ctx, "knowledge merged",
		zap.String("path", args[0]),
		zap.String("preferences", args[1]),
		zap.Int("entries", blended))
	fmt.Fprintf(cmd.OutOrStdout(), "blended %d entries into %s\n", blended, args[0])
	return nil
}

// defaultTags falls back to the configured active preferences, then to
// the maintainability tag.
func defaultTags(ids []int) []int {
	if len(ids) > 0 {
		return ids
	}
	if cfg != nil && len(cfg.Preferences.Active) > 0 {
		return cfg.Preferences.Active
	}
	return []int{int(reward.PreferMaintainability)}
}

func parseTags(ids []int) ([]knowledge.TagID, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	tags := make([]knowledge.TagID, 0, len(ids))
	for _, id := range ids {
		if !reward.Option(id).Valid() {
			return nil, fmt.Errorf("unknown preference tag %d", id)
		}
		tags = append(tags, reward.Option(id).Tag())
	}
	return tags, nil
}
