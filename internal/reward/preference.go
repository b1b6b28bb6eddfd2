package reward

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// Option identifies a preference. Its value is also the tag id its
// contributions are attributed to.
type Option int

const (
	ShorterSequences      Option = 0
	LongerSequences       Option = 1
	RepairHighInHierarchy Option = 2
	RepairLowInHierarchy  Option = 3
	PunishDeletion        Option = 4
	PunishModification    Option = 5
	RewardModification    Option = 6
	PreferMaintainability Option = 7
)

var optionNames = map[Option]string{
	ShorterSequences:      "shorter_sequences",
	LongerSequences:       "longer_sequences",
	RepairHighInHierarchy: "repair_high_in_hierarchy",
	RepairLowInHierarchy:  "repair_low_in_hierarchy",
	PunishDeletion:        "punish_deletion",
	PunishModification:    "punish_modification",
	RewardModification:    "reward_modification",
	PreferMaintainability: "prefer_maintainability",
}

// AllOptions lists every known option in id order.
func AllOptions() []Option {
	return []Option{
		ShorterSequences, LongerSequences,
		RepairHighInHierarchy, RepairLowInHierarchy,
		PunishDeletion, PunishModification, RewardModification,
		PreferMaintainability,
	}
}

// Valid reports whether o is a known option.
func (o Option) Valid() bool {
	_, ok := optionNames[o]
	return ok
}

// Tag returns the knowledge tag id for o.
func (o Option) Tag() knowledge.TagID {
	return knowledge.TagID(o)
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("option(%d)", int(o))
}

// shapesActions reports whether o is one of the per-action preferences
// whose absence triggers the baseline reward.
func (o Option) shapesActions() bool {
	switch o {
	case RepairHighInHierarchy, RepairLowInHierarchy, PunishDeletion, PunishModification, RewardModification:
		return true
	}
	return false
}

// Preference is the common part of every reward policy.
type Preference interface {
	Option() Option
	Weight() int
}

// ActionPreference rewards a single applied action.
type ActionPreference interface {
	Preference
	RewardActionForError(ctx context.Context, model repair.Model, err repair.Error, action repair.Action) (float64, error)
}

// PreparingPreference needs to measure the model before an action is
// applied.
type PreparingPreference interface {
	Preference
	PrepareAction(ctx context.Context, model repair.Model) error
}

// IntroducedErrorPreference adjusts the reward when an action introduces an
// error code that was not present in the original model.
type IntroducedErrorPreference interface {
	Preference
	RewardForIntroducedError() float64
}

// SequencePreference picks one sequence from a batch of episodes to
// receive a bonus.
type SequencePreference interface {
	Preference
	Select(sequences []*repair.Sequence) *repair.Sequence
}

// SolutionPreference scores a finished solution. ok is false when the
// solution cannot be scored.
type SolutionPreference interface {
	Preference
	RewardPerStep(ctx context.Context, solution *repair.Solution) (reward float64, ok bool, err error)
}

type basePreference struct {
	weight int
	option Option
}

func (p basePreference) Option() Option { return p.option }
func (p basePreference) Weight() int    { return p.weight }

// twoThirds returns w*2/3 computed multiply-first.
func twoThirds(w int) int {
	return w * 2 / 3
}
