package reward

import (
	"context"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// DepthPreference rewards actions by the hierarchy level they target. The
// shallow variant (RepairHighInHierarchy) favours level 1; the deep variant
// (RepairLowInHierarchy) mirrors it and favours levels below 2.
type DepthPreference struct {
	basePreference
}

var _ ActionPreference = (*DepthPreference)(nil)

// NewPreferShallowPreference favours repairs high in the hierarchy.
func NewPreferShallowPreference(weight int) *DepthPreference {
	return &DepthPreference{basePreference{weight: weight, option: RepairHighInHierarchy}}
}

// NewPreferDeepPreference favours repairs low in the hierarchy.
func NewPreferDeepPreference(weight int) *DepthPreference {
	return &DepthPreference{basePreference{weight: weight, option: RepairLowInHierarchy}}
}

// RewardActionForError implements ActionPreference.
func (p *DepthPreference) RewardActionForError(_ context.Context, _ repair.Model, _ repair.Error, action repair.Action) (float64, error) {
	w := p.weight
	favoured, penalty := w, -(w * 74 / 100)
	var reward int

	switch level := action.Hierarchy(); {
	case level == 1:
		if p.option == RepairHighInHierarchy {
			reward = favoured
		} else {
			reward = penalty
		}
	case level == 2:
		reward = twoThirds(w)
	case level > 2:
		if p.option == RepairHighInHierarchy {
			reward = penalty
		} else {
			reward = favoured
		}
	}
	return float64(reward), nil
}
