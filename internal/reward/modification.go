package reward

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// ModificationPreference compares the number of errors before and after an
// action. The reward variant favours actions that remove several errors at
// once; the punish variant is its mirror image.
//
// The pre-action count lives only between PrepareAction and the following
// RewardActionForError call.
type ModificationPreference struct {
	basePreference
	extractor repair.ErrorExtractor

	errorsBefore int
	prepared     bool
}

var (
	_ ActionPreference          = (*ModificationPreference)(nil)
	_ PreparingPreference       = (*ModificationPreference)(nil)
	_ IntroducedErrorPreference = (*ModificationPreference)(nil)
)

// NewRewardModificationPreference creates the rewarding variant.
func NewRewardModificationPreference(weight int, extractor repair.ErrorExtractor) *ModificationPreference {
	return &ModificationPreference{
		basePreference: basePreference{weight: weight, option: RewardModification},
		extractor:      extractor,
	}
}

// NewPunishModificationPreference creates the punishing variant.
func NewPunishModificationPreference(weight int, extractor repair.ErrorExtractor) *ModificationPreference {
	return &ModificationPreference{
		basePreference: basePreference{weight: weight, option: PunishModification},
		extractor:      extractor,
	}
}

func (p *ModificationPreference) sign() int {
	if p.option == PunishModification {
		return -1
	}
	return 1
}

// PrepareAction records the error count before the action is applied.
func (p *ModificationPreference) PrepareAction(ctx context.Context, model repair.Model) error {
	errs, err := p.extractor.ExtractErrors(ctx, model)
	if err != nil {
		return fmt.Errorf("counting errors before action: %w", err)
	}
	p.errorsBefore = len(errs)
	p.prepared = true
	return nil
}

// RewardActionForError implements ActionPreference. Without a preceding
// PrepareAction the reward is zero.
func (p *ModificationPreference) RewardActionForError(ctx context.Context, model repair.Model, _ repair.Error, _ repair.Action) (float64, error) {
	if !p.prepared {
		return 0, nil
	}
	p.prepared = false

	errs, err := p.extractor.ExtractErrors(ctx, model)
	if err != nil {
		return 0, fmt.Errorf("counting errors after action: %w", err)
	}

	removed := p.errorsBefore - len(errs)
	switch {
	case removed > 1:
		return float64(p.sign() * twoThirds(p.weight*removed)), nil
	case removed != 0:
		return float64(-p.sign() * p.weight), nil
	default:
		return 0, nil
	}
}

// RewardForIntroducedError implements IntroducedErrorPreference.
func (p *ModificationPreference) RewardForIntroducedError() float64 {
	return float64(p.sign() * twoThirds(p.weight))
}
