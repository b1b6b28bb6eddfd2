package reward

import (
	"context"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// DeletionPreference subtracts the full weight for deleting actions and
// grants a tenth of it otherwise.
type DeletionPreference struct {
	basePreference
}

var _ ActionPreference = (*DeletionPreference)(nil)

// NewPunishDeletionPreference creates a DeletionPreference.
func NewPunishDeletionPreference(weight int) *DeletionPreference {
	return &DeletionPreference{basePreference{weight: weight, option: PunishDeletion}}
}

// RewardActionForError implements ActionPreference.
func (p *DeletionPreference) RewardActionForError(_ context.Context, _ repair.Model, _ repair.Error, action repair.Action) (float64, error) {
	if repair.IsDeletion(action) {
		return float64(-p.weight), nil
	}
	return float64(p.weight / 10), nil
}

// InitialScore is the starting score for a newly discovered action.
func (p *DeletionPreference) InitialScore(action repair.Action) float64 {
	if repair.IsDeletion(action) {
		return -float64(p.weight) / 100
	}
	return 0
}
