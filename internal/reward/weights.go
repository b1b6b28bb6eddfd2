package reward

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"go.uber.org/zap"
)

// Weights holds the weight of every weighted preference.
type Weights struct {
	ShorterSequences   int `koanf:"shorter_sequences"`
	LongerSequences    int `koanf:"longer_sequences"`
	RepairHigh         int `koanf:"repair_high"`
	RepairLow          int `koanf:"repair_low"`
	PunishDeletion     int `koanf:"punish_deletion"`
	PunishModification int `koanf:"punish_modification"`
	RewardModification int `koanf:"reward_modification"`
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{
		ShorterSequences:   500,
		LongerSequences:    500,
		RepairHigh:         150,
		RepairLow:          150,
		PunishDeletion:     150,
		PunishModification: 100,
		RewardModification: 100,
	}
}

// Dependencies are the collaborators some preferences need.
type Dependencies struct {
	Extractor     repair.ErrorExtractor
	Metric        repair.MaintainabilityMetric
	MetricTimeout time.Duration
	Logger        *zap.Logger
}

// BuildPreferences instantiates the preferences for options.
func BuildPreferences(options []Option, w Weights, deps Dependencies) ([]Preference, error) {
	seen := make(map[Option]bool, len(options))
	prefs := make([]Preference, 0, len(options))

	for _, opt := range options {
		if seen[opt] {
			return nil, fmt.Errorf("duplicate preference %s", opt)
		}
		seen[opt] = true

		switch opt {
		case ShorterSequences:
			prefs = append(prefs, NewShorterSequencesPreference(w.ShorterSequences))
		case LongerSequences:
			prefs = append(prefs, NewLongerSequencesPreference(w.LongerSequences))
		case RepairHighInHierarchy:
			prefs = append(prefs, NewPreferShallowPreference(w.RepairHigh))
		case RepairLowInHierarchy:
			prefs = append(prefs, NewPreferDeepPreference(w.RepairLow))
		case PunishDeletion:
			prefs = append(prefs, NewPunishDeletionPreference(w.PunishDeletion))
		case PunishModification, RewardModification:
			if deps.Extractor == nil {
				return nil, fmt.Errorf("preference %s requires an error extractor", opt)
			}
			if opt == PunishModification {
				prefs = append(prefs, NewPunishModificationPreference(w.PunishModification, deps.Extractor))
			} else {
				prefs = append(prefs, NewRewardModificationPreference(w.RewardModification, deps.Extractor))
			}
		case PreferMaintainability:
			if deps.Metric == nil {
				return nil, fmt.Errorf("preference %s requires a maintainability metric", opt)
			}
			prefs = append(prefs, NewMaintainabilityPreference(deps.Metric, deps.MetricTimeout, deps.Logger))
		default:
			return nil, fmt.Errorf("unknown preference %s", opt)
		}
	}
	return prefs, nil
}
