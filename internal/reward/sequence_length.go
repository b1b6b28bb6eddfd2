package reward

import (
	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// SequenceLengthPreference picks the shortest (or longest) sequence with a
// strictly positive cumulative weight. Among sequences of equal length the
// one with the higher weight wins; remaining ties keep the first seen.
type SequenceLengthPreference struct {
	basePreference
}

var _ SequencePreference = (*SequenceLengthPreference)(nil)

// NewShorterSequencesPreference favours the shortest successful sequence.
func NewShorterSequencesPreference(weight int) *SequenceLengthPreference {
	return &SequenceLengthPreference{basePreference{weight: weight, option: ShorterSequences}}
}

// NewLongerSequencesPreference favours the longest successful sequence.
func NewLongerSequencesPreference(weight int) *SequenceLengthPreference {
	return &SequenceLengthPreference{basePreference{weight: weight, option: LongerSequences}}
}

// Select implements SequencePreference. It returns nil when no sequence has
// a positive weight.
func (p *SequenceLengthPreference) Select(sequences []*repair.Sequence) *repair.Sequence {
	var best *repair.Sequence
	for _, seq := range sequences {
		if seq == nil || seq.Weight <= 0 {
			continue
		}
		if best == nil || p.better(seq, best) {
			best = seq
		}
	}
	return best
}

func (p *SequenceLengthPreference) better(candidate, best *repair.Sequence) bool {
	if candidate.Len() == best.Len() {
		return candidate.Weight > best.Weight
	}
	if p.option == LongerSequences {
		return candidate.Len() > best.Len()
	}
	return candidate.Len() < best.Len()
}
