package repair

import (
	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/google/uuid"
)

// AppliedAction is one step of a repair episode.
type AppliedAction struct {
	Error   knowledge.ErrorCode
	Action  knowledge.ActionID
	Context knowledge.ContextID
}

// NewAppliedAction records action applied to err.
func NewAppliedAction(err Error, action Action) AppliedAction {
	return AppliedAction{
		Error:   err.Code(),
		Action:  action.Code(),
		Context: ContextIDOf(action),
	}
}

// Sequence is the ordered list of steps of one episode together with the
// running sum of their rewards.
type Sequence struct {
	ID     string
	Steps  []AppliedAction
	Weight float64
}

// NewSequence starts an empty sequence with a fresh id.
func NewSequence() *Sequence {
	return &Sequence{ID: uuid.New().String()}
}

// Append adds a step and its reward.
func (s *Sequence) Append(step AppliedAction, reward float64) {
	s.Steps = append(s.Steps, step)
	s.Weight += reward
}

// AddWeight adjusts the cumulative weight without adding a step.
func (s *Sequence) AddWeight(delta float64) {
	s.Weight += delta
}

// Len returns the number of steps.
func (s *Sequence) Len() int {
	return len(s.Steps)
}

// Solution is an episode that left the model without errors.
type Solution struct {
	Sequence *Sequence
	Model    Model
}

// NewSolution pairs a finished sequence with the repaired model.
func NewSolution(seq *Sequence, model Model) *Solution {
	return &Solution{Sequence: seq, Model: model}
}
