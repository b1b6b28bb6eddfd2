package reward

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"go.uber.org/zap"
)

const (
	// BaselineReward is granted when no depth, deletion or modification
	// preference is active, so actions are never left unscored.
	BaselineReward = 30

	// SequenceBonus is added to the score of every step of a rewarded
	// sequence.
	SequenceBonus = 300

	// SequenceTagBonus is added to the rewarded tag of every step of a
	// rewarded sequence.
	SequenceTagBonus = 500

	// NoTag disables tag attribution in RewardSequence.
	NoTag knowledge.TagID = -1
)

// ErrNilKnowledge is returned when a Calculator is created without a table.
var ErrNilKnowledge = errors.New("knowledge base cannot be nil")

// Calculator applies the active preferences to repair outcomes and writes
// the results into the knowledge base.
//
// A Calculator is not safe for concurrent use: preparing preferences keep
// per-action state between PrepareAction and RewardAction.
type Calculator struct {
	kb               *knowledge.KnowledgeBase
	preferenceScores *knowledge.KnowledgeBase
	preferences      []Preference
	logger           *zap.Logger
	metrics          *Metrics
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithPreferenceScores sets the table solution-level rewards are written to
// before being blended into the main table. Defaults to an empty table.
func WithPreferenceScores(kb *knowledge.KnowledgeBase) CalculatorOption {
	return func(c *Calculator) {
		if kb != nil {
			c.preferenceScores = kb
		}
	}
}

// WithLogger sets the calculator logger.
func WithLogger(logger *zap.Logger) CalculatorOption {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the reward instruments.
func WithMetrics(m *Metrics) CalculatorOption {
	return func(c *Calculator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCalculator creates a Calculator over kb with the given preferences.
func NewCalculator(kb *knowledge.KnowledgeBase, preferences []Preference, opts ...CalculatorOption) (*Calculator, error) {
	if kb == nil {
		return nil, ErrNilKnowledge
	}

	seen := make(map[Option]bool, len(preferences))
	for _, p := range preferences {
		if p == nil {
			return nil, fmt.Errorf("preference cannot be nil")
		}
		if seen[p.Option()] {
			return nil, fmt.Errorf("duplicate preference %s", p.Option())
		}
		seen[p.Option()] = true
	}

	c := &Calculator{
		kb:          kb,
		preferences: slices.Clone(preferences),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.preferenceScores == nil {
		c.preferenceScores = knowledge.New(knowledge.WithLogger(c.logger))
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil, c.logger)
	}
	return c, nil
}

// KnowledgeBase returns the main table.
func (c *Calculator) KnowledgeBase() *knowledge.KnowledgeBase {
	return c.kb
}

// PreferenceScores returns the table holding solution-level rewards.
func (c *Calculator) PreferenceScores() *knowledge.KnowledgeBase {
	return c.preferenceScores
}

// Options returns the active preference options in configuration order.
func (c *Calculator) Options() []Option {
	out := make([]Option, 0, len(c.preferences))
	for _, p := range c.preferences {
		out = append(out, p.Option())
	}
	return out
}

// IsActive reports whether option is active.
func (c *Calculator) IsActive(option Option) bool {
	return slices.ContainsFunc(c.preferences, func(p Preference) bool {
		return p.Option() == option
	})
}

// InitialScore is the score a newly discovered action starts with.
func (c *Calculator) InitialScore(action repair.Action) float64 {
	for _, p := range c.preferences {
		if d, ok := p.(*DeletionPreference); ok {
			return d.InitialScore(action)
		}
	}
	return knowledge.DefaultScore
}

// PrepareAction lets preferences measure the model before an action is
// applied. Call it immediately before applying the action.
func (c *Calculator) PrepareAction(ctx context.Context, model repair.Model) error {
	for _, p := range c.preferences {
		if pp, ok := p.(PreparingPreference); ok {
			if err := pp.PrepareAction(ctx, model); err != nil {
				return fmt.Errorf("preparing %s: %w", p.Option(), err)
			}
		}
	}
	return nil
}

type contribution struct {
	tag   knowledge.TagID
	value float64
}

// RewardAction scores action applied to err on model, which must already
// reflect the action. Each preference's contribution is accumulated into
// its tag and the total is added to the stored score. It returns the total.
func (c *Calculator) RewardAction(ctx context.Context, model repair.Model, err repair.Error, action repair.Action) (float64, error) {
	step := repair.NewAppliedAction(err, action)

	var (
		total         float64
		shaped        bool
		contributions []contribution
	)
	for _, p := range c.preferences {
		if p.Option().shapesActions() {
			shaped = true
		}
		ap, ok := p.(ActionPreference)
		if !ok {
			continue
		}
		value, rerr := ap.RewardActionForError(ctx, model, err, action)
		if rerr != nil {
			return 0, fmt.Errorf("rewarding %s: %w", p.Option(), rerr)
		}
		total += value
		contributions = append(contributions, contribution{tag: p.Option().Tag(), value: value})
	}
	if !shaped {
		total += BaselineReward
	}

	c.apply(step, total, contributions)
	c.metrics.recordAction(ctx, total)
	return total, nil
}

// AdjustForIntroducedErrors applies the modification preferences' bonus or
// penalty when next carries an error code absent from originalCodes. It
// returns the adjustment, zero when nothing changed.
func (c *Calculator) AdjustForIntroducedErrors(step repair.AppliedAction, originalCodes []knowledge.ErrorCode, next repair.Error) float64 {
	if next == nil || slices.Contains(originalCodes, next.Code()) {
		return 0
	}

	var (
		delta         float64
		contributions []contribution
	)
	for _, p := range c.preferences {
		if ip, ok := p.(IntroducedErrorPreference); ok {
			value := ip.RewardForIntroducedError()
			delta += value
			contributions = append(contributions, contribution{tag: p.Option().Tag(), value: value})
		}
	}
	if len(contributions) == 0 {
		return 0
	}

	c.apply(step, delta, contributions)
	return delta
}

func (c *Calculator) apply(step repair.AppliedAction, delta float64, contributions []contribution) {
	c.kb.Update(step.Error, step.Context, step.Action, func(e knowledge.ScoreEntry) knowledge.ScoreEntry {
		e = e.WithScoreDelta(delta)
		for _, ct := range contributions {
			e = e.WithTagIncrement(ct.tag, ct.value)
		}
		return e
	})
}

// RewardSequence adds SequenceBonus to the score of every step of seq. When
// tag is not NoTag, SequenceTagBonus is also accumulated into that tag per
// step occurrence.
func (c *Calculator) RewardSequence(seq *repair.Sequence, tag knowledge.TagID) {
	if seq == nil {
		return
	}
	for _, step := range seq.Steps {
		c.kb.Update(step.Error, step.Context, step.Action, func(e knowledge.ScoreEntry) knowledge.ScoreEntry {
			e = e.WithScoreDelta(SequenceBonus)
			if tag > NoTag {
				e = e.WithTagIncrement(tag, SequenceTagBonus)
			}
			return e
		})
	}
}

// RewardBasedOnSequenceLength lets every active sequence preference pick a
// sequence from the batch. A picked sequence gains the preference weight
// and is rewarded with the preference tag. It returns the picked sequences
// in preference order; a sequence picked by both preferences appears twice.
func (c *Calculator) RewardBasedOnSequenceLength(ctx context.Context, sequences []*repair.Sequence) []*repair.Sequence {
	var rewarded []*repair.Sequence
	for _, p := range c.preferences {
		sp, ok := p.(SequencePreference)
		if !ok {
			continue
		}
		chosen := sp.Select(sequences)
		if chosen == nil {
			c.logger.Debug("no sequence qualified for bonus",
				zap.Stringer("preference", p.Option()),
				zap.Int("sequences", len(sequences)))
			continue
		}

		chosen.AddWeight(float64(sp.Weight()))
		c.RewardSequence(chosen, p.Option().Tag())
		c.metrics.recordSequenceBonus(ctx, p.Option())
		rewarded = append(rewarded, chosen)

		c.logger.Debug("sequence bonus granted",
			zap.Stringer("preference", p.Option()),
			zap.String("sequence_id", chosen.ID),
			zap.Int("steps", chosen.Len()),
			zap.Float64("weight", chosen.Weight))
	}
	return rewarded
}

// RewardSolution scores a finished solution with the solution-level
// preferences. Per-step rewards are written to the preference table, not
// the main table; use BlendPreferenceScores to fold them in. An
// inapplicable metric or a metric timeout yields no reward. It returns the
// per-step reward multiplied by the number of steps, summed over
// preferences.
func (c *Calculator) RewardSolution(ctx context.Context, solution *repair.Solution) (float64, error) {
	if solution == nil || solution.Sequence == nil {
		return 0, nil
	}

	var total float64
	for _, p := range c.preferences {
		sp, ok := p.(SolutionPreference)
		if !ok {
			continue
		}

		start := time.Now()
		perStep, applicable, err := sp.RewardPerStep(ctx, solution)
		timedOut := errors.Is(err, ErrMetricTimeout)
		c.metrics.recordMeasurement(ctx, time.Since(start), timedOut)
		if timedOut {
			c.logger.Warn("solution metric timed out",
				zap.Stringer("preference", p.Option()),
				zap.String("sequence_id", solution.Sequence.ID),
				zap.Error(err))
			continue
		}
		if err != nil {
			return total, fmt.Errorf("rewarding solution with %s: %w", p.Option(), err)
		}
		if !applicable {
			continue
		}

		tag := p.Option().Tag()
		for _, step := range solution.Sequence.Steps {
			c.preferenceScores.Update(step.Error, step.Context, step.Action, func(e knowledge.ScoreEntry) knowledge.ScoreEntry {
				return e.WithScore(perStep).WithTagIncrement(tag, perStep)
			})
		}
		total += perStep * float64(solution.Sequence.Len())
	}
	return total, nil
}

// BlendPreferenceScores folds the preference table into the main table for
// the active solution-level tags and then resets the preference table. It
// returns the number of main-table entries changed.
func (c *Calculator) BlendPreferenceScores() int {
	var tags []knowledge.TagID
	for _, p := range c.preferences {
		if _, ok := p.(SolutionPreference); ok {
			tags = append(tags, p.Option().Tag())
		}
	}
	if len(tags) == 0 {
		return 0
	}

	changed := c.kb.InfluenceWeightsByPreferredScores(c.preferenceScores, tags)
	c.preferenceScores.SetAllValuesTo(knowledge.DefaultScore)
	return changed
}
