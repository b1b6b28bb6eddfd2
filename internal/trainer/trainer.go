package trainer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"github.com/fyrsmithlabs/qrepair/internal/reward"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoErrors is returned by Run when the model has nothing to repair.
var ErrNoErrors = errors.New("model has no errors to repair")

// Collaborators are the model-specific operations a Trainer drives.
type Collaborators struct {
	Copier  repair.ModelCopier
	Errors  repair.ErrorExtractor
	Actions repair.ActionExtractor
	Applier repair.Applier
}

func (c Collaborators) validate() error {
	switch {
	case c.Copier == nil:
		return errors.New("model copier is required")
	case c.Errors == nil:
		return errors.New("error extractor is required")
	case c.Actions == nil:
		return errors.New("action extractor is required")
	case c.Applier == nil:
		return errors.New("applier is required")
	}
	return nil
}

// Result summarises a training run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Episodes is the number of episodes executed.
	Episodes int

	// Sequences holds every episode's sequence in execution order.
	Sequences []*repair.Sequence

	// Solutions holds the episodes that removed every error, highest
	// cumulative weight first.
	Solutions []*repair.Solution

	// Best is the first element of Solutions, or nil.
	Best *repair.Solution
}

// Trainer runs repair episodes and rewards their outcomes.
//
// A Trainer is not safe for concurrent use.
type Trainer struct {
	collab Collaborators
	calc   *reward.Calculator
	cfg    Config
	rng    *rand.Rand
	logger *logging.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the trainer logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Trainer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Trainer.
func New(calc *reward.Calculator, collab Collaborators, cfg Config, opts ...Option) (*Trainer, error) {
	if calc == nil {
		return nil, errors.New("reward calculator is required")
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	t := &Trainer{
		collab: collab,
		calc:   calc,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run executes one batch of episodes on copies of model.
func (t *Trainer) Run(ctx context.Context, model repair.Model) (*Result, error) {
	initial, err := t.collab.Errors.ExtractErrors(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("extracting errors: %w", err)
	}
	if len(initial) == 0 {
		return nil, ErrNoErrors
	}

	original := make([]knowledge.ErrorCode, 0, len(initial))
	for _, e := range initial {
		original = append(original, e.Code())
	}

	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = logging.WithRunID(ctx, runID)
	}
	res := &Result{RunID: runID}

	for i := 0; i < t.cfg.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seq, solution, err := t.episode(ctx, model, original)
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", i, err)
		}
		res.Episodes++
		res.Sequences = append(res.Sequences, seq)
		if solution != nil {
			res.Solutions = append(res.Solutions, solution)
		}
	}

	// Only successful sequences compete for the length bonus.
	solved := make([]*repair.Sequence, 0, len(res.Solutions))
	for _, solution := range res.Solutions {
		solved = append(solved, solution.Sequence)
	}
	t.calc.RewardBasedOnSequenceLength(ctx, solved)

	for _, solution := range res.Solutions {
		if _, err := t.calc.RewardSolution(ctx, solution); err != nil {
			return nil, fmt.Errorf("rewarding solution %s: %w", solution.Sequence.ID, err)
		}
	}
	blended := t.calc.BlendPreferenceScores()

	slices.SortStableFunc(res.Solutions, func(a, b *repair.Solution) int {
		return cmp.Compare(b.Sequence.Weight, a.Sequence.Weight)
	})
	if len(res.Solutions) > 0 {
		res.Best = res.Solutions[0]
	}

	t.logger.Info(ctx, "training run finished",
		zap.Int("episodes", res.Episodes),
		zap.Int("solutions", len(res.Solutions)),
		zap.Int("blended", blended))
	return res, nil
}

// episode repairs one copy of model. The returned solution is nil when
// errors remain after the last step.
func (t *Trainer) episode(ctx context.Context, model repair.Model, original []knowledge.ErrorCode) (*repair.Sequence, *repair.Solution, error) {
	m, err := t.collab.Copier.Copy(ctx, model)
	if err != nil {
		return nil, nil, fmt.Errorf("copying model: %w", err)
	}

	seq := repair.NewSequence()
	ctx = logging.WithEpisodeID(ctx, seq.ID)

	errs, err := t.collab.Errors.ExtractErrors(ctx, m)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting errors: %w", err)
	}

	for len(errs) > 0 && seq.Len() < t.cfg.MaxSteps {
		target := errs[0]
		action, err := t.chooseAction(ctx, m, target)
		if err != nil {
			return nil, nil, err
		}
		if action == nil {
			t.logger.Debug(ctx, "no applicable action", zap.Int("error", int(target.Code())))
			break
		}

		if err := t.calc.PrepareAction(ctx, m); err != nil {
			return nil, nil, err
		}
		if err := t.collab.Applier.Apply(ctx, m, target, action); err != nil {
			return nil, nil, fmt.Errorf("applying action %d to error %d: %w", action.Code(), target.Code(), err)
		}
		value, err := t.calc.RewardAction(ctx, m, target, action)
		if err != nil {
			return nil, nil, err
		}

		step := repair.NewAppliedAction(target, action)
		errs, err = t.collab.Errors.ExtractErrors(ctx, m)
		if err != nil {
			return nil, nil, fmt.Errorf("extracting errors: %w", err)
		}
		if len(errs) > 0 {
			value += t.calc.AdjustForIntroducedErrors(step, original, errs[0])
		}
		seq.Append(step, value)

		t.logger.Trace(ctx, "action applied",
			zap.Int("error", int(step.Error)),
			zap.Int("context", int(step.Context)),
			zap.Int("action", int(step.Action)),
			zap.Float64("reward", value),
			zap.Int("remaining", len(errs)))
	}

	solved := len(errs) == 0
	t.logger.Debug(ctx, "episode finished",
		zap.Int("steps", seq.Len()),
		zap.Float64("weight", seq.Weight),
		zap.Bool("solved", solved))

	if !solved {
		return seq, nil, nil
	}
	return seq, repair.NewSolution(seq, m), nil
}

// chooseAction picks an action for target. It returns nil when no action
// applies.
func (t *Trainer) chooseAction(ctx context.Context, m repair.Model, target repair.Error) (repair.Action, error) {
	candidates, err := t.collab.Actions.ExtractActions(ctx, m, target)
	if err != nil {
		return nil, fmt.Errorf("extracting actions for error %d: %w", target.Code(), err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	kb := t.calc.KnowledgeBase()
	code := target.Code()
	byLocation := make(map[knowledge.Location]repair.Action, len(candidates))
	for _, a := range candidates {
		loc := knowledge.Location{Context: repair.ContextIDOf(a), Action: a.Code()}
		byLocation[loc] = a
		if !kb.ContainsKey(code, loc.Context, loc.Action) {
			kb.Set(code, loc.Context, loc.Action, knowledge.NewScoreEntry(t.calc.InitialScore(a)))
		}
	}

	if t.rng.Float64() < t.cfg.Epsilon {
		loc, _ := kb.RandomActionLocation(code)
		if a, ok := byLocation[loc]; ok {
			return a, nil
		}
		return candidates[t.rng.IntN(len(candidates))], nil
	}

	if loc, ok := kb.OptimalActionLocation(code); ok {
		if a, ok := byLocation[loc]; ok {
			return a, nil
		}
	}
	return bestCandidate(kb, code, candidates), nil
}

// bestCandidate returns the highest scoring candidate, keeping the first on
// ties.
func bestCandidate(kb *knowledge.KnowledgeBase, code knowledge.ErrorCode, candidates []repair.Action) repair.Action {
	best := candidates[0]
	bestScore := kb.Get(code, repair.ContextIDOf(best), best.Code()).Score()
	for _, a := range candidates[1:] {
		if s := kb.Get(code, repair.ContextIDOf(a), a.Code()).Score(); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}
