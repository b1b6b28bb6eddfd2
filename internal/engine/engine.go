package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/qrepair/internal/config"
	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"github.com/fyrsmithlabs/qrepair/internal/reward"
	"github.com/fyrsmithlabs/qrepair/internal/trainer"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Collaborators are the model-specific operations an Engine needs.
type Collaborators struct {
	trainer.Collaborators

	// Metric scores finished solutions. Required when the maintainability
	// preference is active.
	Metric repair.MaintainabilityMetric
}

// Engine owns the learned table for one knowledge file.
type Engine struct {
	path    string
	kb      *knowledge.KnowledgeBase
	calc    *reward.Calculator
	trainer *trainer.Trainer
	logger  *logging.Logger
}

type options struct {
	logger *logging.Logger
	meter  metric.Meter
	kb     *knowledge.KnowledgeBase
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter sets the meter for reward instruments. Defaults to the global
// meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithKnowledge trains kb instead of loading the configured knowledge file.
// Train still saves to the configured path.
func WithKnowledge(kb *knowledge.KnowledgeBase) Option {
	return func(o *options) {
		o.kb = kb
	}
}

// New validates cfg and builds the engine. The knowledge file is loaded
// from cfg.Knowledge.Path; a missing file starts an empty table.
func New(cfg *config.Config, collab Collaborators, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	zl := o.logger.Underlying()

	kb := o.kb
	if kb == nil {
		var (
			report knowledge.LoadReport
			err    error
		)
		kb, report, err = knowledge.Open(cfg.Knowledge.Path, knowledge.WithLogger(zl))
		if err != nil {
			return nil, err
		}
		if report.Skipped > 0 {
			zl.Warn("knowledge file contained malformed nodes",
				zap.String("path", cfg.Knowledge.Path),
				zap.Int("skipped", report.Skipped))
		}
	}

	prefs, err := reward.BuildPreferences(cfg.Options(), cfg.Preferences.Weights, reward.Dependencies{
		Extractor:     collab.Errors,
		Metric:        collab.Metric,
		MetricTimeout: cfg.MetricTimeout(),
		Logger:        zl,
	})
	if err != nil {
		return nil, fmt.Errorf("building preferences: %w", err)
	}

	calc, err := reward.NewCalculator(kb, prefs,
		reward.WithLogger(zl),
		reward.WithMetrics(reward.NewMetrics(o.meter, zl)))
	if err != nil {
		return nil, fmt.Errorf("creating reward calculator: %w", err)
	}

	tr, err := trainer.New(calc, collab.Collaborators, cfg.Training, trainer.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("creating trainer: %w", err)
	}

	return &Engine{
		path:    cfg.Knowledge.Path,
		kb:      kb,
		calc:    calc,
		trainer: tr,
		logger:  o.logger,
	}, nil
}

// Knowledge returns the learned table.
func (e *Engine) Knowledge() *knowledge.KnowledgeBase { return e.kb }

// Calculator returns the reward calculator.
func (e *Engine) Calculator() *reward.Calculator { return e.calc }

// Train runs one batch of episodes on model and saves the updated table.
func (e *Engine) Train(ctx context.Context, model repair.Model) (*trainer.Result, error) {
	res, err := e.trainer.Run(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := e.kb.Save(e.path); err != nil {
		return nil, fmt.Errorf("saving knowledge: %w", err)
	}

	fields := []zap.Field{
		zap.String("path", e.path),
		zap.Int("solutions", len(res.Solutions)),
	}
	if res.Best != nil {
		fields = append(fields, zap.Float64("best_weight", res.Best.Sequence.Weight))
	}
	e.logger.Info(logging.WithRunID(ctx, res.RunID), "knowledge trained", fields...)
	return res, nil
}
