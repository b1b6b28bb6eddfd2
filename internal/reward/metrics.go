package reward

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/qrepair/internal/reward"

// Metrics holds the reward instruments.
type Metrics struct {
	meter           metric.Meter
	logger          *zap.Logger
	actionReward    metric.Float64Histogram
	rewardedActions metric.Int64Counter
	sequenceBonuses metric.Int64Counter
	metricDuration  metric.Float64Histogram
	metricTimeouts  metric.Int64Counter
}

// NewMetrics creates reward instruments on meter. A nil meter uses the
// global meter provider.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.actionReward, err = m.meter.Float64Histogram(
		"qrepair.reward.action",
		metric.WithDescription("Total reward granted per applied action, summed over active preferences."),
		metric.WithUnit("{reward}"),
		metric.WithExplicitBucketBoundaries(-500, -150, -100, -50, 0, 15, 30, 100, 150, 500),
	)
	if err != nil {
		m.logger.Warn("failed to create action reward histogram", zap.Error(err))
	}

	m.rewardedActions, err = m.meter.Int64Counter(
		"qrepair.reward.actions_total",
		metric.WithDescription("Total applied actions scored by the reward calculator."),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		m.logger.Warn("failed to create rewarded actions counter", zap.Error(err))
	}

	m.sequenceBonuses, err = m.meter.Int64Counter(
		"qrepair.reward.sequence_bonuses_total",
		metric.WithDescription("Total sequence bonuses granted, labeled by preference option."),
		metric.WithUnit("{sequence}"),
	)
	if err != nil {
		m.logger.Warn("failed to create sequence bonus counter", zap.Error(err))
	}

	m.metricDuration, err = m.meter.Float64Histogram(
		"qrepair.reward.maintainability_duration_seconds",
		metric.WithDescription("Time spent computing the maintainability metric per solution."),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.logger.Warn("failed to create metric duration histogram", zap.Error(err))
	}

	m.metricTimeouts, err = m.meter.Int64Counter(
		"qrepair.reward.maintainability_timeouts_total",
		metric.WithDescription("Total maintainability measurements abandoned after their timeout."),
		metric.WithUnit("{measurement}"),
	)
	if err != nil {
		m.logger.Warn("failed to create metric timeout counter", zap.Error(err))
	}
}

func (m *Metrics) recordAction(ctx context.Context, reward float64) {
	if m.actionReward != nil {
		m.actionReward.Record(ctx, reward)
	}
	if m.rewardedActions != nil {
		m.rewardedActions.Add(ctx, 1)
	}
}

func (m *Metrics) recordSequenceBonus(ctx context.Context, option Option) {
	if m.sequenceBonuses != nil {
		m.sequenceBonuses.Add(ctx, 1, metric.WithAttributes(attribute.String("option", option.String())))
	}
}

func (m *Metrics) recordMeasurement(ctx context.Context, d time.Duration, timedOut bool) {
	if m.metricDuration != nil {
		m.metricDuration.Record(ctx, d.Seconds())
	}
	if timedOut && m.metricTimeouts != nil {
		m.metricTimeouts.Add(ctx, 1)
	}
}
