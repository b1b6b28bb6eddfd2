package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"go.uber.org/zap"
)

// DefaultMetricTimeout bounds a single maintainability measurement.
const DefaultMetricTimeout = 30 * time.Second

// ErrMetricTimeout is returned when the maintainability metric does not
// finish within its timeout.
var ErrMetricTimeout = errors.New("maintainability metric timed out")

// MaintainabilityPreference rewards every step of a solution with
// 100 minus the solution's maintainability metric.
type MaintainabilityPreference struct {
	basePreference
	metric  repair.MaintainabilityMetric
	timeout time.Duration
	logger  *zap.Logger
}

var _ SolutionPreference = (*MaintainabilityPreference)(nil)

// NewMaintainabilityPreference creates a MaintainabilityPreference. A
// non-positive timeout selects DefaultMetricTimeout.
func NewMaintainabilityPreference(metric repair.MaintainabilityMetric, timeout time.Duration, logger *zap.Logger) *MaintainabilityPreference {
	if timeout <= 0 {
		timeout = DefaultMetricTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintainabilityPreference{
		basePreference: basePreference{weight: -1, option: PreferMaintainability},
		metric:         metric,
		timeout:        timeout,
		logger:         logger,
	}
}

// RewardPerStep implements SolutionPreference.
func (p *MaintainabilityPreference) RewardPerStep(ctx context.Context, solution *repair.Solution) (float64, bool, error) {
	start := time.Now()
	value, err := p.measure(ctx, solution)
	elapsed := time.Since(start)
	if err != nil {
		return 0, false, err
	}

	p.logger.Info("maintainability measured",
		zap.Float64("metric", value),
		zap.Duration("elapsed", elapsed))

	if value <= repair.NotApplicable {
		return 0, false, nil
	}
	return 100 - value, true, nil
}

type metricResult struct {
	value float64
	err   error
}

// measure runs the metric with a deadline. The result channel is buffered
// so a metric that ignores cancellation can still finish and exit.
func (p *MaintainabilityPreference) measure(ctx context.Context, solution *repair.Solution) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan metricResult, 1)
	go func() {
		v, err := p.metric.Calculate(ctx, solution)
		done <- metricResult{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, p.timeoutError(ctx)
			}
			return 0, fmt.Errorf("calculating maintainability: %w", r.err)
		}
		return r.value, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, p.timeoutError(ctx)
		}
		return 0, fmt.Errorf("calculating maintainability: %w", ctx.Err())
	}
}

func (p *MaintainabilityPreference) timeoutError(ctx context.Context) error {
	return fmt.Errorf("%w after %s: %v", ErrMetricTimeout, p.timeout, ctx.Err())
}
