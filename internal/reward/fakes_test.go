package reward

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// countingExtractor reports the next queued error count on every call.
type countingExtractor struct {
	counts []int
	calls  int
	err    error
}

func (e *countingExtractor) ExtractErrors(_ context.Context, _ repair.Model) ([]repair.Error, error) {
	if e.err != nil {
		return nil, e.err
	}
	n := e.counts[e.calls%len(e.counts)]
	e.calls++
	errs := make([]repair.Error, n)
	for i := range errs {
		errs[i] = repair.Code(i + 1)
	}
	return errs, nil
}

type fixedMetric struct {
	value float64
	err   error
	calls atomic.Int32
}

func (m *fixedMetric) Calculate(_ context.Context, _ *repair.Solution) (float64, error) {
	m.calls.Add(1)
	return m.value, m.err
}

// blockingMetric waits for cancellation.
type blockingMetric struct{}

func (blockingMetric) Calculate(ctx context.Context, _ *repair.Solution) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

var errExtract = errors.New("extract failed")

func shallow(level int) repair.Definition {
	return repair.Definition{ID: 1, Msg: "set name", Level: level, SubLevel: repair.NoSubHierarchy}
}
