package reward

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/fyrsmithlabs/qrepair/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newCalculator(t *testing.T, prefs ...Preference) *Calculator {
	t.Helper()
	c, err := NewCalculator(knowledge.New(), prefs)
	require.NoError(t, err)
	return c
}

func TestNewCalculator_Validation(t *testing.T) {
	_, err := NewCalculator(nil, nil)
	assert.ErrorIs(t, err, ErrNilKnowledge)

	_, err = NewCalculator(knowledge.New(), []Preference{NewPunishDeletionPreference(1), NewPunishDeletionPreference(2)})
	assert.ErrorContains(t, err, "duplicate preference punish_deletion")

	_, err = NewCalculator(knowledge.New(), []Preference{nil})
	assert.Error(t, err)
}

func TestCalculator_Options(t *testing.T) {
	c := newCalculator(t, NewPreferDeepPreference(1), NewShorterSequencesPreference(1))

	assert.Equal(t, []Option{RepairLowInHierarchy, ShorterSequences}, c.Options())
	assert.True(t, c.IsActive(ShorterSequences))
	assert.False(t, c.IsActive(PunishDeletion))
}

func TestCalculator_BaselineReward(t *testing.T) {
	c := newCalculator(t, NewShorterSequencesPreference(500))
	action := shallow(1)

	got, err := c.RewardAction(context.Background(), nil, repair.Code(3), action)

	require.NoError(t, err)
	assert.Equal(t, float64(BaselineReward), got)
	entry := c.KnowledgeBase().Get(3, repair.ContextIDOf(action), action.Code())
	assert.Equal(t, float64(BaselineReward), entry.Score())
	assert.Empty(t, entry.Tags())
}

func TestCalculator_DeletionScenario(t *testing.T) {
	c := newCalculator(t, NewPunishDeletionPreference(100))
	deletion := repair.Definition{ID: 4, Msg: "delete element", Deletion: true, Level: 1, SubLevel: repair.NoSubHierarchy}
	rename := repair.Definition{ID: 5, Msg: "rename element", Level: 1, SubLevel: repair.NoSubHierarchy}

	deleted, err := c.RewardAction(context.Background(), nil, repair.Code(1), deletion)
	require.NoError(t, err)
	kept, err := c.RewardAction(context.Background(), nil, repair.Code(1), rename)
	require.NoError(t, err)

	assert.Equal(t, -100.0, deleted)
	assert.Equal(t, 10.0, kept)

	tag, ok := c.KnowledgeBase().Get(1, 1, 4).Tag(PunishDeletion.Tag())
	require.True(t, ok)
	assert.Equal(t, -100.0, tag)
	assert.Equal(t, -1.0, c.InitialScore(deletion))
}

func TestCalculator_TagsAccumulateAcrossCalls(t *testing.T) {
	c := newCalculator(t, NewPreferShallowPreference(150), NewPunishDeletionPreference(100))
	action := shallow(1)

	for i := 0; i < 3; i++ {
		got, err := c.RewardAction(context.Background(), nil, repair.Code(1), action)
		require.NoError(t, err)
		assert.Equal(t, 160.0, got)
	}

	entry := c.KnowledgeBase().Get(1, 1, 1)
	assert.Equal(t, 480.0, entry.Score())
	assert.Equal(t, map[knowledge.TagID]float64{
		RepairHighInHierarchy.Tag(): 450,
		PunishDeletion.Tag():        30,
	}, entry.Tags())
}

func TestCalculator_PrepareAndModification(t *testing.T) {
	extractor := &countingExtractor{counts: []int{4, 1}}
	c := newCalculator(t, NewRewardModificationPreference(100, extractor))
	ctx := context.Background()

	require.NoError(t, c.PrepareAction(ctx, nil))
	got, err := c.RewardAction(ctx, nil, repair.Code(2), shallow(1))

	require.NoError(t, err)
	assert.Equal(t, 200.0, got)
}

func TestCalculator_PrepareError(t *testing.T) {
	c := newCalculator(t, NewPunishModificationPreference(100, &countingExtractor{err: errExtract}))

	err := c.PrepareAction(context.Background(), nil)

	assert.ErrorIs(t, err, errExtract)
	assert.ErrorContains(t, err, "punish_modification")
}

func TestCalculator_AdjustForIntroducedErrors(t *testing.T) {
	c := newCalculator(t, NewRewardModificationPreference(150, nil))
	step := repair.AppliedAction{Error: 1, Context: 1, Action: 1}
	original := []knowledge.ErrorCode{1, 2}

	assert.Zero(t, c.AdjustForIntroducedErrors(step, original, repair.Code(2)))
	assert.Zero(t, c.AdjustForIntroducedErrors(step, original, nil))
	assert.False(t, c.KnowledgeBase().ContainsKey(1, 1, 1))

	delta := c.AdjustForIntroducedErrors(step, original, repair.Code(9))

	assert.Equal(t, 100.0, delta)
	entry := c.KnowledgeBase().Get(1, 1, 1)
	assert.Equal(t, 100.0, entry.Score())
	tag, _ := entry.Tag(RewardModification.Tag())
	assert.Equal(t, 100.0, tag)
}

func TestCalculator_AdjustWithoutModificationPreference(t *testing.T) {
	c := newCalculator(t, NewPunishDeletionPreference(100))

	delta := c.AdjustForIntroducedErrors(repair.AppliedAction{Error: 1, Context: 1, Action: 1}, nil, repair.Code(5))

	assert.Zero(t, delta)
	assert.False(t, c.KnowledgeBase().ContainsError(1))
}

func TestCalculator_RewardSequence(t *testing.T) {
	c := newCalculator(t)
	seq := repair.NewSequence()
	seq.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 1}, 0)
	seq.Append(repair.AppliedAction{Error: 2, Context: 1, Action: 3}, 0)

	c.RewardSequence(seq, ShorterSequences.Tag())
	c.RewardSequence(seq, LongerSequences.Tag())
	c.RewardSequence(seq, NoTag)

	for _, step := range seq.Steps {
		entry := c.KnowledgeBase().Get(step.Error, step.Context, step.Action)
		assert.Equal(t, 900.0, entry.Score())
		assert.Equal(t, map[knowledge.TagID]float64{
			ShorterSequences.Tag(): SequenceTagBonus,
			LongerSequences.Tag():  SequenceTagBonus,
		}, entry.Tags())
	}
	c.RewardSequence(nil, NoTag)
}

func TestCalculator_RewardBasedOnSequenceLength(t *testing.T) {
	c := newCalculator(t, NewShorterSequencesPreference(500), NewLongerSequencesPreference(400))

	short := repair.NewSequence()
	short.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 1}, 10)
	long := repair.NewSequence()
	long.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 2}, 5)
	long.Append(repair.AppliedAction{Error: 2, Context: 2, Action: 3}, 5)
	failed := repair.NewSequence()
	failed.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 9}, -3)

	rewarded := c.RewardBasedOnSequenceLength(context.Background(), []*repair.Sequence{short, long, failed})

	require.Len(t, rewarded, 2)
	assert.Same(t, short, rewarded[0])
	assert.Same(t, long, rewarded[1])
	assert.Equal(t, 510.0, short.Weight)
	assert.Equal(t, 410.0, long.Weight)

	shortTag, _ := c.KnowledgeBase().Get(1, 1, 1).Tag(ShorterSequences.Tag())
	assert.Equal(t, float64(SequenceTagBonus), shortTag)
	assert.False(t, c.KnowledgeBase().Get(1, 1, 2).HasTag(ShorterSequences.Tag()))
	assert.False(t, c.KnowledgeBase().ContainsKey(1, 1, 9))
}

func TestCalculator_RewardBasedOnSequenceLength_NoneQualify(t *testing.T) {
	c := newCalculator(t, NewShorterSequencesPreference(500))
	failed := repair.NewSequence()
	failed.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 9}, 0)

	rewarded := c.RewardBasedOnSequenceLength(context.Background(), []*repair.Sequence{failed})

	assert.Empty(t, rewarded)
	assert.Zero(t, c.KnowledgeBase().Stats().Errors)
}

func solutionWith(steps ...repair.AppliedAction) *repair.Solution {
	seq := repair.NewSequence()
	for _, s := range steps {
		seq.Append(s, 0)
	}
	return repair.NewSolution(seq, nil)
}

func TestCalculator_RewardSolution_MetricNotApplicable(t *testing.T) {
	c := newCalculator(t, NewMaintainabilityPreference(&fixedMetric{value: -1}, time.Second, nil))
	step := repair.AppliedAction{Error: 1, Context: 1, Action: 1}
	c.KnowledgeBase().Set(1, 1, 1, knowledge.NewScoreEntry(12))
	before := c.KnowledgeBase().Get(1, 1, 1)

	got, err := c.RewardSolution(context.Background(), solutionWith(step))
	require.NoError(t, err)
	assert.Zero(t, got)

	assert.Zero(t, c.BlendPreferenceScores())
	assert.True(t, before.Equal(c.KnowledgeBase().Get(1, 1, 1)))
	assert.False(t, c.PreferenceScores().ContainsError(1))
}

func TestCalculator_RewardSolutionAndBlend(t *testing.T) {
	c := newCalculator(t, NewMaintainabilityPreference(&fixedMetric{value: 25}, time.Second, nil))
	first := repair.AppliedAction{Error: 1, Context: 1, Action: 1}
	second := repair.AppliedAction{Error: 2, Context: 3, Action: 4}
	c.KnowledgeBase().Set(1, 1, 1, knowledge.NewScoreEntry(10))

	got, err := c.RewardSolution(context.Background(), solutionWith(first, second))
	require.NoError(t, err)
	assert.Equal(t, 150.0, got)

	pref := c.PreferenceScores().Get(1, 1, 1)
	assert.Equal(t, 75.0, pref.Score())
	assert.Equal(t, 10.0, c.KnowledgeBase().Get(1, 1, 1).Score())

	assert.Equal(t, 1, c.BlendPreferenceScores())

	entry := c.KnowledgeBase().Get(1, 1, 1)
	assert.Equal(t, 85.0, entry.Score())
	tag, ok := entry.Tag(PreferMaintainability.Tag())
	require.True(t, ok)
	assert.Equal(t, 75.0, tag)
	assert.False(t, c.KnowledgeBase().ContainsKey(2, 3, 4))

	reset := c.PreferenceScores().Get(1, 1, 1)
	assert.Zero(t, reset.Score())
	assert.Empty(t, reset.Tags())
}

func TestCalculator_RewardSolution_TimeoutIsLogged(t *testing.T) {
	logger := logging.NewTestLogger()
	c, err := NewCalculator(knowledge.New(),
		[]Preference{NewMaintainabilityPreference(blockingMetric{}, 10*time.Millisecond, nil)},
		WithLogger(logger.Underlying()))
	require.NoError(t, err)

	got, err := c.RewardSolution(context.Background(), solutionWith(repair.AppliedAction{Error: 1, Context: 1, Action: 1}))

	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, 1, logger.FilterMessage("solution metric timed out").Len())
	logger.AssertLogged(t, zap.WarnLevel, "solution metric timed out")
	assert.False(t, c.PreferenceScores().ContainsError(1))
}

func TestCalculator_RewardSolution_MetricError(t *testing.T) {
	c := newCalculator(t, NewMaintainabilityPreference(&fixedMetric{err: errExtract}, time.Second, nil))

	_, err := c.RewardSolution(context.Background(), solutionWith(repair.AppliedAction{Error: 1, Context: 1, Action: 1}))

	assert.ErrorIs(t, err, errExtract)
}

func TestBuildPreferences(t *testing.T) {
	deps := Dependencies{Extractor: &countingExtractor{counts: []int{0}}, Metric: &fixedMetric{}}

	prefs, err := BuildPreferences(AllOptions(), DefaultWeights(), deps)
	require.NoError(t, err)
	require.Len(t, prefs, 8)
	for i, p := range prefs {
		assert.Equal(t, Option(i), p.Option())
	}
	assert.Equal(t, 500, prefs[0].Weight())
	assert.Equal(t, 100, prefs[5].Weight())
}

func TestBuildPreferences_Errors(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		deps    Dependencies
		wantErr string
	}{
		{"duplicate", []Option{PunishDeletion, PunishDeletion}, Dependencies{}, "duplicate preference"},
		{"missing extractor", []Option{RewardModification}, Dependencies{}, "requires an error extractor"},
		{"missing metric", []Option{PreferMaintainability}, Dependencies{}, "requires a maintainability metric"},
		{"unknown", []Option{Option(12)}, Dependencies{}, "unknown preference option(12)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPreferences(tt.options, DefaultWeights(), tt.deps)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCalculator_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewMetrics(mp.Meter(instrumentationName), zap.NewNop())

	c, err := NewCalculator(knowledge.New(),
		[]Preference{NewPunishDeletionPreference(100), NewShorterSequencesPreference(500)},
		WithMetrics(m))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.RewardAction(ctx, nil, repair.Code(1), shallow(1))
	require.NoError(t, err)
	_, err = c.RewardAction(ctx, nil, repair.Code(1), shallow(2))
	require.NoError(t, err)

	seq := repair.NewSequence()
	seq.Append(repair.AppliedAction{Error: 1, Context: 1, Action: 1}, 20)
	c.RewardBasedOnSequenceLength(ctx, []*repair.Sequence{seq})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
			switch metric.Name {
			case "qrepair.reward.actions_total":
				sum, ok := metric.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(2), sum.DataPoints[0].Value)
			case "qrepair.reward.sequence_bonuses_total":
				sum, ok := metric.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				option, _ := sum.DataPoints[0].Attributes.Value("option")
				assert.Equal(t, "shorter_sequences", option.AsString())
			case "qrepair.reward.action":
				hist, ok := metric.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				require.Len(t, hist.DataPoints, 1)
				assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
				assert.Equal(t, 20.0, hist.DataPoints[0].Sum)
			}
		}
	}
	assert.True(t, found["qrepair.reward.actions_total"])
	assert.True(t, found["qrepair.reward.sequence_bonuses_total"])
	assert.True(t, found["qrepair.reward.action"])
}
