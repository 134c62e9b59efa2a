package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairaudit/internal/groundtruth"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

func testValidator() *ValidatorService {
	return NewValidatorService(testMatcher(0.75))
}

func TestScoreDataset(t *testing.T) {
	v := testValidator()

	record := v.ScoreDataset("d1",
		[]string{"age", "gender", "zip"},
		[]string{"age", "gender"})

	assert.Equal(t, 2, record.TP)
	assert.Equal(t, 1, record.FP)
	assert.Equal(t, 0, record.FN)
	assert.InDelta(t, 0.667, record.Precision, 0.001)
	assert.Equal(t, 1.0, record.Recall)
	assert.InDelta(t, 0.8, record.F1, 1e-9)
}

func TestScoreDatasetExactMatch(t *testing.T) {
	v := testValidator()

	record := v.ScoreDataset("d1", []string{"race", "sex"}, []string{"sex", "race"})
	assert.Equal(t, 1.0, record.Precision)
	assert.Equal(t, 1.0, record.Recall)
	assert.Equal(t, 1.0, record.F1)
}

func TestScoreDatasetBothEmpty(t *testing.T) {
	v := testValidator()

	record := v.ScoreDataset("d1", nil, nil)
	assert.Equal(t, 0.0, record.Precision)
	assert.Equal(t, 0.0, record.Recall)
	assert.Equal(t, 0.0, record.F1)
}

func TestScoreDatasetMissedAll(t *testing.T) {
	v := testValidator()

	record := v.ScoreDataset("d1", nil, []string{"age"})
	assert.Equal(t, 0, record.TP)
	assert.Equal(t, 1, record.FN)
	assert.Equal(t, 0.0, record.Recall)
	assert.Equal(t, 0.0, record.F1)
}

func TestScoreDatasetCountIdentity(t *testing.T) {
	v := testValidator()

	cases := []struct {
		detected, truth []string
	}{
		{[]string{"a", "b"}, []string{"b", "c"}},
		{[]string{"a"}, nil},
		{nil, []string{"x", "y", "z"}},
		{[]string{"a", "a", "b"}, []string{"b"}},
	}
	for _, tc := range cases {
		record := v.ScoreDataset("d1", tc.detected, tc.truth)

		union := map[string]bool{}
		for _, c := range tc.detected {
			union[c] = true
		}
		for _, c := range tc.truth {
			union[c] = true
		}
		assert.Equal(t, len(union), record.TP+record.FP+record.FN)
	}
}

func TestAggregateSmallSample(t *testing.T) {
	agg := Aggregate([]float64{0.90, 0.95, 1.00})

	assert.InDelta(t, 0.95, agg.Mean, 1e-9)
	assert.InDelta(t, 0.05, agg.Std, 1e-9)
	assert.Equal(t, 3, agg.N)
	// t(0.975, df=2) = 4.302653, margin = 4.302653 * 0.05 / sqrt(3).
	// The interval stays unclipped, so the upper bound exceeds 1.
	assert.InDelta(t, 0.8258, agg.CI95[0], 0.0005)
	assert.InDelta(t, 1.0742, agg.CI95[1], 0.0005)
}

func TestAggregateZeroVariance(t *testing.T) {
	agg := Aggregate([]float64{0.8, 0.8, 0.8})

	assert.Equal(t, 0.8, agg.Mean)
	assert.Equal(t, 0.0, agg.Std)
	assert.Equal(t, [2]float64{0.8, 0.8}, agg.CI95)
}

func TestSummarizeRequiresTwoDatasets(t *testing.T) {
	v := testValidator()

	_, err := v.Summarize([]models.ScoreRecord{{DatasetID: "d1", F1: 1}})
	assert.ErrorIs(t, err, ErrInsufficientSample)
}

func TestCheckClaim(t *testing.T) {
	v := testValidator()

	check := v.CheckClaim("f1", 0.85, models.AggregateMetrics{
		Mean: 0.95, CI95: [2]float64{0.83, 1.07}, N: 3,
	})
	assert.True(t, check.Validated)
	assert.True(t, check.Marginal, "CI lower bound below target must be flagged")

	check = v.CheckClaim("f1", 0.80, models.AggregateMetrics{
		Mean: 0.95, CI95: [2]float64{0.83, 1.07}, N: 3,
	})
	assert.True(t, check.Validated)
	assert.False(t, check.Marginal)

	check = v.CheckClaim("f1", 0.99, models.AggregateMetrics{
		Mean: 0.95, CI95: [2]float64{0.83, 1.07}, N: 3,
	})
	assert.False(t, check.Validated)
}

func corpusWithFrames(frames ...*state.DataFrame) *state.Corpus {
	corpus := state.NewCorpus()
	for _, df := range frames {
		corpus.Put(df)
	}
	return corpus
}

func annotate(store *groundtruth.Store, datasetID string, columns ...string) {
	store.Add(models.Annotation{
		DatasetID:        datasetID,
		AnnotatorID:      "annotator_1",
		SensitiveColumns: columns,
		NSensitive:       len(columns),
	})
}

func TestScoreCorpus(t *testing.T) {
	v := testValidator()

	corpus := corpusWithFrames(
		&state.DataFrame{ID: "d1", Headers: []string{"age", "gender", "income"}},
		&state.DataFrame{ID: "d2", Headers: []string{"race", "salary", "zip"}},
		&state.DataFrame{ID: "d3", Headers: []string{"score", "total"}},
	)

	store := groundtruth.NewStore()
	annotate(store, "d1", "age", "gender")
	annotate(store, "d2", "race")

	summary, records, err := v.ScoreCorpus(corpus, store)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.NDatasets)
	require.Len(t, records, 2)
	assert.Equal(t, "d1", records[0].DatasetID)
	assert.Equal(t, 1.0, records[0].F1)
	assert.Equal(t, 1.0, records[1].F1)
	assert.Equal(t, 1.0, summary.F1Mean)

	// d3 has no annotations and must be excluded, not fatal.
	require.Len(t, summary.ExcludedDatasets, 1)
	assert.Equal(t, "d3", summary.ExcludedDatasets[0].DatasetID)
}

func TestScoreCorpusInsufficientAnnotations(t *testing.T) {
	v := testValidator()

	corpus := corpusWithFrames(
		&state.DataFrame{ID: "d1", Headers: []string{"age"}},
	)
	store := groundtruth.NewStore()
	annotate(store, "d1", "age")

	_, records, err := v.ScoreCorpus(corpus, store)
	assert.ErrorIs(t, err, ErrInsufficientSample)
	assert.Len(t, records, 1)
}
