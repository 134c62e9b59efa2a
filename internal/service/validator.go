package service

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"fairaudit/internal/groundtruth"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

// ValidatorService scores detector output against consolidated ground
// truth and aggregates the per-dataset metrics into the corpus report.
type ValidatorService struct {
	matcher *MatcherService
}

func NewValidatorService(matcher *MatcherService) *ValidatorService {
	return &ValidatorService{matcher: matcher}
}

// ScoreDataset computes detection counts and metrics for one dataset.
// Set arithmetic over column names; duplicates collapse. All three
// metrics use the 0/0 -> 0 convention so empty-vs-empty scores 0, never
// NaN.
func (s *ValidatorService) ScoreDataset(datasetID string, detected, truth []string) models.ScoreRecord {
	detectedSet := toSet(detected)
	truthSet := toSet(truth)

	record := models.ScoreRecord{DatasetID: datasetID}
	for col := range detectedSet {
		if truthSet[col] {
			record.TP++
		} else {
			record.FP++
		}
	}
	for col := range truthSet {
		if !detectedSet[col] {
			record.FN++
		}
	}

	record.Precision = safeRatio(record.TP, record.TP+record.FP)
	record.Recall = safeRatio(record.TP, record.TP+record.FN)
	if record.Precision+record.Recall > 0 {
		record.F1 = 2 * record.Precision * record.Recall / (record.Precision + record.Recall)
	}
	return record
}

// ScoreCorpus runs detection and scoring over every annotated dataset in
// the corpus, one goroutine per dataset. A dataset that fails detection or
// lacks ground truth is excluded with its reason; it never aborts the run.
func (s *ValidatorService) ScoreCorpus(corpus *state.Corpus, store *groundtruth.Store) (*models.ScoreSummary, []models.ScoreRecord, error) {
	ids := corpus.IDs()

	type outcome struct {
		record   models.ScoreRecord
		excluded *models.ExcludedDataset
	}
	outcomes := make([]outcome, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			truth, ok := store.Consolidated(id)
			if !ok {
				outcomes[i] = outcome{excluded: &models.ExcludedDataset{
					DatasetID: id,
					Reason:    "no ground truth annotations",
				}}
				return
			}

			df := corpus.Get(id)
			detection, err := s.matcher.DetectFrame(df)
			if err != nil {
				outcomes[i] = outcome{excluded: &models.ExcludedDataset{
					DatasetID: id,
					Reason:    err.Error(),
				}}
				return
			}

			outcomes[i] = outcome{
				record: s.ScoreDataset(id, detection.Columns(), truth.SensitiveColumns),
			}
		}(i, id)
	}
	wg.Wait()

	records := []models.ScoreRecord{}
	excluded := []models.ExcludedDataset{}
	for _, o := range outcomes {
		if o.excluded != nil {
			excluded = append(excluded, *o.excluded)
			continue
		}
		records = append(records, o.record)
	}

	summary, err := s.Summarize(records)
	if err != nil {
		return nil, records, err
	}
	summary.ExcludedDatasets = excluded
	return summary, records, nil
}

// Summarize macro-averages per-dataset records into the corpus report.
func (s *ValidatorService) Summarize(records []models.ScoreRecord) (*models.ScoreSummary, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 scored datasets, got %d", ErrInsufficientSample, len(records))
	}

	precisions := make([]float64, len(records))
	recalls := make([]float64, len(records))
	f1s := make([]float64, len(records))
	for i, r := range records {
		precisions[i] = r.Precision
		recalls[i] = r.Recall
		f1s[i] = r.F1
	}

	precision := Aggregate(precisions)
	recall := Aggregate(recalls)
	f1 := Aggregate(f1s)

	return &models.ScoreSummary{
		NDatasets:        len(records),
		Precision:        precision,
		Recall:           recall,
		F1Mean:           f1.Mean,
		F1Std:            f1.Std,
		F1CI95:           f1.CI95,
		ExcludedDatasets: []models.ExcludedDataset{},
	}, nil
}

// CheckClaim evaluates an aggregate against a claimed minimum. Marginal
// flags a passing mean whose CI lower bound still dips below the target.
func (s *ValidatorService) CheckClaim(metric string, target float64, agg models.AggregateMetrics) models.ClaimCheck {
	validated := agg.Mean >= target
	return models.ClaimCheck{
		Metric:    metric,
		Target:    target,
		Mean:      agg.Mean,
		CILow:     agg.CI95[0],
		Validated: validated,
		Marginal:  validated && agg.CI95[0] < target,
	}
}

// Aggregate computes mean, sample standard deviation, and the 95%
// t-distribution confidence interval over values. Requires len >= 2; the
// interval is not clipped to [0,1] so boundary effects stay visible.
func Aggregate(values []float64) models.AggregateMetrics {
	n := len(values)
	mean := stat.Mean(values, nil)
	std := stat.StdDev(values, nil)

	agg := models.AggregateMetrics{Mean: mean, Std: std, N: n}

	if std == 0 || math.IsNaN(std) {
		agg.Std = 0
		agg.CI95 = [2]float64{mean, mean}
		return agg
	}

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	margin := t.Quantile(0.975) * std / math.Sqrt(float64(n))
	agg.CI95 = [2]float64{mean - margin, mean + margin}
	return agg
}

func toSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
