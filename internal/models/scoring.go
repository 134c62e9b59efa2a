package models

// ScoreRecord holds detection-vs-truth counts and derived metrics for one
// dataset. Records are write-once: a re-run produces a fresh set.
type ScoreRecord struct {
	DatasetID string  `json:"dataset_id"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// AggregateMetrics is the macro-average of one metric over N datasets.
type AggregateMetrics struct {
	Mean float64    `json:"mean"`
	Std  float64    `json:"std"`
	CI95 [2]float64 `json:"ci_95"`
	N    int        `json:"n"`
}

// ExcludedDataset records a dataset dropped from an aggregate and why.
type ExcludedDataset struct {
	DatasetID string `json:"dataset_id"`
	Reason    string `json:"reason"`
}

// ScoreSummary is the corpus-level validation report consumed by the
// report/plot tooling. Field names are part of the report contract.
type ScoreSummary struct {
	NDatasets        int               `json:"n_datasets"`
	Precision        AggregateMetrics  `json:"precision"`
	Recall           AggregateMetrics  `json:"recall"`
	F1Mean           float64           `json:"f1_mean"`
	F1Std            float64           `json:"f1_std"`
	F1CI95           [2]float64        `json:"f1_ci_95"`
	ExcludedDatasets []ExcludedDataset `json:"excluded_datasets"`
}

// ClaimCheck reports whether an aggregate supports a claimed minimum value.
// Validated means the mean clears the target; Marginal flags results whose
// CI lower bound does not, so a bare pass/fail never hides a boundary case.
type ClaimCheck struct {
	Metric    string  `json:"metric"`
	Target    float64 `json:"target"`
	Mean      float64 `json:"mean"`
	CILow     float64 `json:"ci_low"`
	Validated bool    `json:"validated"`
	Marginal  bool    `json:"marginal"`
}
