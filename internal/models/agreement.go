package models

import (
	"encoding/json"
	"math"
)

// KappaValue is a float64 that marshals NaN as the string "NaN". JSON has
// no NaN literal, and a degenerate kappa must reach the report as-is
// instead of being coerced to a number.
type KappaValue float64

func (v KappaValue) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(v)) {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(float64(v))
}

func (v *KappaValue) UnmarshalJSON(data []byte) error {
	if string(data) == `"NaN"` {
		*v = KappaValue(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = KappaValue(f)
	return nil
}

// PairCounts is the 2x2 contingency table of two annotators' binary
// judgments over (dataset, column) pairs.
type PairCounts struct {
	BothYes int `json:"both_yes"`
	OnlyA   int `json:"only_a"`
	OnlyB   int `json:"only_b"`
	BothNo  int `json:"both_no"`
}

// Total returns the number of judged pairs.
func (c PairCounts) Total() int {
	return c.BothYes + c.OnlyA + c.OnlyB + c.BothNo
}

// CategoryKappa is Cohen's kappa for one protected category's assignments.
// NItems counts the pairs where at least one annotator assigned the
// category.
type CategoryKappa struct {
	Category string     `json:"category"`
	Kappa    KappaValue `json:"kappa"`
	NItems   int        `json:"n_items"`
}

// Disagreement lists the columns of one dataset flagged by exactly one
// annotator.
type Disagreement struct {
	DatasetID  string   `json:"dataset"`
	Annotator1 []string `json:"annotator1"`
	Annotator2 []string `json:"annotator2"`
}

// AgreementRecord is the inter-rater agreement report for a corpus.
type AgreementRecord struct {
	Kappa          KappaValue      `json:"mean_agreement"`
	CI95           [2]KappaValue   `json:"ci_95"`
	ObservedPo     float64         `json:"observed_agreement"`
	ExpectedPe     float64         `json:"expected_agreement"`
	NItems         int             `json:"n_items"`
	Interpretation string          `json:"interpretation"`
	PerCategory    []CategoryKappa `json:"per_category,omitempty"`
	Disagreements  []Disagreement  `json:"disagreements,omitempty"`
}
