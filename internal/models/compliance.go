package models

// GroupOutcome holds the raw outcome counts for one value of a sensitive
// attribute. Eligible/EligibleFavorable restrict to ground-truth-positive
// members and feed the equal-opportunity rule.
type GroupOutcome struct {
	Size              int `json:"size"`
	Favorable         int `json:"favorable"`
	Eligible          int `json:"eligible"`
	EligibleFavorable int `json:"eligible_favorable"`
}

// SelectionRate returns favorable outcomes over group size.
func (g GroupOutcome) SelectionRate() float64 {
	if g.Size == 0 {
		return 0
	}
	return float64(g.Favorable) / float64(g.Size)
}

// TruePositiveRate returns favorable outcomes among eligible members.
func (g GroupOutcome) TruePositiveRate() float64 {
	if g.Eligible == 0 {
		return 0
	}
	return float64(g.EligibleFavorable) / float64(g.Eligible)
}

// RuleResult is one compliance rule's computed statistic and outcome.
type RuleResult struct {
	Rule      string  `json:"rule"`
	Statistic float64 `json:"statistic"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// ComplianceVerdict is the full rule evaluation for one dataset and one
// detected sensitive attribute. Compliant is the strict conjunction of all
// configured rules.
type ComplianceVerdict struct {
	DatasetID         string             `json:"dataset_id"`
	Attribute         string             `json:"sensitive_attribute"`
	ReferenceGroup    string             `json:"reference_group"`
	SelectionRates    map[string]float64 `json:"selection_rates"`
	ImpactRatios      map[string]float64 `json:"impact_ratios"`
	DisparateImpact   float64            `json:"disparate_impact_ratio"`
	StatisticalParity float64            `json:"statistical_parity_difference"`
	EqualOpportunity  float64            `json:"equal_opportunity_difference"`
	FailingGroups     []string           `json:"failing_groups,omitempty"`
	Rules             []RuleResult       `json:"rules"`
	NoReferenceGroup  bool               `json:"no_reference_group"`
	Compliant         bool               `json:"compliant"`
}

// ComplianceReport aggregates verdicts over a corpus run.
type ComplianceReport struct {
	Verdicts         []ComplianceVerdict `json:"verdicts"`
	NEvaluated       int                 `json:"n_evaluated"`
	NViolations      int                 `json:"n_violations"`
	ViolationRate    float64             `json:"violation_rate"`
	ExcludedDatasets []ExcludedDataset   `json:"excluded_datasets"`
}
