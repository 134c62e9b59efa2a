package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"fairaudit/internal/config"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

// Rule names, stable across reports.
const (
	RuleFourFifths       = "four_fifths"
	RuleStatParity       = "statistical_parity"
	RuleEqualOpportunity = "equal_opportunity"
)

// favorableValues are target values counted as a favorable outcome.
var favorableValues = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "approved": true, "hired": true,
}

// eligibleColumns name the optional qualification column used by the
// equal-opportunity rule, checked in order.
var eligibleColumns = []string{"qualified", "eligible"}

// ComplianceService evaluates detected sensitive attributes against the
// EEOC/ECOA rule set: the 4/5 rule, statistical parity, and equal
// opportunity.
type ComplianceService struct {
	rules   config.RulesConfig
	matcher *MatcherService
}

func NewComplianceService(cfg config.RulesConfig, matcher *MatcherService) *ComplianceService {
	return &ComplianceService{
		rules:   cfg,
		matcher: matcher,
	}
}

// EvaluateGroups runs every rule over the outcome groups of one sensitive
// attribute. Selection rates, the reference group, impact ratios, and the
// parity difference cover every group regardless of size; the population
// floor only keeps small groups from triggering the four-fifths rule. The
// verdict is compliant only when every rule passes.
func (s *ComplianceService) EvaluateGroups(datasetID, attribute string, groups map[string]models.GroupOutcome) (*models.ComplianceVerdict, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: attribute %q has no groups", ErrInvalidInput, attribute)
	}
	for name, g := range groups {
		if g.Size == 0 {
			return nil, fmt.Errorf("%w: group %q of %q has zero population", ErrDegenerateGroup, name, attribute)
		}
	}

	verdict := &models.ComplianceVerdict{
		DatasetID:      datasetID,
		Attribute:      attribute,
		SelectionRates: make(map[string]float64, len(groups)),
		ImpactRatios:   make(map[string]float64, len(groups)),
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
		verdict.SelectionRates[name] = groups[name].SelectionRate()
	}
	sort.Strings(names)

	reference := names[0]
	minSR, maxSR := verdict.SelectionRates[names[0]], verdict.SelectionRates[names[0]]
	for _, name := range names[1:] {
		sr := verdict.SelectionRates[name]
		if sr > maxSR {
			maxSR = sr
			reference = name
		}
		if sr < minSR {
			minSR = sr
		}
	}
	verdict.ReferenceGroup = reference

	if minSR == maxSR {
		// All rates equal: no disparity is possible, so the dataset is
		// compliant by construction.
		verdict.NoReferenceGroup = true
		verdict.DisparateImpact = 1
		for _, name := range names {
			verdict.ImpactRatios[name] = 1
		}
		verdict.Rules = []models.RuleResult{
			{Rule: RuleFourFifths, Statistic: 1, Threshold: s.rules.FourFifths, Passed: true},
			{Rule: RuleStatParity, Statistic: 0, Threshold: s.rules.ParityThreshold, Passed: true},
		}
		verdict.EqualOpportunity, verdict.Rules = s.appendEqualOpportunity(verdict.Rules, groups)
		verdict.Compliant = allPassed(verdict.Rules)
		return verdict, nil
	}

	// minSR < maxSR here, so maxSR > 0.
	for _, name := range names {
		verdict.ImpactRatios[name] = verdict.SelectionRates[name] / maxSR
	}

	// Only groups meeting the population floor can trigger a four-fifths
	// violation; their rates still feed every statistic above.
	fourFifthsStat := 1.0
	for _, name := range names {
		if groups[name].Size < s.rules.MinGroupSize {
			continue
		}
		ratio := verdict.ImpactRatios[name]
		if ratio < fourFifthsStat {
			fourFifthsStat = ratio
		}
		if ratio < s.rules.FourFifths {
			verdict.FailingGroups = append(verdict.FailingGroups, name)
		}
	}

	verdict.DisparateImpact = minSR / maxSR
	verdict.StatisticalParity = maxSR - minSR

	verdict.Rules = []models.RuleResult{
		{
			Rule:      RuleFourFifths,
			Statistic: fourFifthsStat,
			Threshold: s.rules.FourFifths,
			Passed:    fourFifthsStat >= s.rules.FourFifths,
		},
		{
			Rule:      RuleStatParity,
			Statistic: verdict.StatisticalParity,
			Threshold: s.rules.ParityThreshold,
			Passed:    verdict.StatisticalParity <= s.rules.ParityThreshold,
		},
	}
	verdict.EqualOpportunity, verdict.Rules = s.appendEqualOpportunity(verdict.Rules, groups)
	verdict.Compliant = allPassed(verdict.Rules)
	return verdict, nil
}

// appendEqualOpportunity adds the TPR-gap rule when at least two groups
// have eligible members. With fewer the rule has nothing to compare and
// passes with a zero statistic.
func (s *ComplianceService) appendEqualOpportunity(rules []models.RuleResult, groups map[string]models.GroupOutcome) (float64, []models.RuleResult) {
	tprs := []float64{}
	for _, g := range groups {
		if g.Eligible > 0 {
			tprs = append(tprs, g.TruePositiveRate())
		}
	}

	gap := 0.0
	if len(tprs) >= 2 {
		minTPR, maxTPR := tprs[0], tprs[0]
		for _, t := range tprs[1:] {
			if t < minTPR {
				minTPR = t
			}
			if t > maxTPR {
				maxTPR = t
			}
		}
		gap = maxTPR - minTPR
	}

	rules = append(rules, models.RuleResult{
		Rule:      RuleEqualOpportunity,
		Statistic: gap,
		Threshold: s.rules.EqualOppThreshold,
		Passed:    gap <= s.rules.EqualOppThreshold,
	})
	return gap, rules
}

// EvaluateFrame detects the frame's sensitive attributes and evaluates
// each against the frame's outcome column.
func (s *ComplianceService) EvaluateFrame(df *state.DataFrame) ([]models.ComplianceVerdict, error) {
	if df.Target == "" {
		return nil, fmt.Errorf("%w: dataset %s has no outcome column", ErrInvalidInput, df.ID)
	}

	detection, err := s.matcher.DetectFrame(df)
	if err != nil {
		return nil, err
	}

	verdicts := []models.ComplianceVerdict{}
	for _, match := range detection.Matches {
		if match.Column == df.Target {
			continue
		}
		groups, err := BuildGroups(df, match.Column)
		if err != nil {
			return nil, err
		}
		verdict, err := s.EvaluateGroups(df.ID, match.Column, groups)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, *verdict)
	}
	return verdicts, nil
}

// EvaluateCorpus evaluates every dataset in the corpus, one goroutine per
// dataset. Datasets that cannot be evaluated are excluded with their
// reason and never abort the run.
func (s *ComplianceService) EvaluateCorpus(corpus *state.Corpus) *models.ComplianceReport {
	ids := corpus.IDs()

	type outcome struct {
		verdicts []models.ComplianceVerdict
		excluded *models.ExcludedDataset
	}
	outcomes := make([]outcome, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			verdicts, err := s.EvaluateFrame(corpus.Get(id))
			if err != nil {
				outcomes[i] = outcome{excluded: &models.ExcludedDataset{
					DatasetID: id,
					Reason:    err.Error(),
				}}
				return
			}
			outcomes[i] = outcome{verdicts: verdicts}
		}(i, id)
	}
	wg.Wait()

	report := &models.ComplianceReport{
		Verdicts:         []models.ComplianceVerdict{},
		ExcludedDatasets: []models.ExcludedDataset{},
	}
	for _, o := range outcomes {
		if o.excluded != nil {
			report.ExcludedDatasets = append(report.ExcludedDatasets, *o.excluded)
			continue
		}
		report.Verdicts = append(report.Verdicts, o.verdicts...)
	}

	report.NEvaluated = len(report.Verdicts)
	for _, v := range report.Verdicts {
		if !v.Compliant {
			report.NViolations++
		}
	}
	if report.NEvaluated > 0 {
		report.ViolationRate = float64(report.NViolations) / float64(report.NEvaluated)
	}
	return report
}

// BuildGroups partitions a frame's rows by the values of a sensitive
// column and counts favorable outcomes per group. When the frame has a
// qualification column, eligible counts feed the equal-opportunity rule.
func BuildGroups(df *state.DataFrame, attribute string) (map[string]models.GroupOutcome, error) {
	attrIdx := df.ColumnIndex(attribute)
	if attrIdx < 0 {
		return nil, fmt.Errorf("%w: column %q not in dataset %s", ErrInvalidInput, attribute, df.ID)
	}
	targetIdx := df.ColumnIndex(df.Target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: outcome column %q not in dataset %s", ErrInvalidInput, df.Target, df.ID)
	}

	eligibleIdx := -1
	for _, name := range eligibleColumns {
		for i, h := range df.Headers {
			if strings.EqualFold(h, name) {
				eligibleIdx = i
				break
			}
		}
		if eligibleIdx >= 0 {
			break
		}
	}

	groups := map[string]models.GroupOutcome{}
	for _, row := range df.Rows {
		if attrIdx >= len(row) || targetIdx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[attrIdx])
		if value == "" {
			continue
		}

		g := groups[value]
		g.Size++
		favorable := isFavorable(row[targetIdx])
		if favorable {
			g.Favorable++
		}
		if eligibleIdx >= 0 && eligibleIdx < len(row) && isFavorable(row[eligibleIdx]) {
			g.Eligible++
			if favorable {
				g.EligibleFavorable++
			}
		}
		groups[value] = g
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: attribute %q has no populated groups in dataset %s", ErrDegenerateGroup, attribute, df.ID)
	}
	return groups, nil
}

func isFavorable(value string) bool {
	return favorableValues[strings.ToLower(strings.TrimSpace(value))]
}

func allPassed(rules []models.RuleResult) bool {
	for _, r := range rules {
		if !r.Passed {
			return false
		}
	}
	return true
}
