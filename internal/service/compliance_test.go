package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairaudit/internal/config"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

func testCompliance() *ComplianceService {
	return NewComplianceService(config.RulesConfig{
		MinGroupSize:      30,
		FourFifths:        0.8,
		ParityThreshold:   0.2,
		EqualOppThreshold: 0.1,
	}, testMatcher(0.75))
}

func TestEvaluateGroupsFourFifthsViolation(t *testing.T) {
	svc := testCompliance()

	// SR(A)=0.50, SR(B)=0.30: impact ratio 0.6 fails the 4/5 rule.
	verdict, err := svc.EvaluateGroups("d1", "gender", map[string]models.GroupOutcome{
		"A": {Size: 100, Favorable: 50},
		"B": {Size: 100, Favorable: 30},
	})
	require.NoError(t, err)

	assert.Equal(t, "A", verdict.ReferenceGroup)
	assert.InDelta(t, 0.6, verdict.DisparateImpact, 1e-9)
	assert.InDelta(t, 0.2, verdict.StatisticalParity, 1e-9)
	assert.Equal(t, []string{"B"}, verdict.FailingGroups)
	assert.False(t, verdict.Compliant)

	byRule := map[string]models.RuleResult{}
	for _, r := range verdict.Rules {
		byRule[r.Rule] = r
	}
	assert.False(t, byRule[RuleFourFifths].Passed)
	assert.InDelta(t, 0.6, byRule[RuleFourFifths].Statistic, 1e-9)
	// Parity difference of exactly 0.2 sits on the threshold and passes.
	assert.True(t, byRule[RuleStatParity].Passed)
	assert.True(t, byRule[RuleEqualOpportunity].Passed)
}

func TestEvaluateGroupsCompliant(t *testing.T) {
	svc := testCompliance()

	verdict, err := svc.EvaluateGroups("d1", "gender", map[string]models.GroupOutcome{
		"A": {Size: 100, Favorable: 50},
		"B": {Size: 100, Favorable: 45},
	})
	require.NoError(t, err)

	assert.True(t, verdict.Compliant)
	assert.InDelta(t, 0.9, verdict.DisparateImpact, 1e-9)
	assert.Empty(t, verdict.FailingGroups)
	for _, r := range verdict.Rules {
		assert.True(t, r.Passed, "rule %s", r.Rule)
	}
}

func TestEvaluateGroupsEqualRatesNoReference(t *testing.T) {
	svc := testCompliance()

	verdict, err := svc.EvaluateGroups("d1", "race", map[string]models.GroupOutcome{
		"A": {Size: 50, Favorable: 20},
		"B": {Size: 100, Favorable: 40},
		"C": {Size: 200, Favorable: 80},
	})
	require.NoError(t, err)

	assert.True(t, verdict.NoReferenceGroup)
	assert.True(t, verdict.Compliant)
	assert.Equal(t, 1.0, verdict.DisparateImpact)
	for _, ratio := range verdict.ImpactRatios {
		assert.Equal(t, 1.0, ratio)
	}
}

func TestEvaluateGroupsZeroPopulation(t *testing.T) {
	svc := testCompliance()

	_, err := svc.EvaluateGroups("d1", "race", map[string]models.GroupOutcome{
		"A": {Size: 100, Favorable: 50},
		"B": {Size: 0},
	})
	assert.ErrorIs(t, err, ErrDegenerateGroup)
}

func TestEvaluateGroupsSmallGroupExemptFromFourFifths(t *testing.T) {
	svc := testCompliance()

	// Group C is under the population floor: its extreme rate cannot
	// trigger the four-fifths rule, but it still counts toward the
	// parity difference and the reported ratios.
	verdict, err := svc.EvaluateGroups("d1", "race", map[string]models.GroupOutcome{
		"A": {Size: 100, Favorable: 50},
		"B": {Size: 100, Favorable: 48},
		"C": {Size: 5, Favorable: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, "A", verdict.ReferenceGroup)
	assert.NotContains(t, verdict.FailingGroups, "C")
	assert.Equal(t, 0.0, verdict.SelectionRates["C"])
	assert.Equal(t, 0.0, verdict.ImpactRatios["C"])
	assert.InDelta(t, 0.0, verdict.DisparateImpact, 1e-9)
	assert.InDelta(t, 0.5, verdict.StatisticalParity, 1e-9)

	byRule := map[string]models.RuleResult{}
	for _, r := range verdict.Rules {
		byRule[r.Rule] = r
	}
	// Four-fifths runs over A and B only: 0.48/0.50 = 0.96 passes.
	assert.True(t, byRule[RuleFourFifths].Passed)
	assert.InDelta(t, 0.96, byRule[RuleFourFifths].Statistic, 1e-9)
	// The parity difference of 0.5 still fails the verdict.
	assert.False(t, byRule[RuleStatParity].Passed)
	assert.False(t, verdict.Compliant)
}

func TestEvaluateGroupsSubFloorReferenceGroup(t *testing.T) {
	svc := testCompliance()

	// The highest-rate group is under the population floor. It still
	// anchors the reference rate; the floor only exempts it from being
	// listed as a failing group itself.
	verdict, err := svc.EvaluateGroups("d1", "gender", map[string]models.GroupOutcome{
		"A": {Size: 5, Favorable: 5},
		"B": {Size: 100, Favorable: 50},
		"C": {Size: 100, Favorable: 50},
	})
	require.NoError(t, err)

	assert.Equal(t, "A", verdict.ReferenceGroup)
	assert.False(t, verdict.NoReferenceGroup)
	assert.InDelta(t, 0.5, verdict.DisparateImpact, 1e-9)
	assert.InDelta(t, 0.5, verdict.ImpactRatios["B"], 1e-9)
	assert.InDelta(t, 0.5, verdict.ImpactRatios["C"], 1e-9)
	assert.Equal(t, []string{"B", "C"}, verdict.FailingGroups)
	assert.False(t, verdict.Compliant)

	byRule := map[string]models.RuleResult{}
	for _, r := range verdict.Rules {
		byRule[r.Rule] = r
	}
	assert.False(t, byRule[RuleFourFifths].Passed)
	assert.InDelta(t, 0.5, byRule[RuleFourFifths].Statistic, 1e-9)
}

func TestEvaluateGroupsEqualOpportunityViolation(t *testing.T) {
	svc := testCompliance()

	verdict, err := svc.EvaluateGroups("d1", "gender", map[string]models.GroupOutcome{
		"A": {Size: 100, Favorable: 50, Eligible: 50, EligibleFavorable: 45},
		"B": {Size: 100, Favorable: 45, Eligible: 50, EligibleFavorable: 30},
	})
	require.NoError(t, err)

	// TPR gap = 0.90 - 0.60 = 0.30 > 0.1.
	assert.InDelta(t, 0.3, verdict.EqualOpportunity, 1e-9)
	assert.False(t, verdict.Compliant)

	byRule := map[string]models.RuleResult{}
	for _, r := range verdict.Rules {
		byRule[r.Rule] = r
	}
	assert.False(t, byRule[RuleEqualOpportunity].Passed)
	assert.True(t, byRule[RuleFourFifths].Passed)
}

func complianceFrame() *state.DataFrame {
	rows := [][]string{}
	// 40 male rows with 20 favorable, 40 female rows with 8 favorable.
	for i := 0; i < 40; i++ {
		target := "0"
		if i < 20 {
			target = "1"
		}
		rows = append(rows, []string{"male", target})
	}
	for i := 0; i < 40; i++ {
		target := "0"
		if i < 8 {
			target = "1"
		}
		rows = append(rows, []string{"female", target})
	}
	return &state.DataFrame{
		ID:      "hiring",
		Headers: []string{"gender", "target"},
		Rows:    rows,
		Target:  "target",
	}
}

func TestBuildGroups(t *testing.T) {
	groups, err := BuildGroups(complianceFrame(), "gender")
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, 40, groups["male"].Size)
	assert.Equal(t, 20, groups["male"].Favorable)
	assert.Equal(t, 40, groups["female"].Size)
	assert.Equal(t, 8, groups["female"].Favorable)

	_, err = BuildGroups(complianceFrame(), "ghost")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluateFrame(t *testing.T) {
	svc := testCompliance()

	verdicts, err := svc.EvaluateFrame(complianceFrame())
	require.NoError(t, err)
	require.Len(t, verdicts, 1)

	verdict := verdicts[0]
	assert.Equal(t, "gender", verdict.Attribute)
	assert.Equal(t, "male", verdict.ReferenceGroup)
	// 0.2/0.5 = 0.4, a clear 4/5 violation.
	assert.InDelta(t, 0.4, verdict.DisparateImpact, 1e-9)
	assert.False(t, verdict.Compliant)
}

func TestEvaluateFrameRequiresTarget(t *testing.T) {
	svc := testCompliance()

	df := complianceFrame()
	df.Target = ""
	_, err := svc.EvaluateFrame(df)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluateCorpus(t *testing.T) {
	svc := testCompliance()

	noTarget := &state.DataFrame{
		ID:      "broken",
		Headers: []string{"gender", "value"},
		Rows:    [][]string{{"male", "1"}},
	}
	report := svc.EvaluateCorpus(corpusWithFrames(complianceFrame(), noTarget))

	assert.Equal(t, 1, report.NEvaluated)
	assert.Equal(t, 1, report.NViolations)
	assert.Equal(t, 1.0, report.ViolationRate)
	require.Len(t, report.ExcludedDatasets, 1)
	assert.Equal(t, "broken", report.ExcludedDatasets[0].DatasetID)
}
