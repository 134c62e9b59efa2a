package service

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"fairaudit/internal/groundtruth"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

// AgreementService measures inter-rater agreement between two annotators
// with Cohen's kappa over (dataset, column) judgments.
type AgreementService struct{}

func NewAgreementService() *AgreementService {
	return &AgreementService{}
}

// Compare computes the agreement report for two annotators over the
// datasets both of them judged. The pair universe is every column of every
// shared dataset present in the corpus.
func (s *AgreementService) Compare(corpus *state.Corpus, store *groundtruth.Store, annotator1, annotator2 string) (*models.AgreementRecord, error) {
	if annotator1 == annotator2 {
		return nil, fmt.Errorf("%w: annotators must differ, got %q twice", ErrInvalidInput, annotator1)
	}

	judgments1 := store.ByAnnotator(annotator1)
	judgments2 := store.ByAnnotator(annotator2)
	if len(judgments1) == 0 {
		return nil, fmt.Errorf("%w: annotator %q has no annotations", ErrInvalidInput, annotator1)
	}
	if len(judgments2) == 0 {
		return nil, fmt.Errorf("%w: annotator %q has no annotations", ErrInvalidInput, annotator2)
	}

	counts := models.PairCounts{}
	categoryCounts := map[string]*models.PairCounts{}
	categoryItems := map[string]int{}
	disagreements := []models.Disagreement{}

	for _, id := range corpus.IDs() {
		a1, ok1 := judgments1[id]
		a2, ok2 := judgments2[id]
		if !ok1 || !ok2 {
			continue
		}

		df := corpus.Get(id)
		set1 := toSet(a1.SensitiveColumns)
		set2 := toSet(a2.SensitiveColumns)

		only1 := []string{}
		only2 := []string{}
		for _, col := range df.Headers {
			switch {
			case set1[col] && set2[col]:
				counts.BothYes++
			case set1[col]:
				counts.OnlyA++
				only1 = append(only1, col)
			case set2[col]:
				counts.OnlyB++
				only2 = append(only2, col)
			default:
				counts.BothNo++
			}

			cat1 := a1.Categories[col]
			cat2 := a2.Categories[col]
			for _, cat := range categoriesOf(cat1, cat2) {
				cc := categoryCounts[cat]
				if cc == nil {
					cc = &models.PairCounts{}
					categoryCounts[cat] = cc
				}
				switch {
				case cat1 == cat && cat2 == cat:
					cc.BothYes++
					categoryItems[cat]++
				case cat1 == cat:
					cc.OnlyA++
					categoryItems[cat]++
				case cat2 == cat:
					cc.OnlyB++
					categoryItems[cat]++
				}
			}
		}

		if len(only1) > 0 || len(only2) > 0 {
			disagreements = append(disagreements, models.Disagreement{
				DatasetID:  id,
				Annotator1: only1,
				Annotator2: only2,
			})
		}
	}

	n := counts.Total()
	if n < 2 {
		return nil, fmt.Errorf("%w: %d shared judgments between %q and %q", ErrInsufficientSample, n, annotator1, annotator2)
	}

	kappa, po, pe := Kappa(counts)

	record := &models.AgreementRecord{
		Kappa:          models.KappaValue(kappa),
		ObservedPo:     po,
		ExpectedPe:     pe,
		NItems:         n,
		Interpretation: InterpretKappa(kappa),
		Disagreements:  disagreements,
	}

	if math.IsNaN(kappa) || pe == 1 {
		record.CI95 = [2]models.KappaValue{models.KappaValue(kappa), models.KappaValue(kappa)}
	} else {
		se := math.Sqrt(po * (1 - po) / (float64(n) * (1 - pe) * (1 - pe)))
		z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.975)
		record.CI95 = [2]models.KappaValue{
			models.KappaValue(kappa - z*se),
			models.KappaValue(kappa + z*se),
		}
	}

	for _, cat := range DefaultTaxonomy() {
		cc := categoryCounts[cat.Name]
		if cc == nil || categoryItems[cat.Name] == 0 {
			continue
		}
		// Fill in both-no so the category table spans the same universe.
		cc.BothNo = n - cc.BothYes - cc.OnlyA - cc.OnlyB
		k, _, _ := Kappa(*cc)
		record.PerCategory = append(record.PerCategory, models.CategoryKappa{
			Category: cat.Name,
			Kappa:    models.KappaValue(k),
			NItems:   categoryItems[cat.Name],
		})
	}

	return record, nil
}

// Kappa computes Cohen's kappa from a 2x2 contingency table, with observed
// and expected agreement. Po=Pe=1 is defined as kappa 1; Pe=1 with Po<1 is
// NaN and stays NaN.
func Kappa(c models.PairCounts) (kappa, po, pe float64) {
	n := float64(c.Total())
	if n == 0 {
		return math.NaN(), 0, 0
	}

	po = float64(c.BothYes+c.BothNo) / n
	pYes1 := float64(c.BothYes+c.OnlyA) / n
	pYes2 := float64(c.BothYes+c.OnlyB) / n
	pe = pYes1*pYes2 + (1-pYes1)*(1-pYes2)

	if pe == 1 {
		if po == 1 {
			return 1, po, pe
		}
		return math.NaN(), po, pe
	}
	return (po - pe) / (1 - pe), po, pe
}

// InterpretKappa maps kappa to the Landis-Koch scale.
func InterpretKappa(kappa float64) string {
	switch {
	case math.IsNaN(kappa):
		return "undefined"
	case kappa < 0:
		return "poor"
	case kappa < 0.21:
		return "slight"
	case kappa < 0.41:
		return "fair"
	case kappa < 0.61:
		return "moderate"
	case kappa < 0.81:
		return "substantial"
	default:
		return "almost perfect"
	}
}

func categoriesOf(cats ...string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range cats {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
