package service

import (
	"fmt"
	"sort"
	"strings"

	"fairaudit/internal/config"
	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

// MatcherService flags columns that carry protected attributes by fuzzy
// matching their names against the taxonomy keywords, with an optional
// value-vocabulary fallback for anonymized names.
type MatcherService struct {
	taxonomy        []Category
	threshold       float64
	valueSampleSize int
}

func NewMatcherService(cfg config.MatcherConfig) *MatcherService {
	return &MatcherService{
		taxonomy:        DefaultTaxonomy(),
		threshold:       cfg.Threshold,
		valueSampleSize: cfg.ValueSampleSize,
	}
}

// Detect scores every column of the dataset and returns the ones at or
// above threshold, in column order.
func (s *MatcherService) Detect(dataset models.Dataset) (*models.DetectionResult, error) {
	if s.threshold <= 0 || s.threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in (0,1], got %v", ErrConfig, s.threshold)
	}
	if dataset.ID == "" {
		return nil, fmt.Errorf("%w: dataset id is empty", ErrInvalidInput)
	}
	if len(dataset.Columns) == 0 {
		return nil, fmt.Errorf("%w: dataset %s has no columns", ErrInvalidInput, dataset.ID)
	}

	result := &models.DetectionResult{
		DatasetID: dataset.ID,
		Matches:   []models.ColumnMatch{},
	}

	for _, col := range dataset.Columns {
		score, category := s.ScoreColumn(col)
		if score >= s.threshold {
			result.Matches = append(result.Matches, models.ColumnMatch{
				Column:   col,
				Score:    score,
				Category: category,
			})
		}
	}
	return result, nil
}

// DetectFrame runs Detect and then escalates unflagged columns whose value
// vocabulary identifies a protected category.
func (s *MatcherService) DetectFrame(df *state.DataFrame) (*models.DetectionResult, error) {
	result, err := s.Detect(df.Dataset())
	if err != nil {
		return nil, err
	}
	if s.valueSampleSize <= 0 {
		return result, nil
	}

	flagged := make(map[string]bool, len(result.Matches))
	for _, m := range result.Matches {
		flagged[m.Column] = true
	}

	for _, col := range df.Headers {
		if flagged[col] {
			continue
		}
		category, ok := s.matchValues(df.SampleValues(col, s.valueSampleSize))
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, models.ColumnMatch{
			Column:   col,
			Score:    s.threshold,
			Category: category,
		})
	}

	// Escalated matches are appended out of column order; restore it.
	index := make(map[string]int, len(df.Headers))
	for i, h := range df.Headers {
		index[h] = i
	}
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return index[result.Matches[i].Column] < index[result.Matches[j].Column]
	})

	return result, nil
}

// ScoreColumn returns the best keyword similarity for a column name and
// the category that keyword belongs to. Ties resolve to the earliest
// category in the taxonomy.
func (s *MatcherService) ScoreColumn(column string) (float64, string) {
	normalized := normalizeName(column)
	if normalized == "" {
		return 0, ""
	}

	bestScore := 0.0
	bestCategory := ""
	for _, cat := range s.taxonomy {
		for _, keyword := range cat.Keywords {
			score := nameSimilarity(normalized, keyword)
			if score > bestScore {
				bestScore = score
				bestCategory = cat.Name
			}
		}
	}
	return bestScore, bestCategory
}

// matchValues checks whether every sampled value belongs to one category's
// closed vocabulary. Requires at least two distinct values so constant
// columns never match.
func (s *MatcherService) matchValues(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}

	distinct := make(map[string]bool)
	for _, v := range values {
		distinct[strings.ToLower(strings.TrimSpace(v))] = true
	}
	if len(distinct) < 2 {
		return "", false
	}

	for _, cat := range s.taxonomy {
		vocab := valueVocabularies[cat.Name]
		if len(vocab) == 0 {
			continue
		}
		vocabSet := make(map[string]bool, len(vocab))
		for _, v := range vocab {
			vocabSet[v] = true
		}
		all := true
		for v := range distinct {
			if !vocabSet[v] {
				all = false
				break
			}
		}
		if all {
			return cat.Name, true
		}
	}
	return "", false
}

// normalizeName lowercases and strips separators so "Marital_Status" and
// "marital status" score identically.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	replacer := strings.NewReplacer("_", "", " ", "", "-", "")
	return replacer.Replace(name)
}

// nameSimilarity scores a normalized column name against a keyword.
// Containment in either direction is a strong signal regardless of length
// difference, so it floors the score at 0.9.
func nameSimilarity(name, keyword string) float64 {
	if name == keyword {
		return 1.0
	}

	score := lcsRatio(name, keyword)
	if strings.Contains(name, keyword) || strings.Contains(keyword, name) {
		if score < 0.9 {
			score = 0.9
		}
	}
	return score
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)), the classic sequence-matcher
// similarity in [0,1].
func lcsRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	lcs := lcsLength(a, b)
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	r1, r2 := []rune(a), []rune(b)
	len1, len2 := len(r1), len(r2)

	row := make([]int, len2+1)
	for i := 1; i <= len1; i++ {
		prev := 0
		for j := 1; j <= len2; j++ {
			cur := row[j]
			if r1[i-1] == r2[j-1] {
				row[j] = prev + 1
			} else if row[j-1] > row[j] {
				row[j] = row[j-1]
			}
			prev = cur
		}
	}
	return row[len2]
}
