package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fairaudit/internal/models"
)

// annotationEntry is the on-disk shape of one annotator's judgment for one
// dataset file.
type annotationEntry struct {
	File              string            `json:"file"`
	SensitiveColumns  []string          `json:"sensitive_columns"`
	SensitiveCategory map[string]string `json:"sensitive_categories"`
	NSensitive        int               `json:"n_sensitive"`
	NFeatures         int               `json:"n_features"`
	AnnotatorID       string            `json:"annotator_id"`
}

// Store holds human annotations keyed by dataset id. Annotations are
// append-only; consolidation is computed on read.
type Store struct {
	mu          sync.RWMutex
	byDataset   map[string][]models.Annotation
	byAnnotator map[string]map[string]models.Annotation
}

func NewStore() *Store {
	return &Store{
		byDataset:   make(map[string][]models.Annotation),
		byAnnotator: make(map[string]map[string]models.Annotation),
	}
}

// Add registers one annotation. A later annotation from the same annotator
// for the same dataset replaces the earlier one.
func (s *Store) Add(a models.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byAnnotator[a.AnnotatorID]; ok {
		if _, exists := prev[a.DatasetID]; exists {
			list := s.byDataset[a.DatasetID]
			for i, existing := range list {
				if existing.AnnotatorID == a.AnnotatorID {
					s.byDataset[a.DatasetID] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
	} else {
		s.byAnnotator[a.AnnotatorID] = make(map[string]models.Annotation)
	}

	s.byDataset[a.DatasetID] = append(s.byDataset[a.DatasetID], a)
	s.byAnnotator[a.AnnotatorID][a.DatasetID] = a
}

// LoadFile reads one annotator's JSON file, either a single entry or an
// array of entries.
func (s *Store) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var entries []annotationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var single annotationEntry
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return 0, fmt.Errorf("parsing %s: %w", path, err)
		}
		entries = []annotationEntry{single}
	}

	for _, e := range entries {
		if e.File == "" || e.AnnotatorID == "" {
			return 0, fmt.Errorf("parsing %s: entry missing file or annotator_id", path)
		}
		s.Add(models.Annotation{
			DatasetID:        datasetID(e.File),
			AnnotatorID:      e.AnnotatorID,
			SensitiveColumns: e.SensitiveColumns,
			Categories:       e.SensitiveCategory,
			NSensitive:       e.NSensitive,
			NFeatures:        e.NFeatures,
		})
	}
	return len(entries), nil
}

// LoadDirectory reads every .json file in dir. Returns total entries loaded.
func (s *Store) LoadDirectory(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, f := range files {
		n, err := s.LoadFile(f)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Annotations returns all annotations for a dataset.
func (s *Store) Annotations(datasetID string) []models.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Annotation, len(s.byDataset[datasetID]))
	copy(out, s.byDataset[datasetID])
	return out
}

// ByAnnotator returns one annotator's judgments keyed by dataset id.
func (s *Store) ByAnnotator(annotatorID string) map[string]models.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Annotation, len(s.byAnnotator[annotatorID]))
	for k, v := range s.byAnnotator[annotatorID] {
		out[k] = v
	}
	return out
}

// Annotators returns all annotator ids, sorted.
func (s *Store) Annotators() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byAnnotator))
	for id := range s.byAnnotator {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Datasets returns all annotated dataset ids, sorted.
func (s *Store) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byDataset))
	for id := range s.byDataset {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Consolidated returns the reference truth for a dataset: the columns every
// annotator flagged. With a single annotator its columns pass through
// unchanged. Returns false when the dataset has no annotations.
func (s *Store) Consolidated(datasetID string) (models.GroundTruthRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	annotations := s.byDataset[datasetID]
	if len(annotations) == 0 {
		return models.GroundTruthRecord{}, false
	}

	counts := make(map[string]int)
	order := []string{}
	for _, a := range annotations {
		// Count each column once per annotation, even when an annotator
		// listed it twice.
		seen := make(map[string]bool, len(a.SensitiveColumns))
		for _, col := range a.SensitiveColumns {
			if seen[col] {
				continue
			}
			seen[col] = true
			if counts[col] == 0 {
				order = append(order, col)
			}
			counts[col]++
		}
	}

	columns := []string{}
	for _, col := range order {
		if counts[col] == len(annotations) {
			columns = append(columns, col)
		}
	}

	return models.GroundTruthRecord{
		DatasetID:        datasetID,
		SensitiveColumns: columns,
		NSensitive:       len(columns),
	}, true
}

func datasetID(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
